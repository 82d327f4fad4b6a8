package ics

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"plancal/internal/model"
)

// byTimeWeekday maps time.Weekday onto rrule weekdays.
var byTimeWeekday = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ruleString renders rec as an RRULE value for an activity starting at
// start. It reports false for rules that never produce an occurrence.
func ruleString(rec model.Recurrence) (string, bool) {
	opt := rrule.ROption{}
	switch p := rec.Pattern.(type) {
	case model.Daily:
		opt.Freq = rrule.DAILY
	case model.Weekly:
		if p.Days.Empty() {
			return "", false
		}
		opt.Freq = rrule.WEEKLY
		for _, d := range p.Days.Days() {
			opt.Byweekday = append(opt.Byweekday, byTimeWeekday[d])
		}
	case model.Monthly:
		opt.Freq = rrule.MONTHLY
	default:
		return "", false
	}
	if rec.Until != nil {
		opt.Until = *rec.Until
	}
	return opt.RRuleString(), true
}

// parseRule maps an RRULE value onto a Recurrence. Only the subset the
// engine can express is accepted: DAILY, WEEKLY with plain BYDAY, MONTHLY on
// DTSTART's day; interval 1, no COUNT.
func parseRule(value string, start time.Time) (model.Recurrence, error) {
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return model.Recurrence{}, fmt.Errorf("parse RRULE: %w", err)
	}
	if opt.Interval > 1 {
		return model.Recurrence{}, fmt.Errorf("unsupported INTERVAL=%d", opt.Interval)
	}
	if opt.Count > 0 {
		return model.Recurrence{}, fmt.Errorf("unsupported COUNT=%d", opt.Count)
	}
	if len(opt.Bysetpos) > 0 || len(opt.Bymonth) > 0 || len(opt.Byyearday) > 0 ||
		len(opt.Byweekno) > 0 || len(opt.Byhour) > 0 || len(opt.Byminute) > 0 {
		return model.Recurrence{}, fmt.Errorf("unsupported BY* parts in %q", value)
	}

	rec := model.Recurrence{}
	if !opt.Until.IsZero() {
		u := opt.Until
		rec.Until = &u
	}

	switch opt.Freq {
	case rrule.DAILY:
		if len(opt.Byweekday) > 0 || len(opt.Bymonthday) > 0 {
			return model.Recurrence{}, fmt.Errorf("unsupported DAILY filter in %q", value)
		}
		rec.Pattern = model.Daily{}
	case rrule.WEEKLY:
		var days model.WeekdaySet
		for _, wd := range opt.Byweekday {
			days = days.With(time.Weekday((wd.Day() + 1) % 7))
		}
		if days.Empty() {
			// RFC 5545: without BYDAY the rule repeats on DTSTART's weekday.
			days = days.With(start.Weekday())
		}
		rec.Pattern = model.Weekly{Days: days}
	case rrule.MONTHLY:
		if len(opt.Byweekday) > 0 {
			return model.Recurrence{}, fmt.Errorf("unsupported MONTHLY BYDAY in %q", value)
		}
		for _, md := range opt.Bymonthday {
			if md != start.Day() {
				return model.Recurrence{}, fmt.Errorf("unsupported BYMONTHDAY=%d", md)
			}
		}
		rec.Pattern = model.Monthly{}
	default:
		return model.Recurrence{}, fmt.Errorf("unsupported FREQ=%v", opt.Freq)
	}
	return rec, nil
}
