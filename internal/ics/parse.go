package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "plancal/internal/log"
	"plancal/internal/model"
)

// Parse converts the VEVENTs of an ICS payload into activity templates
// tagged with sub.ID. Events that cannot be represented (unsupported RRULE,
// RECURRENCE-ID overrides, missing end) are logged and skipped; EXDATEs are
// ignored.
func Parse(sub Subscription, body []byte) ([]model.Activity, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", sub.ID, "url", redactURL(sub.URL))
		return nil, err
	}

	out := make([]model.Activity, 0)
	for _, ve := range cal.Events() {
		a, perr := parseVEvent(sub, ve)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", sub.ID, "reason", perr.Error())
			continue
		}
		out = append(out, a)
	}

	appLog.Info("ics parse completed", "id", sub.ID, "activity_count", len(out))
	return out, nil
}

func parseVEvent(sub Subscription, ve *ical.VEvent) (model.Activity, error) {
	var a model.Activity
	a.Source = sub.ID

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return a, errors.New("missing UID")
	}
	if ve.GetProperty("RECURRENCE-ID") != nil {
		return a, errors.New("recurrence overrides are not supported: " + uid.Value)
	}
	a.ID = sub.ID + ":" + uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		a.Title = unescape(p.Value)
	}
	if a.Title == "" {
		a.Title = "(untitled)"
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		a.Description = unescape(p.Value)
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return a, errors.New("missing DTSTART: " + uid.Value)
	}
	a.Start = start

	end, err := ve.GetEndAt()
	if err != nil || !end.After(start) {
		if !isAllDay(ve) {
			return a, errors.New("missing or empty DTEND: " + uid.Value)
		}
		end = start.AddDate(0, 0, 1)
	}
	a.End = end

	a.CategoryID = sub.CategoryID
	if a.CategoryID == "" {
		if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
			first, _, _ := strings.Cut(p.Value, ",")
			a.CategoryID = strings.TrimSpace(first)
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		rec, err := parseRule(p.Value, start)
		if err != nil {
			return a, err
		}
		a.Recurring = true
		a.Recurrence = &rec
	}

	if len(ve.GetProperties(ical.ComponentPropertyExdate)) > 0 {
		appLog.Debug("ics exdate ignored", "id", sub.ID, "uid", uid.Value)
	}

	return a, nil
}

// isAllDay detects VALUE=DATE or a date-only DTSTART.
func isAllDay(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescape(s string) string {
	return textUnescaper.Replace(s)
}

// Encode renders activities as a VCALENDAR, one VEVENT per template with an
// RRULE for recurring ones. Recurring templates that can never occur are
// left out.
func Encode(activities []model.Activity, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//plancal//calendar export//EN")

	for _, a := range activities {
		var rule string
		if a.Recurring {
			if a.Recurrence == nil {
				continue
			}
			rr, ok := ruleString(*a.Recurrence)
			if !ok {
				continue
			}
			rule = rr
		}

		ev := cal.AddEvent(a.ID)
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(a.Start)
		ev.SetEndAt(a.End)
		ev.SetSummary(a.Title)
		if a.Description != "" {
			ev.SetDescription(a.Description)
		}
		if a.CategoryID != "" {
			ev.SetProperty(ical.ComponentPropertyCategories, a.CategoryID)
		}
		if rule != "" {
			ev.AddProperty(ical.ComponentPropertyRrule, rule)
		}
	}

	return cal.Serialize()
}
