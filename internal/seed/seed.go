// Package seed holds the fixed data sets a host may load into the stores at
// startup. Nothing here runs on import.
package seed

import (
	"time"

	"github.com/google/uuid"

	"plancal/internal/model"
)

func Categories() []model.Category {
	return model.DefaultCategories()
}

// Activities returns the sample calendar for the week of May 12, 2025, with
// wall-clock times in loc.
func Activities(loc *time.Location) []model.Activity {
	if loc == nil {
		loc = time.Local
	}
	at := func(d, hh, mm int) time.Time {
		return time.Date(2025, time.May, d, hh, mm, 0, 0, loc)
	}
	weekly := func(u *time.Time, days ...time.Weekday) *model.Recurrence {
		return &model.Recurrence{Pattern: model.Weekly{Days: model.NewWeekdaySet(days...)}, Until: u}
	}
	monthly := &model.Recurrence{Pattern: model.Monthly{}}
	threeMonths := at(13, 0, 0).AddDate(0, 3, 0)
	twoMonths := at(12, 0, 0).AddDate(0, 2, 0)

	return []model.Activity{
		{
			ID: "1", Title: "Team Meeting", Description: "Weekly team sync with product and engineering",
			Start: at(13, 10, 0), End: at(13, 11, 0), CategoryID: "work",
			Recurring: true, Recurrence: weekly(&threeMonths, time.Tuesday),
		},
		{
			ID: "2", Title: "Project Planning", Description: "Quarterly planning session for Q3",
			Start: at(15, 14, 0), End: at(15, 16, 0), CategoryID: "work",
		},
		{
			ID: "3", Title: "Client Call", Description: "Monthly progress update with client",
			Start: at(14, 11, 0), End: at(14, 12, 0), CategoryID: "work",
			Recurring: true, Recurrence: monthly,
		},
		{
			ID: "4", Title: "Morning Workout", Description: "Strength training session",
			Start: at(13, 7, 0), End: at(13, 8, 0), CategoryID: "health",
			Recurring: true, Recurrence: weekly(nil, time.Monday, time.Wednesday, time.Friday),
		},
		{
			ID: "5", Title: "Yoga Class", Description: "Vinyasa flow with Sarah",
			Start: at(16, 18, 0), End: at(16, 19, 0), CategoryID: "health",
			Recurring: true, Recurrence: weekly(nil, time.Friday),
		},
		{
			ID: "6", Title: "AI Course", Description: "Online lecture on machine learning",
			Start: at(12, 19, 0), End: at(12, 21, 0), CategoryID: "study",
			Recurring: true, Recurrence: weekly(&twoMonths, time.Monday),
		},
		{
			ID: "7", Title: "Grocery Shopping", Description: "Weekly grocery run",
			Start: at(17, 10, 0), End: at(17, 11, 30), CategoryID: "errands",
			Recurring: true, Recurrence: weekly(nil, time.Saturday),
		},
		{
			ID: "8", Title: "Dinner with Friends", Description: "At Bella Italia restaurant",
			Start: at(16, 19, 30), End: at(16, 22, 0), CategoryID: "social",
		},
		{
			ID: "9", Title: "Family Game Night", Description: "Board games and pizza",
			Start: at(17, 18, 0), End: at(17, 21, 0), CategoryID: "family",
			Recurring: true, Recurrence: weekly(nil, time.Saturday),
		},
		{
			ID: "10", Title: "Dentist Appointment", Description: "Annual checkup",
			Start: at(14, 15, 0), End: at(14, 16, 0), CategoryID: "health",
		},
		{
			ID: "11", Title: "Concert", Description: "Live music at Central Park",
			Start: at(15, 20, 0), End: at(15, 23, 0), CategoryID: "social",
		},
		{
			ID: "12", Title: "Book Club", Description: "Discussion on 'The Midnight Library'",
			Start: at(13, 19, 0), End: at(13, 20, 30), CategoryID: "social",
			Recurring: true, Recurrence: monthly,
		},
	}
}

// Upcoming returns per-user sample events for the protocol server, placed
// relative to now so that some are upcoming and some already past.
func Upcoming(now time.Time) []model.Activity {
	const day = 24 * time.Hour
	ev := func(user, title, desc, category string, from, to time.Duration, recurring bool) model.Activity {
		return model.Activity{
			ID:          uuid.NewString(),
			UserID:      user,
			Title:       title,
			Description: desc,
			Start:       now.Add(from),
			End:         now.Add(to),
			CategoryID:  category,
			Recurring:   recurring,
		}
	}
	return []model.Activity{
		ev("user1", "Team Meeting (User 1)", "Weekly sync-up", "work", 2*time.Hour, 3*time.Hour, true),
		ev("user1", "Project Deadline (User 1)", "Finalize Q3 report", "work", 3*day, 3*day+time.Hour, false),
		ev("user1", "Past Event: Lunch with Bob (User 1)", "Discuss project X", "personal", -2*day, -2*day+time.Hour, false),
		ev("user2", "Doctor's Appointment (User 2)", "Annual check-up", "health", day+4*time.Hour, day+5*time.Hour, false),
		ev("user2", "Gym Session (User 2)", "Leg day", "health", 2*time.Hour+30*time.Minute, 4*time.Hour, true),
		ev("user2", "Past Event: Movie Night (User 2)", "Watch new action movie", "social", -day, -day+2*time.Hour, false),
	}
}
