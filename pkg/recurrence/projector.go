// Package recurrence projects recurring task patterns onto concrete due
// dates and task rows.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"taskboard-backend/pkg/models"
)

// safetyCap bounds a single projection run even when the pattern has
// neither an end date nor a max occurrence count.
const safetyCap = 366

// Project returns the due dates a pattern produces from its start date
// up to and including until. Generation stops at the pattern's end
// date, its max occurrence count, or the safety cap, whichever comes
// first. For a daily pattern with interval k the i-th date is exactly
// start + i*k days.
func Project(p *models.RecurringTaskPattern, until time.Time) []time.Time {
	if p == nil || !p.IsActive {
		return nil
	}
	interval := p.Interval
	if interval < 1 {
		interval = 1
	}

	limit := safetyCap
	if p.MaxOccurrences > 0 && p.MaxOccurrences < limit {
		limit = p.MaxOccurrences
	}

	var dates []time.Time
	current := p.StartDate
	for i := 0; len(dates) < limit && i < safetyCap*8; i++ {
		if current.After(until) {
			break
		}
		if p.EndDate != nil && current.After(*p.EndDate) {
			break
		}
		if matches(p, current) {
			dates = append(dates, current)
		}
		current = advance(p, current, interval)
	}
	return dates
}

// ProjectPending is Project restricted to dates the pattern has not
// generated yet (strictly after LastGenerated).
func ProjectPending(p *models.RecurringTaskPattern, until time.Time) []time.Time {
	dates := Project(p, until)
	if p == nil || p.LastGenerated == nil {
		return dates
	}
	out := dates[:0]
	for _, d := range dates {
		if d.After(*p.LastGenerated) {
			out = append(out, d)
		}
	}
	return out
}

// matches reports whether a candidate date satisfies the pattern's
// day-of-week / day-of-month constraints.
func matches(p *models.RecurringTaskPattern, d time.Time) bool {
	switch p.RecurrenceType {
	case models.RecurWeekly:
		if len(p.DaysOfWeek) == 0 {
			return true
		}
		for _, wd := range p.DaysOfWeek {
			if int(d.Weekday()) == wd {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// advance steps to the next candidate date.
func advance(p *models.RecurringTaskPattern, d time.Time, interval int) time.Time {
	switch p.RecurrenceType {
	case models.RecurDaily:
		return d.AddDate(0, 0, interval)
	case models.RecurWeekly:
		if len(p.DaysOfWeek) > 0 {
			// Walk day by day inside the week; jump the interval gap
			// after Saturday.
			next := d.AddDate(0, 0, 1)
			if next.Weekday() == time.Sunday && interval > 1 {
				next = next.AddDate(0, 0, (interval-1)*7)
			}
			return next
		}
		return d.AddDate(0, 0, interval*7)
	case models.RecurMonthly:
		return addMonthsClamped(d, interval, anchorDay(p), p.UseLastDay)
	case models.RecurYearly:
		return addMonthsClamped(d, interval*12, anchorDay(p), p.UseLastDay)
	default:
		return d.AddDate(0, 0, interval)
	}
}

// anchorDay is the day of month a monthly/yearly pattern aims for. The
// start date's day is the anchor when none is configured, so a Jan 31
// pattern clamped to Feb 28 returns to the 31st in March.
func anchorDay(p *models.RecurringTaskPattern) int {
	if p.DayOfMonth > 0 {
		return p.DayOfMonth
	}
	return p.StartDate.Day()
}

// addMonthsClamped adds months keeping the target day of month, clamping
// to the last day of shorter months. With useLastDay the result always
// lands on the month's final day.
func addMonthsClamped(d time.Time, months, dayOfMonth int, useLastDay bool) time.Time {
	year, month, _ := d.Date()
	target := time.Date(year, month, 1, d.Hour(), d.Minute(), d.Second(), 0, d.Location()).AddDate(0, months, 0)

	last := lastDayOfMonth(target.Year(), target.Month())
	day := dayOfMonth
	if useLastDay {
		day = last
	}
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(target.Year(), target.Month(), day, d.Hour(), d.Minute(), d.Second(), 0, d.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Materialize renders the tasks due on the projected dates. Titles get a
// date suffix so instances stay distinguishable on the board.
func Materialize(p *models.RecurringTaskPattern, dates []time.Time) []models.Task {
	tasks := make([]models.Task, 0, len(dates))
	for _, due := range dates {
		d := due
		title := strings.TrimSpace(p.TitleTemplate)
		if title == "" {
			title = "Recurring task"
		}
		tasks = append(tasks, models.Task{
			WorkspaceID:        p.WorkspaceID,
			ProjectID:          p.ProjectID,
			Title:              fmt.Sprintf("%s (%s)", title, d.Format("2006-01-02")),
			Description:        p.Description,
			Status:             models.StatusTodo,
			Priority:           p.Priority,
			AssigneeID:         p.AssigneeID,
			ReporterID:         p.CreatedBy,
			DueDate:            &d,
			RecurringPatternID: p.ID,
		})
	}
	return tasks
}
