package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard-backend/pkg/models"
)

func pattern(rt models.RecurrenceType, interval int, start time.Time) *models.RecurringTaskPattern {
	return &models.RecurringTaskPattern{
		ID:             "pat-1",
		WorkspaceID:    "ws-1",
		CreatedBy:      "u1",
		RecurrenceType: rt,
		Interval:       interval,
		StartDate:      start,
		TitleTemplate:  "Standup",
		Priority:       models.PriorityMedium,
		IsActive:       true,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestProjectDailyArithmetic(t *testing.T) {
	// The i-th generated date is exactly start + i*k days.
	start := day(2026, time.March, 1)
	for _, k := range []int{1, 2, 7} {
		p := pattern(models.RecurDaily, k, start)
		dates := Project(p, start.AddDate(0, 0, 30))
		require.NotEmpty(t, dates)
		for i, d := range dates {
			assert.Equal(t, start.AddDate(0, 0, i*k), d, "interval %d, index %d", k, i)
		}
	}
}

func TestProjectStopsAtEndDate(t *testing.T) {
	start := day(2026, time.March, 1)
	end := day(2026, time.March, 10)
	p := pattern(models.RecurDaily, 1, start)
	p.EndDate = &end

	dates := Project(p, start.AddDate(0, 1, 0))
	require.NotEmpty(t, dates)
	for _, d := range dates {
		assert.False(t, d.After(end), "date %v past end date %v", d, end)
	}
	assert.Len(t, dates, 10)
}

func TestProjectMaxOccurrences(t *testing.T) {
	p := pattern(models.RecurDaily, 1, day(2026, time.March, 1))
	p.MaxOccurrences = 3

	dates := Project(p, day(2027, time.March, 1))
	assert.Len(t, dates, 3)
}

func TestProjectSafetyCapWithoutBounds(t *testing.T) {
	p := pattern(models.RecurDaily, 1, day(2020, time.January, 1))

	dates := Project(p, day(2030, time.January, 1))
	assert.Len(t, dates, safetyCap)
}

func TestProjectInactivePattern(t *testing.T) {
	p := pattern(models.RecurDaily, 1, day(2026, time.March, 1))
	p.IsActive = false
	assert.Empty(t, Project(p, day(2026, time.April, 1)))
}

func TestProjectWeeklyDaysOfWeek(t *testing.T) {
	// Monday March 2nd 2026; pattern fires Mondays and Fridays.
	start := day(2026, time.March, 2)
	p := pattern(models.RecurWeekly, 1, start)
	p.DaysOfWeek = []int{int(time.Monday), int(time.Friday)}

	dates := Project(p, start.AddDate(0, 0, 13))
	require.NotEmpty(t, dates)
	for _, d := range dates {
		wd := d.Weekday()
		assert.True(t, wd == time.Monday || wd == time.Friday, "unexpected weekday %v", wd)
	}
	// Two full weeks yield four firings.
	assert.Len(t, dates, 4)
}

func TestProjectMonthlyClampsShortMonths(t *testing.T) {
	// Anchored on the 31st; February clamps to its last day, March
	// returns to the 31st.
	start := day(2026, time.January, 31)
	p := pattern(models.RecurMonthly, 1, start)

	dates := Project(p, day(2026, time.April, 30))
	require.Len(t, dates, 4)
	assert.Equal(t, day(2026, time.January, 31), dates[0])
	assert.Equal(t, day(2026, time.February, 28), dates[1])
	assert.Equal(t, day(2026, time.March, 31), dates[2])
	assert.Equal(t, day(2026, time.April, 30), dates[3])
}

func TestProjectMonthlyUseLastDay(t *testing.T) {
	start := day(2026, time.January, 31)
	p := pattern(models.RecurMonthly, 1, start)
	p.UseLastDay = true

	dates := Project(p, day(2026, time.March, 31))
	require.Len(t, dates, 3)
	assert.Equal(t, 31, dates[0].Day())
	assert.Equal(t, 28, dates[1].Day())
	assert.Equal(t, 31, dates[2].Day())
}

func TestProjectYearly(t *testing.T) {
	start := day(2026, time.June, 15)
	p := pattern(models.RecurYearly, 1, start)

	dates := Project(p, day(2028, time.December, 31))
	require.Len(t, dates, 3)
	for i, d := range dates {
		assert.Equal(t, 2026+i, d.Year())
		assert.Equal(t, time.June, d.Month())
		assert.Equal(t, 15, d.Day())
	}
}

func TestProjectPendingSkipsGenerated(t *testing.T) {
	start := day(2026, time.March, 1)
	p := pattern(models.RecurDaily, 1, start)
	last := day(2026, time.March, 5)
	p.LastGenerated = &last

	dates := ProjectPending(p, day(2026, time.March, 10))
	require.NotEmpty(t, dates)
	assert.Equal(t, day(2026, time.March, 6), dates[0])
	for _, d := range dates {
		assert.True(t, d.After(last))
	}
}

func TestMaterialize(t *testing.T) {
	p := pattern(models.RecurDaily, 1, day(2026, time.March, 1))
	p.AssigneeID = "u2"
	p.Description = "daily sync"

	dates := Project(p, day(2026, time.March, 3))
	tasks := Materialize(p, dates)
	require.Len(t, tasks, 3)

	first := tasks[0]
	assert.Equal(t, "Standup (2026-03-01)", first.Title)
	assert.Equal(t, models.StatusTodo, first.Status)
	assert.Equal(t, models.PriorityMedium, first.Priority)
	assert.Equal(t, "u2", first.AssigneeID)
	assert.Equal(t, "u1", first.ReporterID)
	assert.Equal(t, "pat-1", first.RecurringPatternID)
	require.NotNil(t, first.DueDate)
	assert.Equal(t, dates[0], *first.DueDate)

	// Each instance keeps its own due date.
	assert.NotEqual(t, tasks[0].DueDate, tasks[1].DueDate)
}
