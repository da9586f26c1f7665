package gtfs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"transitd/internal/domain"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func TestOperatesOnCalendarWindow(t *testing.T) {
	snap := &Snapshot{
		Calendars: map[string]*domain.Calendar{
			"weekday": {
				ServiceID: "weekday",
				Weekday:   [7]bool{true, true, true, true, true, false, false},
				StartDate: "20260101",
				EndDate:   "20261231",
			},
		},
		CalendarDates: map[string][]domain.CalendarDate{},
	}

	// 2026-07-29 is a Wednesday.
	assert.True(t, snap.OperatesOn("weekday", mustDate(t, "20260729")))
	// 2026-08-01 is a Saturday.
	assert.False(t, snap.OperatesOn("weekday", mustDate(t, "20260801")))
	// Outside the calendar window entirely.
	assert.False(t, snap.OperatesOn("weekday", mustDate(t, "20270101")))
}

func TestOperatesOnExceptionOverridesCalendar(t *testing.T) {
	snap := &Snapshot{
		Calendars: map[string]*domain.Calendar{
			"weekday": {
				ServiceID: "weekday",
				Weekday:   [7]bool{true, true, true, true, true, false, false},
				StartDate: "20260101",
				EndDate:   "20261231",
			},
		},
		CalendarDates: map[string][]domain.CalendarDate{
			"weekday": {
				{ServiceID: "weekday", Date: "20260729", Type: domain.ExceptionRemoved}, // holiday
				{ServiceID: "weekday", Date: "20260801", Type: domain.ExceptionAdded},   // special Saturday service
			},
		},
	}

	assert.False(t, snap.OperatesOn("weekday", mustDate(t, "20260729")))
	assert.True(t, snap.OperatesOn("weekday", mustDate(t, "20260801")))
}

func TestOperatesOnUnknownServiceIsFalse(t *testing.T) {
	snap := &Snapshot{Calendars: map[string]*domain.Calendar{}, CalendarDates: map[string][]domain.CalendarDate{}}
	assert.False(t, snap.OperatesOn("ghost", mustDate(t, "20260729")))
}

func TestOperatesOnIsDeterministic(t *testing.T) {
	snap := &Snapshot{
		Calendars: map[string]*domain.Calendar{
			"weekday": {ServiceID: "weekday", Weekday: [7]bool{true, true, true, true, true, false, false}, StartDate: "20260101", EndDate: "20261231"},
		},
		CalendarDates: map[string][]domain.CalendarDate{},
	}
	date := mustDate(t, "20260729")
	first := snap.OperatesOn("weekday", date)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, snap.OperatesOn("weekday", date))
	}
}

func TestValidCalendarDaysOnlyExceptions(t *testing.T) {
	snap := &Snapshot{
		Trips: map[string]*domain.Trip{
			"t1": {ID: "t1", RouteID: "r1", ServiceID: "special"},
		},
		TripsByRoute: map[string][]string{"r1": {"t1"}},
		Calendars:    map[string]*domain.Calendar{},
		CalendarDates: map[string][]domain.CalendarDate{
			"special": {
				{ServiceID: "special", Date: "20260701", Type: domain.ExceptionAdded},
				{ServiceID: "special", Date: "20260705", Type: domain.ExceptionAdded},
			},
		},
	}

	days := snap.ValidCalendarDays("r1")
	assert.Len(t, days, 2)
	assert.Equal(t, "2026-07-01", days[0].Format("2006-01-02"))
}

func TestServiceDaysStringMergesAdjacentRanges(t *testing.T) {
	days := []time.Time{
		mustDate(t, "20260701"),
		mustDate(t, "20260702"),
		mustDate(t, "20260703"),
		mustDate(t, "20260710"),
	}
	got := ServiceDaysString(days)
	assert.Equal(t, "2026-07-01 to 2026-07-03; 2026-07-10", got)
}
