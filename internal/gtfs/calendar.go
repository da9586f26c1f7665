package gtfs

import (
	"fmt"
	"sort"
	"time"

	"transitd/internal/domain"
)

const dateLayout = "20060102"

// OperatesOn implements spec.md §4.5: calendar_dates exceptions win over the
// regular calendar window, which wins over "no service".
func (s *Snapshot) OperatesOn(serviceID string, date time.Time) bool {
	dateStr := date.Format(dateLayout)

	for _, cd := range s.CalendarDates[serviceID] {
		if cd.Date == dateStr {
			return cd.Type == domain.ExceptionAdded
		}
	}

	cal, ok := s.Calendars[serviceID]
	if !ok {
		return false
	}
	if dateStr < cal.StartDate || dateStr > cal.EndDate {
		return false
	}
	// time.Weekday: Sunday=0..Saturday=6; Calendar.Weekday is Mon..Sun.
	wd := int(date.Weekday())
	idx := (wd + 6) % 7
	return cal.Weekday[idx]
}

// RouteOperatesOn returns true iff any trip of routeID has a service that
// operates on date.
func (s *Snapshot) RouteOperatesOn(routeID string, date time.Time) bool {
	for _, tripID := range s.TripsByRoute[routeID] {
		trip := s.Trips[tripID]
		if trip == nil {
			continue
		}
		if s.OperatesOn(trip.ServiceID, date) {
			return true
		}
	}
	return false
}

// ValidCalendarDays enumerates every date a route operates on, per
// spec.md §4.5: the regular calendar window bit-masked by weekday, minus
// removed exceptions, plus added exceptions, unioned across every
// service_id the route's trips reference. When no calendar.txt record
// exists for a service, only its calendar_dates additions count.
func (s *Snapshot) ValidCalendarDays(routeID string) []time.Time {
	serviceIDs := make(map[string]bool)
	for _, tripID := range s.TripsByRoute[routeID] {
		if trip := s.Trips[tripID]; trip != nil {
			serviceIDs[trip.ServiceID] = true
		}
	}

	days := make(map[string]time.Time)
	for serviceID := range serviceIDs {
		if cal, ok := s.Calendars[serviceID]; ok {
			start, errS := time.Parse(dateLayout, cal.StartDate)
			end, errE := time.Parse(dateLayout, cal.EndDate)
			if errS == nil && errE == nil {
				removed := make(map[string]bool)
				for _, cd := range s.CalendarDates[serviceID] {
					if cd.Type == domain.ExceptionRemoved {
						removed[cd.Date] = true
					}
				}
				for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
					idx := (int(d.Weekday()) + 6) % 7
					ds := d.Format(dateLayout)
					if cal.Weekday[idx] && !removed[ds] {
						days[ds] = d
					}
				}
			}
		}
		for _, cd := range s.CalendarDates[serviceID] {
			if cd.Type == domain.ExceptionAdded {
				if d, err := time.Parse(dateLayout, cd.Date); err == nil {
					days[cd.Date] = d
				}
			}
		}
	}

	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// ServiceDaysString groups ValidCalendarDays into contiguous ranges
// (gap <= 1 day merges) and renders "YYYY-MM-DD[ to YYYY-MM-DD]; ...".
func ServiceDaysString(days []time.Time) string {
	if len(days) == 0 {
		return ""
	}

	type span struct{ start, end time.Time }
	var spans []span
	cur := span{start: days[0], end: days[0]}
	for _, d := range days[1:] {
		if d.Sub(cur.end) <= 48*time.Hour {
			cur.end = d
		} else {
			spans = append(spans, cur)
			cur = span{start: d, end: d}
		}
	}
	spans = append(spans, cur)

	out := ""
	for i, sp := range spans {
		if i > 0 {
			out += "; "
		}
		if sp.start.Equal(sp.end) {
			out += sp.start.Format("2006-01-02")
		} else {
			out += fmt.Sprintf("%s to %s", sp.start.Format("2006-01-02"), sp.end.Format("2006-01-02"))
		}
	}
	return out
}
