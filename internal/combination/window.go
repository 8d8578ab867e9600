// Package combination enumerates the departure/return date pairs of a route's travel window.
package combination

import (
	"fmt"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/csr-ugra/flight-price-parser/internal/util"
	"iter"
	"time"
)

const day = 24 * time.Hour

// Window is the travel window of a route: departures on or after EarliestDeparture,
// returns on or before LatestReturn, stays between MinStayDays and MaxStayDays inclusive.
type Window struct {
	EarliestDeparture time.Time
	LatestReturn      time.Time
	MinStayDays       int
	MaxStayDays       int
}

func NewWindow(earliestDeparture, latestReturn time.Time, minStayDays, maxStayDays int) (Window, error) {
	if minStayDays < 0 || maxStayDays < 0 {
		return Window{}, &internal.InvalidRangeError{
			Reason: fmt.Sprintf("stay length must not be negative, got %d..%d", minStayDays, maxStayDays),
		}
	}

	if minStayDays > maxStayDays {
		return Window{}, &internal.InvalidRangeError{
			Reason: fmt.Sprintf("min stay %d is greater than max stay %d", minStayDays, maxStayDays),
		}
	}

	return Window{
		EarliestDeparture: truncate(earliestDeparture),
		LatestReturn:      truncate(latestReturn),
		MinStayDays:       minStayDays,
		MaxStayDays:       maxStayDays,
	}, nil
}

// ParseWindow builds a Window from ISO dates (2006-01-02).
func ParseWindow(earliestDeparture, latestReturn string, minStayDays, maxStayDays int) (Window, error) {
	from, err := util.ParseDate(earliestDeparture)
	if err != nil {
		return Window{}, &internal.InvalidRangeError{Reason: "earliest departure", Err: err}
	}

	to, err := util.ParseDate(latestReturn)
	if err != nil {
		return Window{}, &internal.InvalidRangeError{Reason: "latest return", Err: err}
	}

	return NewWindow(from, to, minStayDays, maxStayDays)
}

func FromSearch(s internal.RouteSearch) (Window, error) {
	return ParseWindow(s.EarliestDeparture, s.LatestReturn, s.MinStayDays, s.MaxStayDays)
}

// LatestDeparture is the last departure date that still fits the shortest stay.
func (w Window) LatestDeparture() time.Time {
	return w.LatestReturn.AddDate(0, 0, -w.MinStayDays)
}

// All yields every valid combination ordered by departure date, then by stay length.
// Each call starts a new enumeration.
func (w Window) All() iter.Seq[internal.DateCombination] {
	return func(yield func(internal.DateCombination) bool) {
		latestDeparture := w.LatestDeparture()

		for departure := w.EarliestDeparture; !departure.After(latestDeparture); departure = departure.AddDate(0, 0, 1) {
			for stay := w.MinStayDays; stay <= w.MaxStayDays; stay++ {
				ret := departure.AddDate(0, 0, stay)
				if ret.After(w.LatestReturn) {
					break
				}

				if !yield(internal.DateCombination{DepartureDate: departure, ReturnDate: ret, StayDays: stay}) {
					return
				}
			}
		}
	}
}

func (w Window) Count() int {
	count := 0
	for range w.All() {
		count++
	}

	return count
}

// Months returns the number of calendar months a departure can fall into.
func (w Window) Months() int {
	return util.MonthsSpanned(w.EarliestDeparture, w.LatestDeparture())
}

// Contains reports whether departure (and ret, when set) lie inside the window.
func (w Window) Contains(departure time.Time, ret *time.Time) bool {
	departure = truncate(departure)
	if departure.Before(w.EarliestDeparture) || departure.After(w.LatestDeparture()) {
		return false
	}

	if ret == nil {
		return true
	}

	stay := int(truncate(*ret).Sub(departure) / day)
	return stay >= w.MinStayDays && stay <= w.MaxStayDays && !truncate(*ret).After(w.LatestReturn)
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
