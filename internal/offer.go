package internal

import "time"

type SearchId int64

// DateCombination is one candidate (departure, return) pair of a route window.
type DateCombination struct {
	DepartureDate time.Time
	ReturnDate    time.Time
	StayDays      int
}

// RawResultNode is one unparsed result item as captured from a result page.
// Empty strings mean the field was not present on the page.
type RawResultNode struct {
	// Key is the natural identity of the node, e.g. the ISO date of a calendar cell
	Key           string
	Airline       string
	Duration      string
	Price         string
	Stops         string
	DepartureText string
	ReturnText    string
}

type FlightOffer struct {
	Airline  *string
	Price    int
	Stops    *int
	Duration string
	// nil when Duration could not be parsed
	DurationMinutes *int
	DepartureDate   time.Time
	ReturnDate      *time.Time
	ScrapedAt       time.Time
}

type FilterCriteria struct {
	MaxStops    *int
	MaxDuration *time.Duration
	TopN        *int
}

func (c FilterCriteria) IsZero() bool {
	return c.MaxStops == nil && c.MaxDuration == nil && c.TopN == nil
}
