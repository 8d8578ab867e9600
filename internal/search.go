package internal

import (
	"errors"
	"fmt"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"os"
	"strings"
	"time"
)

type QueryMode string

const (
	// QueryModeCombinations fetches one offer list per (departure, return) pair
	QueryModeCombinations QueryMode = "combinations"
	// QueryModeCalendar fetches the month price grid once per route
	QueryModeCalendar QueryMode = "calendar"
)

// RouteSearch is a configured route tracked over time.
//
// The first eight fields form the identity of the search: two configurations
// differing in any of them are distinct searches. The remaining fields only
// shape how the source is queried.
type RouteSearch struct {
	Origin            string `yaml:"origin"`
	Destination       string `yaml:"destination"`
	EarliestDeparture string `yaml:"earliest_departure"`
	LatestReturn      string `yaml:"latest_return"`
	MinStayDays       int    `yaml:"min_stay_days"`
	MaxStayDays       int    `yaml:"max_stay_days"`
	MaxStops          *int   `yaml:"max_stops"`
	MaxDurationHours  *int   `yaml:"max_duration_hours"`

	Mode              QueryMode `yaml:"mode"`
	OneWay            bool      `yaml:"one_way"`
	CheapestFirst     *bool     `yaml:"cheapest_first"`
	MoreFlights       bool      `yaml:"more_flights"`
	TopN              *int      `yaml:"top_n"`
	AllowUnknownStops bool      `yaml:"allow_unknown_stops"`
}

func (s RouteSearch) String() string {
	return fmt.Sprintf("%s->%s", s.Origin, s.Destination)
}

func (s RouteSearch) QueryMode() QueryMode {
	if s.Mode == "" {
		return QueryModeCombinations
	}

	return s.Mode
}

func (s RouteSearch) SortCheapestFirst() bool {
	return s.CheapestFirst == nil || *s.CheapestFirst
}

// Criteria converts the route constraints to filter criteria.
// Grid cells of the calendar view carry neither stops nor duration,
// so only the top-n limit applies in calendar mode.
func (s RouteSearch) Criteria() FilterCriteria {
	criteria := FilterCriteria{TopN: s.TopN}
	if s.QueryMode() == QueryModeCalendar {
		return criteria
	}

	criteria.MaxStops = s.MaxStops
	if s.MaxDurationHours != nil {
		d := time.Duration(*s.MaxDurationHours) * time.Hour
		criteria.MaxDuration = &d
	}

	return criteria
}

// RequireStops tells whether nodes with unparseable stops are dropped during extraction.
func (s RouteSearch) RequireStops() bool {
	return s.QueryMode() != QueryModeCalendar && !s.AllowUnknownStops
}

func (s RouteSearch) Validate() error {
	if strings.TrimSpace(s.Origin) == "" {
		return errors.New("origin is empty")
	}

	if strings.TrimSpace(s.Destination) == "" {
		return errors.New("destination is empty")
	}

	switch s.QueryMode() {
	case QueryModeCombinations, QueryModeCalendar:
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}

	if s.TopN != nil && *s.TopN < 0 {
		return fmt.Errorf("top_n must not be negative, got %d", *s.TopN)
	}

	return nil
}

// LoadSearches reads the ordered route list from a YAML (or JSON) file.
// A missing, empty or malformed file means there is nothing to do and yields no searches.
func LoadSearches(path string, log logrus.FieldLogger) []RouteSearch {
	log = log.WithField("RoutesFile", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Warn("routes file not readable, nothing to do")
		return nil
	}

	var searches []RouteSearch
	if err = yaml.Unmarshal(raw, &searches); err != nil {
		log.WithError(err).Warn("routes file is not a valid list, nothing to do")
		return nil
	}

	if len(searches) == 0 {
		log.Warn("routes file is empty, nothing to do")
		return nil
	}

	valid := make([]RouteSearch, 0, len(searches))
	for i, search := range searches {
		if err = search.Validate(); err != nil {
			log.WithError(err).WithField("RouteIndex", i).Warn("skipping invalid route")
			continue
		}

		if search.QueryMode() == QueryModeCalendar && (search.MaxStops != nil || search.MaxDurationHours != nil) {
			log.WithField("Route", search.String()).
				Warn("stop and duration limits are not applied in calendar mode")
		}

		valid = append(valid, search)
	}

	return valid
}
