// Package extract turns raw result nodes captured from a result page into typed flight offers.
package extract

import (
	"fmt"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/csr-ugra/flight-price-parser/internal/util"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	// RequireStops drops nodes whose stop count can not be read instead of keeping them with unknown stops.
	RequireStops bool

	DepartureDate time.Time
	ReturnDate    *time.Time

	// StayDays derives the return date of nodes that carry their own departure date.
	StayDays *int

	Now func() time.Time
}

type Stats struct {
	Kept    int
	Skipped int
	Skips   []internal.ExtractionSkip
}

// Parse converts every node it can into an offer. A node that fails any mandatory
// field is skipped and counted, it never fails the whole pass.
func Parse(nodes []internal.RawResultNode, opts Options) (offers []internal.FlightOffer, stats Stats) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	scrapedAt := now().UTC()

	offers = make([]internal.FlightOffer, 0, len(nodes))

	for i, node := range nodes {
		offer, err := parseNode(node, opts, scrapedAt)
		if err != nil {
			stats.Skipped++
			stats.Skips = append(stats.Skips, internal.ExtractionSkip{Index: i, Reason: err.Error()})
			continue
		}

		offers = append(offers, offer)
		stats.Kept++
	}

	return offers, stats
}

func parseNode(node internal.RawResultNode, opts Options, scrapedAt time.Time) (offer internal.FlightOffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	price, ok := ParsePrice(node.Price)
	if !ok {
		return offer, fmt.Errorf("no price in %q", node.Price)
	}

	stops, ok := ParseStops(node.Stops)
	if !ok && opts.RequireStops {
		return offer, fmt.Errorf("no stop count in %q", node.Stops)
	}

	departure, ret, err := nodeDates(node, opts)
	if err != nil {
		return offer, err
	}

	offer = internal.FlightOffer{
		Price:         price,
		Duration:      util.CollapseSpaces(node.Duration),
		DepartureDate: departure,
		ReturnDate:    ret,
		ScrapedAt:     scrapedAt,
	}

	if ok {
		offer.Stops = &stops
	}

	if minutes, ok := ParseDuration(node.Duration); ok {
		offer.DurationMinutes = &minutes
	}

	if airline := util.CollapseSpaces(node.Airline); airline != "" {
		offer.Airline = &airline
	}

	return offer, nil
}

func nodeDates(node internal.RawResultNode, opts Options) (departure time.Time, ret *time.Time, err error) {
	departure, ret = opts.DepartureDate, opts.ReturnDate

	if node.DepartureText != "" {
		if departure, err = util.ParseDate(node.DepartureText); err != nil {
			return departure, nil, fmt.Errorf("bad departure date %q", node.DepartureText)
		}

		ret = nil
		if opts.StayDays != nil {
			r := departure.AddDate(0, 0, *opts.StayDays)
			ret = &r
		}
	}

	if node.ReturnText != "" {
		r, err := util.ParseDate(node.ReturnText)
		if err != nil {
			return departure, nil, fmt.Errorf("bad return date %q", node.ReturnText)
		}
		ret = &r
	}

	return departure, ret, nil
}

// ParsePrice keeps only the digits of the text, "€ 1,234" is 1234.
func ParsePrice(text string) (int, bool) {
	digits := util.DigitsOnly(text)
	if digits == "" {
		return 0, false
	}

	price, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}

	return price, true
}

var leadingNumber = regexp.MustCompile(`^\d+`)

// ParseStops reads "Nonstop" as 0 and otherwise the leading integer ("1 stop", "2 stops").
func ParseStops(text string) (int, bool) {
	if strings.Contains(util.NormalizeStr(text), "nonstop") {
		return 0, true
	}

	token := leadingNumber.FindString(util.CollapseSpaces(text))
	if token == "" {
		return 0, false
	}

	stops, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}

	return stops, true
}

var durationPattern = regexp.MustCompile(`(?i)^(?:(\d+)\s*(?:hours?|hrs?|h))?\s*(?:(\d+)\s*(?:minutes?|mins?|m))?$`)

// maxDurationHours bounds both parts of a duration, larger values are not a flight.
const maxDurationHours = 10000

// ParseDuration accepts "Xh Ym", "Xh" and "Ym", with hr/hrs/hour and min/mins/minute spellings.
func ParseDuration(text string) (minutes int, ok bool) {
	m := durationPattern.FindStringSubmatch(util.CollapseSpaces(text))
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, false
	}

	if m[1] != "" {
		hours, err := strconv.Atoi(m[1])
		if err != nil || hours > maxDurationHours {
			return 0, false
		}
		minutes = hours * 60
	}

	if m[2] != "" {
		mins, err := strconv.Atoi(m[2])
		if err != nil || mins > maxDurationHours*60 {
			return 0, false
		}
		minutes += mins
	}

	return minutes, true
}
