// Package query builds result page addresses for a flight search.
package query

import (
	"fmt"
	"github.com/csr-ugra/flight-price-parser/internal/util"
	"strings"
	"time"
)

const DefaultBaseUrl = "https://www.google.com/travel/flights"

type Query struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ReturnDate    *time.Time
	OneWay        bool
}

type Builder interface {
	// Build returns the page address and the encoded query it was built from.
	Build(q Query) (url string, encoded string)
}

// GoogleFlights builds natural-language search queries.
type GoogleFlights struct {
	BaseUrl string
}

func NewGoogleFlights() GoogleFlights {
	return GoogleFlights{BaseUrl: DefaultBaseUrl}
}

func (g GoogleFlights) Build(q Query) (string, string) {
	var text string
	if q.OneWay || q.ReturnDate == nil {
		text = fmt.Sprintf("Flights to %s from %s on %s oneway", q.Destination, q.Origin, util.FormatDate(q.DepartureDate))
	} else {
		text = fmt.Sprintf("Flights to %s from %s on %s return %s", q.Destination, q.Origin, util.FormatDate(q.DepartureDate), util.FormatDate(*q.ReturnDate))
	}

	encoded := strings.ReplaceAll(text, " ", "%20")

	base := g.BaseUrl
	if base == "" {
		base = DefaultBaseUrl
	}

	return fmt.Sprintf("%s?q=%s", base, encoded), encoded
}
