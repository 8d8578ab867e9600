// Package filter narrows a list of offers down to the ones matching a route's constraints.
package filter

import (
	"github.com/csr-ugra/flight-price-parser/internal"
	"time"
)

// Apply keeps the offers within the criteria, in their original order, then takes
// at most TopN of them. An offer whose stops or duration are unknown fails the
// corresponding limit. Without criteria the input is returned as is.
func Apply(offers []internal.FlightOffer, criteria internal.FilterCriteria) []internal.FlightOffer {
	if criteria.IsZero() {
		return offers
	}

	result := make([]internal.FlightOffer, 0, len(offers))

	for _, offer := range offers {
		if !withinStops(offer, criteria.MaxStops) || !withinDuration(offer, criteria.MaxDuration) {
			continue
		}

		result = append(result, offer)
	}

	if criteria.TopN != nil && *criteria.TopN < len(result) {
		result = result[:max(*criteria.TopN, 0)]
	}

	return result
}

func withinStops(offer internal.FlightOffer, maxStops *int) bool {
	if maxStops == nil {
		return true
	}

	return offer.Stops != nil && *offer.Stops <= *maxStops
}

func withinDuration(offer internal.FlightOffer, maxDuration *time.Duration) bool {
	if maxDuration == nil {
		return true
	}

	return offer.DurationMinutes != nil && time.Duration(*offer.DurationMinutes)*time.Minute <= *maxDuration
}
