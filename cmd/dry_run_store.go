package cmd

import (
	"context"
	"fmt"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"sync"
)

// dryRunStore hands out process-local search ids and only logs the offers it receives.
type dryRunStore struct {
	log logrus.FieldLogger

	mu  sync.Mutex
	ids map[string]internal.SearchId
}

func newDryRunStore(log logrus.FieldLogger) *dryRunStore {
	return &dryRunStore{
		log: log.WithField("RunId", uuid.New().String()),
		ids: make(map[string]internal.SearchId),
	}
}

func identity(s internal.RouteSearch) string {
	optional := func(v *int) string {
		if v == nil {
			return "null"
		}
		return fmt.Sprint(*v)
	}

	return fmt.Sprintf("%s|%s|%s|%s|%d|%d|%s|%s",
		s.Origin, s.Destination, s.EarliestDeparture, s.LatestReturn,
		s.MinStayDays, s.MaxStayDays, optional(s.MaxStops), optional(s.MaxDurationHours))
}

func (s *dryRunStore) FindOrCreateSearch(_ context.Context, search internal.RouteSearch) (internal.SearchId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identity(search)
	id, ok := s.ids[key]
	if !ok {
		id = internal.SearchId(len(s.ids) + 1)
		s.ids[key] = id
	}

	s.log.WithFields(logrus.Fields{"SearchId": id, "Route": search.String()}).
		Debug("dry run, not saving search {SearchId} for {Route}")

	return id, nil
}

func (s *dryRunStore) AppendOffers(_ context.Context, id internal.SearchId, offers []internal.FlightOffer) (int, error) {
	for _, offer := range offers {
		entry := s.log.WithFields(logrus.Fields{
			"SearchId":      id,
			"Price":         offer.Price,
			"DepartureDate": offer.DepartureDate.Format("2006-01-02"),
			"Duration":      offer.Duration,
		})
		if offer.Airline != nil {
			entry = entry.WithField("Airline", *offer.Airline)
		}
		if offer.Stops != nil {
			entry = entry.WithField("Stops", *offer.Stops)
		}

		entry.Debug("dry run, not saving offer")
	}

	s.log.WithFields(logrus.Fields{"SearchId": id, "OfferCount": len(offers)}).
		Info("dry run, skipped saving {OfferCount} offers")

	return 0, nil
}
