package db

import (
	"context"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
)

// Repository stores searches and their price observations in postgres.
type Repository struct {
	connection bun.IDB
	log        logrus.FieldLogger
}

func NewRepository(connection bun.IDB, log logrus.FieldLogger) *Repository {
	return &Repository{connection: connection, log: log}
}

func (r *Repository) FindOrCreateSearch(ctx context.Context, s internal.RouteSearch) (internal.SearchId, error) {
	m, err := NewFlightSearchModel(s)
	if err != nil {
		return 0, &internal.PersistenceError{Op: "find or create search", Err: err}
	}

	id, created, err := FindOrCreateSearch(ctx, r.connection, m)
	if err != nil {
		return 0, &internal.PersistenceError{Op: "find or create search", Err: err}
	}

	log := r.log.WithFields(logrus.Fields{
		"SearchId": id,
		"Route":    s.String(),
	})
	if created {
		log.Info("created search {SearchId} for {Route}")
	} else {
		log.Debug("found search {SearchId} for {Route}")
	}

	return internal.SearchId(id), nil
}

func (r *Repository) AppendOffers(ctx context.Context, id internal.SearchId, offers []internal.FlightOffer) (int, error) {
	affected, err := SaveValues(ctx, r.connection, NewPriceTimeSeriesModels(id, offers))
	if err != nil {
		return 0, &internal.PersistenceError{Op: "append offers", Err: err}
	}

	return affected, nil
}
