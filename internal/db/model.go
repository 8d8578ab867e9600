package db

import (
	"fmt"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/csr-ugra/flight-price-parser/internal/util"
	"github.com/uptrace/bun"
	"time"
)

type FlightSearchModel struct {
	bun.BaseModel     `bun:"table:flight_searches,alias:fs"`
	Id                int64     `bun:"id,pk,autoincrement"`
	Origin            string    `bun:"origin,notnull"`
	Destination       string    `bun:"destination,notnull"`
	EarliestDeparture time.Time `bun:"earliest_departure,type:date,notnull"`
	LatestReturn      time.Time `bun:"latest_return,type:date,notnull"`
	MinStayDays       int       `bun:"min_stay_days,notnull"`
	MaxStayDays       int       `bun:"max_stay_days,notnull"`
	MaxStops          *int      `bun:"max_stops"`
	MaxDurationHours  *int      `bun:"max_duration_hours"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type PriceTimeSeriesModel struct {
	bun.BaseModel   `bun:"table:flight_price_time_series,alias:fpts"`
	Id              int64      `bun:"id,pk,autoincrement"`
	SearchId        int64      `bun:"search_id,notnull"`
	DepartureDate   time.Time  `bun:"departure_date,type:date,notnull"`
	ReturnDate      *time.Time `bun:"return_date,type:date"`
	Airline         *string    `bun:"airline"`
	Price           int        `bun:"price,notnull"`
	Stops           *int       `bun:"stops"`
	DurationText    string     `bun:"duration_text,notnull"`
	DurationMinutes *int       `bun:"duration_minutes"`
	ScrapedAt       time.Time  `bun:"scraped_at,notnull"`
}

func NewFlightSearchModel(s internal.RouteSearch) (*FlightSearchModel, error) {
	earliest, err := util.ParseDate(s.EarliestDeparture)
	if err != nil {
		return nil, fmt.Errorf("earliest departure: %w", err)
	}

	latest, err := util.ParseDate(s.LatestReturn)
	if err != nil {
		return nil, fmt.Errorf("latest return: %w", err)
	}

	return &FlightSearchModel{
		Origin:            s.Origin,
		Destination:       s.Destination,
		EarliestDeparture: earliest,
		LatestReturn:      latest,
		MinStayDays:       s.MinStayDays,
		MaxStayDays:       s.MaxStayDays,
		MaxStops:          s.MaxStops,
		MaxDurationHours:  s.MaxDurationHours,
	}, nil
}

func NewPriceTimeSeriesModels(id internal.SearchId, offers []internal.FlightOffer) []*PriceTimeSeriesModel {
	models := make([]*PriceTimeSeriesModel, 0, len(offers))

	for _, offer := range offers {
		models = append(models, &PriceTimeSeriesModel{
			SearchId:        int64(id),
			DepartureDate:   offer.DepartureDate,
			ReturnDate:      offer.ReturnDate,
			Airline:         offer.Airline,
			Price:           offer.Price,
			Stops:           offer.Stops,
			DurationText:    offer.Duration,
			DurationMinutes: offer.DurationMinutes,
			ScrapedAt:       offer.ScrapedAt,
		})
	}

	return models
}
