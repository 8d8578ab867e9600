package db

import (
	"context"
	"database/sql"
	"errors"
	"github.com/csr-ugra/flight-price-parser/internal/util"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

func GetConnection(config *util.Config) (*bun.DB, error) {
	if err := config.RequireDbConnectionString(); err != nil {
		return nil, err
	}

	db := newDB(config.DbConnectionString.Value)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

func newDB(dsn string) *bun.DB {
	sqlDb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqlDb, pgdialect.New())

	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(false),

		// BUNDEBUG=1 logs failed queries
		// BUNDEBUG=2 logs all queries
		bundebug.FromEnv("BUNDEBUG")))

	return db
}

// requires postgres 15 for NULLS NOT DISTINCT
const createSearchIdentityIndex = `CREATE UNIQUE INDEX IF NOT EXISTS flight_searches_identity_idx
ON flight_searches (origin, destination, earliest_departure, latest_return, min_stay_days, max_stay_days, max_stops, max_duration_hours)
NULLS NOT DISTINCT`

func CreateSchema(ctx context.Context, connection bun.IDB) error {
	if _, err := connection.NewCreateTable().Model((*FlightSearchModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}

	if _, err := connection.NewRaw(createSearchIdentityIndex).Exec(ctx); err != nil {
		return err
	}

	if _, err := createPriceTable(connection).Exec(ctx); err != nil {
		return err
	}

	_, err := connection.NewCreateIndex().
		Model((*PriceTimeSeriesModel)(nil)).
		Index("flight_price_time_series_search_idx").
		IfNotExists().
		Column("search_id", "scraped_at").
		Exec(ctx)

	return err
}

func createPriceTable(connection bun.IDB) *bun.CreateTableQuery {
	return connection.NewCreateTable().
		Model((*PriceTimeSeriesModel)(nil)).
		IfNotExists().
		ForeignKey(`("search_id") REFERENCES "flight_searches" ("id") ON DELETE CASCADE`)
}

func selectSearch(connection bun.IDB, m *FlightSearchModel) *bun.SelectQuery {
	return connection.NewSelect().
		Model(m).
		Where("fs.origin = ?", m.Origin).
		Where("fs.destination = ?", m.Destination).
		Where("fs.earliest_departure = ?::date", util.FormatDate(m.EarliestDeparture)).
		Where("fs.latest_return = ?::date", util.FormatDate(m.LatestReturn)).
		Where("fs.min_stay_days = ?", m.MinStayDays).
		Where("fs.max_stay_days = ?", m.MaxStayDays).
		Where("fs.max_stops IS NOT DISTINCT FROM ?", m.MaxStops).
		Where("fs.max_duration_hours IS NOT DISTINCT FROM ?", m.MaxDurationHours).
		Limit(1)
}

func findSearch(ctx context.Context, connection bun.IDB, m *FlightSearchModel) (found bool, err error) {
	err = selectSearch(connection, m).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	return err == nil, err
}

// FindOrCreateSearch returns the id of the search with exactly the identity of m,
// creating it first when there is none. Concurrent callers get the same id.
func FindOrCreateSearch(ctx context.Context, connection bun.IDB, m *FlightSearchModel) (id int64, created bool, err error) {
	found, err := findSearch(ctx, connection, m)
	if err != nil {
		return 0, false, err
	}
	if found {
		return m.Id, false, nil
	}

	res, err := connection.NewInsert().Model(m).On("CONFLICT DO NOTHING").Exec(ctx)
	if err != nil {
		return 0, false, err
	}

	if c, err := res.RowsAffected(); err == nil && c > 0 && m.Id != 0 {
		return m.Id, true, nil
	}

	found, err = findSearch(ctx, connection, m)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, errors.New("search neither found nor created")
	}

	return m.Id, false, nil
}

func SaveValues(ctx context.Context, connection bun.IDB, values []*PriceTimeSeriesModel) (affectedCount int, err error) {
	if len(values) == 0 {
		return 0, nil
	}

	res, err := connection.NewInsert().Model(&values).Exec(ctx)
	if err != nil {
		return 0, err
	}

	c, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(c), err
}
