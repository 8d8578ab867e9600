package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/csr-ugra/flight-price-parser/internal/browser"
	"github.com/csr-ugra/flight-price-parser/internal/collector"
	"github.com/csr-ugra/flight-price-parser/internal/db"
	"github.com/csr-ugra/flight-price-parser/internal/log"
	"github.com/csr-ugra/flight-price-parser/internal/query"
	"github.com/csr-ugra/flight-price-parser/internal/util"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"
	"time"
)

type options struct {
	dryRun   bool
	migrate  bool
	schedule string
}

func parseFlags(args []string) (options, error) {
	var opts options

	fs := flag.NewFlagSet("flight-price-parser", flag.ContinueOnError)
	fs.BoolVar(&opts.dryRun, "dry", false, "dry run, nothing is written to the db")
	fs.BoolVar(&opts.migrate, "migrate", false, "create missing tables before collecting")
	fs.StringVar(&opts.schedule, "schedule", "", "cron expression to collect on (e.g. \"0 11 * * *\"), collects once when empty")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.schedule != "" {
		if _, err := cron.ParseStandard(opts.schedule); err != nil {
			return opts, fmt.Errorf("invalid schedule %q: %w", opts.schedule, err)
		}
	}

	return opts, nil
}

func Run(ctx context.Context, config *util.Config, logger log.Logger, args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	if opts.dryRun {
		logger = logger.WithField("DryRun", opts.dryRun)
	}

	store, closeStore, err := newStore(ctx, config, opts, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	launcher, err := newLauncher(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := launcher.Close(); err != nil {
			logger.WithError(err).Warn("failed to close browser")
		}
	}()

	fetchCfg, err := fetchConfig(config)
	if err != nil {
		return err
	}

	limiter, err := newLimiter(config)
	if err != nil {
		return err
	}

	workers, err := config.Workers.Int()
	if err != nil {
		return err
	}

	calendarMaxPages, err := config.CalendarMaxPages.Int()
	if err != nil {
		return err
	}

	runTimeout, err := config.RunTimeout.Duration()
	if err != nil {
		return err
	}

	c := collector.New(collector.Deps{
		Store:            store,
		Fetcher:          browser.NewFetcher(launcher, limiter, fetchCfg),
		Query:            query.NewGoogleFlights(),
		Log:              logger,
		Workers:          workers,
		CalendarMaxPages: calendarMaxPages,
	})

	runOnce := func(ctx context.Context) collector.Summary {
		if runTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, runTimeout)
			defer cancel()
		}

		searches := internal.LoadSearches(config.RoutesFile.Value, logger)
		return c.RunOnce(ctx, searches)
	}

	if opts.schedule == "" {
		runOnce(ctx)
		return nil
	}

	return runScheduled(ctx, opts.schedule, runOnce, logger)
}

// runScheduled collects on every tick of schedule until ctx is done. Ticks arriving
// while a collection is still running are skipped.
func runScheduled(ctx context.Context, schedule string, runOnce func(context.Context) collector.Summary, logger log.Logger) error {
	cronLogger := cron.PrintfLogger(logger)
	scheduler := cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.SkipIfStillRunning(cronLogger)))

	if _, err := scheduler.AddFunc(schedule, func() { runOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule collection: %w", err)
	}

	scheduler.Start()
	logger.WithField("Schedule", schedule).Info("collection scheduled at {Schedule}")

	<-ctx.Done()

	logger.Info("stopping scheduler, waiting for running collection")
	<-scheduler.Stop().Done()

	return nil
}

func newStore(ctx context.Context, config *util.Config, opts options, logger log.Logger) (collector.Store, func(), error) {
	if opts.dryRun {
		if opts.migrate {
			logger.Warn("dry run, skipping migration")
		}

		return newDryRunStore(logger), func() {}, nil
	}

	connection, err := db.GetConnection(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	closeConnection := func() {
		if err := connection.Close(); err != nil {
			logger.WithError(err).Warn("failed to close db connection")
		}
	}

	if opts.migrate {
		logger.Debug("creating missing tables")
		if err = db.CreateSchema(ctx, connection); err != nil {
			closeConnection()
			return nil, nil, fmt.Errorf("failed to create schema: %w", err)
		}
		logger.Info("db schema is up to date")
	}

	return db.NewRepository(connection, logger), closeConnection, nil
}

func newLauncher(ctx context.Context, config *util.Config) (browser.Launcher, error) {
	switch config.BrowserDriver.Value {
	case "rod":
		return browser.NewRodLauncher(config.DevtoolsWebsocketUrl.Value)
	case "chromedp", "":
		return browser.NewChromedpLauncher(ctx, config.DevtoolsWebsocketUrl.Value), nil
	default:
		return nil, errors.New("unknown browser driver " + config.BrowserDriver.Value)
	}
}

func newLimiter(config *util.Config) (*rate.Limiter, error) {
	perMinute, err := config.RateLimitPerMinute.Int()
	if err != nil {
		return nil, err
	}

	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1), nil
}

func fetchConfig(config *util.Config) (browser.Config, error) {
	cfg := browser.DefaultConfig()

	var err error
	if cfg.NavigationTimeout, err = config.NavigationTimeout.Duration(); err != nil {
		return cfg, err
	}
	if cfg.DataWaitTimeout, err = config.DataWaitTimeout.Duration(); err != nil {
		return cfg, err
	}
	if cfg.FetchTimeout, err = config.FetchTimeout.Duration(); err != nil {
		return cfg, err
	}
	if cfg.RetryBaseDelay, err = config.RetryBaseDelay.Duration(); err != nil {
		return cfg, err
	}
	if cfg.MaxAttempts, err = config.FetchRetries.Int(); err != nil {
		return cfg, err
	}

	return cfg, nil
}
