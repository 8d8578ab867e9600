package cmd

import (
	"context"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/csr-ugra/flight-price-parser/internal/util"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/time/rate"
	"testing"
	"time"
)

func loadConfig(t *testing.T) *util.Config {
	t.Helper()

	config, err := util.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	return config
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-dry", "-schedule", "0 11 * * *"})
	if err != nil {
		t.Fatal(err)
	}
	if !opts.dryRun || opts.migrate || opts.schedule != "0 11 * * *" {
		t.Errorf("unexpected options %+v", opts)
	}

	if _, err = parseFlags([]string{"-schedule", "at eleven"}); err == nil {
		t.Error("expected an error for an invalid schedule")
	}

	if _, err = parseFlags([]string{"-unknown"}); err == nil {
		t.Error("expected an error for an unknown flag")
	}
}

func TestFetchConfig(t *testing.T) {
	t.Setenv("NAVIGATION_TIMEOUT", "30s")
	t.Setenv("FETCH_RETRIES", "5")
	t.Setenv("RETRY_BASE_DELAY", "")

	config := loadConfig(t)

	cfg, err := fetchConfig(config)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.NavigationTimeout != 30*time.Second || cfg.MaxAttempts != 5 || cfg.RetryBaseDelay != 2*time.Second {
		t.Errorf("unexpected fetch config %+v", cfg)
	}
}

func TestNewLimiter(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "12")

	limiter, err := newLimiter(loadConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if limiter.Burst() != 1 || limiter.Limit() != rate.Every(5*time.Second) {
		t.Errorf("unexpected limiter %v/%d", limiter.Limit(), limiter.Burst())
	}
}

func TestDryRunStore(t *testing.T) {
	logger, hook := test.NewNullLogger()
	store := newDryRunStore(logger)
	ctx := context.Background()

	stops := 1
	a := internal.RouteSearch{Origin: "VIE", Destination: "LHR", EarliestDeparture: "2026-01-01", LatestReturn: "2026-01-10", MinStayDays: 7, MaxStayDays: 8}
	b := a
	b.MaxStops = &stops
	sameAsA := a
	sameAsA.Mode = internal.QueryModeCalendar

	idA, _ := store.FindOrCreateSearch(ctx, a)
	idB, _ := store.FindOrCreateSearch(ctx, b)
	idA2, _ := store.FindOrCreateSearch(ctx, sameAsA)

	if idA == idB {
		t.Error("searches differing in max stops must get different ids")
	}
	if idA != idA2 {
		t.Error("run options must not change the search identity")
	}

	persisted, err := store.AppendOffers(ctx, idA, []internal.FlightOffer{{Price: 100}})
	if err != nil || persisted != 0 {
		t.Errorf("dry run must not persist, got %d, %v", persisted, err)
	}
	if len(hook.AllEntries()) == 0 {
		t.Error("expected the dry run to log what it would save")
	}
}
