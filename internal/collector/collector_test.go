package collector

import (
	"context"
	"errors"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/csr-ugra/flight-price-parser/internal/browser"
	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

func ptr[T any](v T) *T {
	return &v
}

type fakeStore struct {
	mu          sync.Mutex
	findCalls   int
	ids         map[string]internal.SearchId
	appended    map[internal.SearchId][]internal.FlightOffer
	findErr     error
	appendErr   error
	appendCtxOk bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{ids: map[string]internal.SearchId{}, appended: map[internal.SearchId][]internal.FlightOffer{}}
}

func (s *fakeStore) FindOrCreateSearch(_ context.Context, search internal.RouteSearch) (internal.SearchId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.findCalls++
	if s.findErr != nil {
		return 0, s.findErr
	}

	key := search.String() + search.EarliestDeparture + search.LatestReturn
	if id, ok := s.ids[key]; ok {
		return id, nil
	}

	id := internal.SearchId(len(s.ids) + 1)
	s.ids[key] = id
	return id, nil
}

func (s *fakeStore) AppendOffers(ctx context.Context, id internal.SearchId, offers []internal.FlightOffer) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendCtxOk = ctx.Err() == nil
	if s.appendErr != nil {
		return 0, s.appendErr
	}

	s.appended[id] = append(s.appended[id], offers...)
	return len(offers), nil
}

type fakeFetcher struct {
	mu       sync.Mutex
	requests []browser.Request
	respond  func(req browser.Request) ([]internal.RawResultNode, error)
}

func (f *fakeFetcher) Fetch(_ context.Context, req browser.Request, _ logrus.FieldLogger) ([]internal.RawResultNode, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	return f.respond(req)
}

func (f *fakeFetcher) urls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	urls := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		urls = append(urls, r.Url)
	}
	sort.Strings(urls)
	return urls
}

func twoValidOneMalformed(browser.Request) ([]internal.RawResultNode, error) {
	return []internal.RawResultNode{
		{Airline: "Austrian", Duration: "2 hr 5 min", Price: "€ 120", Stops: "Nonstop"},
		{Airline: "Lufthansa", Duration: "3 hr", Price: "€ 95", Stops: "1 stop"},
		{Airline: "Ryanair", Duration: "2 hr", Price: "Price unavailable", Stops: "Nonstop"},
	}, nil
}

var now = time.Date(2026, time.October, 19, 11, 0, 0, 0, time.UTC)

func route() internal.RouteSearch {
	return internal.RouteSearch{
		Origin:            "VIE",
		Destination:       "LHR",
		EarliestDeparture: "2026-01-01",
		LatestReturn:      "2026-01-03",
		MinStayDays:       1,
		MaxStayDays:       1,
	}
}

func newCollector(store Store, fetcher Fetcher, workers int) (*Collector, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return New(Deps{
		Store:   store,
		Fetcher: fetcher,
		Log:     logger,
		Workers: workers,
		Now:     func() time.Time { return now },
	}), hook
}

func TestRunOnce_EndToEnd(t *testing.T) {
	for _, workers := range []int{1, 4} {
		store := newFakeStore()
		fetcher := &fakeFetcher{respond: twoValidOneMalformed}
		c, _ := newCollector(store, fetcher, workers)

		summary := c.RunOnce(context.Background(), []internal.RouteSearch{route()})

		if store.findCalls != 1 {
			t.Errorf("workers=%d: FindOrCreateSearch called %d times, want 1", workers, store.findCalls)
		}
		if len(store.appended) != 1 {
			t.Fatalf("workers=%d: expected offers for exactly one search id, got %v", workers, store.appended)
		}

		offers := store.appended[1]
		if len(offers) != 4 {
			t.Fatalf("workers=%d: expected 4 offers, got %d", workers, len(offers))
		}
		for _, offer := range offers {
			if !offer.ScrapedAt.Equal(now) || offer.ReturnDate == nil {
				t.Errorf("workers=%d: unexpected offer %+v", workers, offer)
			}
		}

		want := Summary{Routes: 1, Combinations: 2, OffersKept: 4, OffersSkipped: 2, OffersPersisted: 4}
		if diff := cmp.Diff(want, summary); diff != "" {
			t.Errorf("workers=%d: summary mismatch (-want +got):\n%s", workers, diff)
		}

		wantUrls := []string{
			"https://www.google.com/travel/flights?q=Flights%20to%20LHR%20from%20VIE%20on%202026-01-01%20return%202026-01-02",
			"https://www.google.com/travel/flights?q=Flights%20to%20LHR%20from%20VIE%20on%202026-01-02%20return%202026-01-03",
		}
		if diff := cmp.Diff(wantUrls, fetcher.urls()); diff != "" {
			t.Errorf("workers=%d: requested urls mismatch (-want +got):\n%s", workers, diff)
		}
	}
}

func TestRunOnce_FilterCriteriaApplied(t *testing.T) {
	store := newFakeStore()
	c, _ := newCollector(store, &fakeFetcher{respond: twoValidOneMalformed}, 1)

	r := route()
	r.MaxStops = ptr(0)

	summary := c.RunOnce(context.Background(), []internal.RouteSearch{r})

	if summary.OffersPersisted != 2 {
		t.Errorf("expected 2 nonstop offers, got %d", summary.OffersPersisted)
	}
	for _, offer := range store.appended[1] {
		if offer.Stops == nil || *offer.Stops != 0 {
			t.Errorf("unexpected offer with stops %v", offer.Stops)
		}
	}
}

func TestRunOnce_FailedCombinationsDoNotStopRoute(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{respond: func(req browser.Request) ([]internal.RawResultNode, error) {
		if strings.Contains(req.Url, "2026-01-01") {
			return nil, &internal.FetchFailure{Url: req.Url, State: "Navigating", Err: errors.New("timeout")}
		}
		return twoValidOneMalformed(req)
	}}
	c, _ := newCollector(store, fetcher, 2)

	summary := c.RunOnce(context.Background(), []internal.RouteSearch{route()})

	if summary.CombinationsFailed != 1 || summary.OffersPersisted != 2 || summary.RoutesFailed != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestRunOnce_AllCombinationsFailedWarns(t *testing.T) {
	fetcher := &fakeFetcher{respond: func(req browser.Request) ([]internal.RawResultNode, error) {
		return nil, errors.New("unreachable")
	}}
	c, hook := newCollector(newFakeStore(), fetcher, 1)

	c.RunOnce(context.Background(), []internal.RouteSearch{route()})

	found := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && strings.Contains(entry.Message, "every combination failed") {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning when every combination failed")
	}
}

func TestRunOnce_InvalidRouteIsSkipped(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{respond: twoValidOneMalformed}
	c, _ := newCollector(store, fetcher, 1)

	invalid := route()
	invalid.MinStayDays = 5
	invalid.MaxStayDays = 2

	summary := c.RunOnce(context.Background(), []internal.RouteSearch{invalid, route()})

	if summary.Routes != 2 || summary.RoutesFailed != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if store.findCalls != 1 {
		t.Errorf("invalid route must not be stored, FindOrCreateSearch called %d times", store.findCalls)
	}
	if summary.OffersPersisted != 4 {
		t.Errorf("the valid route should still be collected, got %d offers", summary.OffersPersisted)
	}
}

func TestRunOnce_StoreFailureSkipsRoute(t *testing.T) {
	store := newFakeStore()
	store.findErr = &internal.PersistenceError{Op: "find or create search", Err: errors.New("connection refused")}
	fetcher := &fakeFetcher{respond: twoValidOneMalformed}
	c, _ := newCollector(store, fetcher, 1)

	summary := c.RunOnce(context.Background(), []internal.RouteSearch{route(), route()})

	if summary.RoutesFailed != 2 || len(fetcher.urls()) != 0 {
		t.Errorf("unexpected summary %+v with %d fetches", summary, len(fetcher.urls()))
	}
}

func TestRunOnce_CancelledRunPersistsPartialBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newFakeStore()
	fetcher := &fakeFetcher{respond: func(req browser.Request) ([]internal.RawResultNode, error) {
		cancel()
		return twoValidOneMalformed(req)
	}}
	c, _ := newCollector(store, fetcher, 1)

	summary := c.RunOnce(ctx, []internal.RouteSearch{route(), route()})

	if summary.Combinations != 1 || summary.OffersPersisted != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if !store.appendCtxOk {
		t.Error("offers must be persisted with a live context after cancellation")
	}
	if summary.Routes != 1 {
		t.Errorf("the second route must not start after cancellation, got %d routes", summary.Routes)
	}
}

func TestRunOnce_OneWayFetchesEachDepartureOnce(t *testing.T) {
	fetcher := &fakeFetcher{respond: twoValidOneMalformed}
	c, _ := newCollector(newFakeStore(), fetcher, 1)

	r := route()
	r.LatestReturn = "2026-01-05"
	r.MaxStayDays = 3
	r.OneWay = true

	c.RunOnce(context.Background(), []internal.RouteSearch{r})

	urls := fetcher.urls()
	if len(urls) != 4 {
		t.Fatalf("expected one fetch per departure, got %v", urls)
	}
	for _, url := range urls {
		if !strings.HasSuffix(url, "oneway") {
			t.Errorf("expected a one-way query, got %s", url)
		}
	}
}

func TestRunOnce_CalendarMode(t *testing.T) {
	store := newFakeStore()
	fetcher := &fakeFetcher{respond: func(browser.Request) ([]internal.RawResultNode, error) {
		return []internal.RawResultNode{
			{Key: "2025-12-31", DepartureText: "2025-12-31", Price: "€ 60"},
			{Key: "2026-01-01", DepartureText: "2026-01-01", Price: "€ 80"},
			{Key: "2026-01-02", DepartureText: "2026-01-02", Price: "€ 75"},
			{Key: "2026-01-03", DepartureText: "2026-01-03", Price: "€ 70"},
			{Key: "2026-01-04", DepartureText: "2026-01-04", Price: "n/a"},
		}, nil
	}}
	c, _ := newCollector(store, fetcher, 1)

	r := route()
	r.Mode = internal.QueryModeCalendar

	summary := c.RunOnce(context.Background(), []internal.RouteSearch{r})

	if len(fetcher.requests) != 1 {
		t.Fatalf("calendar mode fetches once per route, got %d", len(fetcher.requests))
	}
	req := fetcher.requests[0]
	if req.Mode != internal.QueryModeCalendar || req.CalendarPages != 1 {
		t.Errorf("unexpected request %+v", req)
	}

	var got []string
	for _, offer := range store.appended[1] {
		got = append(got, offer.DepartureDate.Format(time.DateOnly)+"/"+offer.ReturnDate.Format(time.DateOnly))
	}
	want := []string{"2026-01-01/2026-01-02", "2026-01-02/2026-01-03"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("calendar offers mismatch (-want +got):\n%s", diff)
	}
	if summary.OffersSkipped != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
}
