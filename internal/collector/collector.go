// Package collector runs one collection pass over all configured routes.
package collector

import (
	"context"
	"fmt"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/csr-ugra/flight-price-parser/internal/browser"
	"github.com/csr-ugra/flight-price-parser/internal/combination"
	"github.com/csr-ugra/flight-price-parser/internal/extract"
	"github.com/csr-ugra/flight-price-parser/internal/filter"
	"github.com/csr-ugra/flight-price-parser/internal/query"
	"github.com/csr-ugra/flight-price-parser/internal/selector"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"iter"
	"sync"
	"time"
)

const persistTimeout = 30 * time.Second

type Store interface {
	FindOrCreateSearch(ctx context.Context, s internal.RouteSearch) (internal.SearchId, error)
	AppendOffers(ctx context.Context, id internal.SearchId, offers []internal.FlightOffer) (int, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, req browser.Request, log logrus.FieldLogger) ([]internal.RawResultNode, error)
}

type Deps struct {
	Store   Store
	Fetcher Fetcher
	Query   query.Builder
	Log     logrus.FieldLogger

	// Workers is the number of fetches running at once, between 1 and 4.
	Workers          int
	CalendarMaxPages int
	Now              func() time.Time
}

type Collector struct {
	store            Store
	fetcher          Fetcher
	query            query.Builder
	log              logrus.FieldLogger
	workers          int
	calendarMaxPages int
	now              func() time.Time
}

type Summary struct {
	Routes             int
	RoutesFailed       int
	Combinations       int
	CombinationsFailed int
	OffersKept         int
	OffersSkipped      int
	OffersPersisted    int
}

func (s *Summary) add(r Summary) {
	s.Routes += r.Routes
	s.RoutesFailed += r.RoutesFailed
	s.Combinations += r.Combinations
	s.CombinationsFailed += r.CombinationsFailed
	s.OffersKept += r.OffersKept
	s.OffersSkipped += r.OffersSkipped
	s.OffersPersisted += r.OffersPersisted
}

func (s Summary) fields() logrus.Fields {
	return logrus.Fields{
		"Combinations":       s.Combinations,
		"CombinationsFailed": s.CombinationsFailed,
		"OffersKept":         s.OffersKept,
		"OffersSkipped":      s.OffersSkipped,
		"OffersPersisted":    s.OffersPersisted,
	}
}

func New(deps Deps) *Collector {
	c := &Collector{
		store:            deps.Store,
		fetcher:          deps.Fetcher,
		query:            deps.Query,
		log:              deps.Log,
		workers:          min(max(deps.Workers, 1), 4),
		calendarMaxPages: max(deps.CalendarMaxPages, 1),
		now:              deps.Now,
	}

	if c.query == nil {
		c.query = query.NewGoogleFlights()
	}
	if c.now == nil {
		c.now = time.Now
	}

	return c
}

// RunOnce collects every route in order. A failing route is logged and skipped,
// cancelling ctx stops scheduling new fetches but keeps what was already collected.
func (c *Collector) RunOnce(ctx context.Context, searches []internal.RouteSearch) Summary {
	c.log.WithField("RouteCount", len(searches)).Info("starting flight price collection for {RouteCount} routes")

	var total Summary

	for _, search := range searches {
		if ctx.Err() != nil {
			c.log.WithError(ctx.Err()).Warn("collection cancelled, skipping remaining routes")
			break
		}

		total.add(c.runRoute(ctx, search))
	}

	c.log.WithFields(total.fields()).
		WithFields(logrus.Fields{"Routes": total.Routes, "RoutesFailed": total.RoutesFailed}).
		Info("flight price collection completed")

	return total
}

type job struct {
	combination internal.DateCombination
	request     browser.Request
	options     extract.Options
}

func (c *Collector) runRoute(ctx context.Context, search internal.RouteSearch) (summary Summary) {
	summary.Routes = 1

	log := c.log.WithFields(logrus.Fields{
		"Origin":      search.Origin,
		"Destination": search.Destination,
		"Mode":        string(search.QueryMode()),
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("Panic", r).Error("route collection panicked")
			summary.RoutesFailed = 1
		}
	}()

	window, err := combination.FromSearch(search)
	if err != nil {
		log.WithError(err).Error("skipping route with invalid date range")
		summary.RoutesFailed = 1
		return summary
	}

	log.Info("start search for {Origin} -> {Destination}")

	id, err := c.store.FindOrCreateSearch(ctx, search)
	if err != nil {
		log.WithError(err).Error("failed to resolve search, skipping route")
		summary.RoutesFailed = 1
		return summary
	}
	log = log.WithField("SearchId", id)

	jobs := c.jobs(search, window)
	offers, stats := c.runJobs(ctx, search, window, jobs, log)
	summary.add(stats)

	if len(offers) > 0 {
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		persisted, err := c.store.AppendOffers(persistCtx, id, offers)
		cancel()

		if err != nil {
			log.WithError(err).Error("failed to persist offers")
			summary.RoutesFailed = 1
		}
		summary.OffersPersisted = persisted
	}

	entry := log.WithFields(summary.fields())
	if summary.Combinations > 0 && summary.CombinationsFailed == summary.Combinations {
		entry.Warn("every combination failed for {Origin} -> {Destination}")
	} else {
		entry.Info("completed search for {Origin} -> {Destination}")
	}

	return summary
}

// jobs lists the fetches of a route lazily.
func (c *Collector) jobs(search internal.RouteSearch, window combination.Window) iter.Seq[job] {
	if search.QueryMode() == internal.QueryModeCalendar {
		return func(yield func(job) bool) {
			if window.Months() == 0 {
				return
			}
			yield(c.calendarJob(search, window))
		}
	}

	return func(yield func(job) bool) {
		seenDepartures := make(map[time.Time]struct{})

		for combo := range window.All() {
			// a one-way query does not depend on the stay length
			if search.OneWay {
				if _, ok := seenDepartures[combo.DepartureDate]; ok {
					continue
				}
				seenDepartures[combo.DepartureDate] = struct{}{}
			}

			if !yield(c.combinationJob(search, combo)) {
				return
			}
		}
	}
}

func (c *Collector) combinationJob(search internal.RouteSearch, combo internal.DateCombination) job {
	var ret *time.Time
	if !search.OneWay {
		r := combo.ReturnDate
		ret = &r
	}

	url, _ := c.query.Build(query.Query{
		Origin:        search.Origin,
		Destination:   search.Destination,
		DepartureDate: combo.DepartureDate,
		ReturnDate:    ret,
		OneWay:        search.OneWay,
	})

	return job{
		combination: combo,
		request: browser.Request{
			Url:           url,
			Mode:          internal.QueryModeCombinations,
			Selectors:     selector.FlightList,
			CheapestFirst: search.SortCheapestFirst(),
			MoreFlights:   search.MoreFlights,
		},
		options: extract.Options{
			RequireStops:  search.RequireStops(),
			DepartureDate: combo.DepartureDate,
			ReturnDate:    ret,
			Now:           c.now,
		},
	}
}

// calendarJob reads the month price grid once, for the shortest stay of the window.
func (c *Collector) calendarJob(search internal.RouteSearch, window combination.Window) job {
	combo := internal.DateCombination{
		DepartureDate: window.EarliestDeparture,
		ReturnDate:    window.EarliestDeparture.AddDate(0, 0, window.MinStayDays),
		StayDays:      window.MinStayDays,
	}

	var ret *time.Time
	var stay *int
	if !search.OneWay {
		ret = &combo.ReturnDate
		stay = &combo.StayDays
	}

	url, _ := c.query.Build(query.Query{
		Origin:        search.Origin,
		Destination:   search.Destination,
		DepartureDate: combo.DepartureDate,
		ReturnDate:    ret,
		OneWay:        search.OneWay,
	})

	return job{
		combination: combo,
		request: browser.Request{
			Url:           url,
			Mode:          internal.QueryModeCalendar,
			Selectors:     selector.CalendarGrid,
			CalendarPages: min(window.Months(), c.calendarMaxPages),
		},
		options: extract.Options{
			RequireStops:  search.RequireStops(),
			DepartureDate: combo.DepartureDate,
			ReturnDate:    ret,
			StayDays:      stay,
			Now:           c.now,
		},
	}
}

func (c *Collector) runJobs(ctx context.Context, search internal.RouteSearch, window combination.Window, jobs iter.Seq[job], log logrus.FieldLogger) ([]internal.FlightOffer, Summary) {
	var (
		mu      sync.Mutex
		offers  []internal.FlightOffer
		summary Summary
	)

	criteria := search.Criteria()

	var g errgroup.Group
	g.SetLimit(c.workers)

	for j := range jobs {
		if ctx.Err() != nil {
			log.WithError(ctx.Err()).Warn("collection cancelled, not scheduling further combinations")
			break
		}

		g.Go(func() error {
			// cancelled while waiting for a free worker
			if ctx.Err() != nil {
				return nil
			}

			kept, stats, err := c.runJob(ctx, j, search, window, criteria, log)

			mu.Lock()
			defer mu.Unlock()

			summary.Combinations++
			summary.OffersSkipped += stats.Skipped
			if err != nil {
				summary.CombinationsFailed++
				return nil
			}

			summary.OffersKept += len(kept)
			offers = append(offers, kept...)
			return nil
		})
	}

	_ = g.Wait()

	return offers, summary
}

func (c *Collector) runJob(ctx context.Context, j job, search internal.RouteSearch, window combination.Window, criteria internal.FilterCriteria, log logrus.FieldLogger) (kept []internal.FlightOffer, stats extract.Stats, err error) {
	log = log.WithFields(logrus.Fields{
		"DepartureDate": j.combination.DepartureDate.Format(time.DateOnly),
		"ReturnDate":    j.combination.ReturnDate.Format(time.DateOnly),
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.WithError(err).Error("combination panicked")
		}
	}()

	nodes, err := c.fetcher.Fetch(ctx, j.request, log)
	if err != nil {
		return nil, stats, err
	}

	offers, stats := extract.Parse(nodes, j.options)
	for _, skip := range stats.Skips {
		log.WithField("Reason", skip.Reason).Debug("skipped result node")
	}

	if search.QueryMode() == internal.QueryModeCalendar {
		offers = clamp(offers, window)
	}

	kept = filter.Apply(offers, criteria)
	log.WithFields(logrus.Fields{
		"NodeCount":  len(nodes),
		"OfferCount": len(kept),
	}).Debug("kept {OfferCount} offers of {NodeCount} result nodes")

	return kept, stats, nil
}

// clamp drops calendar offers outside the travel window.
func clamp(offers []internal.FlightOffer, window combination.Window) []internal.FlightOffer {
	result := make([]internal.FlightOffer, 0, len(offers))
	for _, offer := range offers {
		if window.Contains(offer.DepartureDate, offer.ReturnDate) {
			result = append(result, offer)
		}
	}

	return result
}
