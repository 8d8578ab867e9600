package browser

import (
	"context"
	"errors"
	"fmt"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/csr-ugra/flight-price-parser/internal/extract"
	"github.com/csr-ugra/flight-price-parser/internal/selector"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"sync"
	"time"
)

type Config struct {
	NavigationTimeout time.Duration
	DataWaitTimeout   time.Duration
	// FetchTimeout bounds a whole attempt, the session is closed when it expires.
	FetchTimeout time.Duration
	// StepTimeout is how long a best-effort step waits for its control to appear.
	StepTimeout time.Duration
	// PollInterval is the pause between two lookups of a control that is not there yet.
	PollInterval   time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	// SettleDelay is waited after a click that changes the result list.
	SettleDelay time.Duration
}

const maxPopups = 5

func DefaultConfig() Config {
	return Config{
		NavigationTimeout: 60 * time.Second,
		DataWaitTimeout:   15 * time.Second,
		FetchTimeout:      3 * time.Minute,
		StepTimeout:       15 * time.Second,
		PollInterval:      250 * time.Millisecond,
		MaxAttempts:       3,
		RetryBaseDelay:    2 * time.Second,
		SettleDelay:       2 * time.Second,
	}
}

type Request struct {
	Url       string
	Mode      internal.QueryMode
	Selectors selector.Set

	CheapestFirst bool
	MoreFlights   bool
	// CalendarPages is how many months the date grid is advanced after opening it.
	CalendarPages int
}

// StepResult is the outcome of a best-effort step. It is logged and otherwise ignored.
type StepResult struct {
	State     State
	Name      string
	Performed bool
	Err       error
}

type Fetcher struct {
	launcher Launcher
	limiter  *rate.Limiter
	cfg      Config
}

// NewFetcher returns a fetcher sharing launcher and limiter between all its callers.
// A nil limiter disables rate limiting.
func NewFetcher(launcher Launcher, limiter *rate.Limiter, cfg Config) *Fetcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}

	return &Fetcher{launcher: launcher, limiter: limiter, cfg: cfg}
}

// Fetch loads req.Url in a fresh session and returns the result nodes found on it.
//
// Launch and navigation failures are retried with a growing delay. Any other failure,
// or running out of attempts, returns no nodes and a FetchFailure. A page that never
// shows results is not a failure and returns an empty list.
func (f *Fetcher) Fetch(ctx context.Context, req Request, log logrus.FieldLogger) ([]internal.RawResultNode, error) {
	log = log.WithField("Url", req.Url)

	var lastErr error

	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		attemptLog := log.WithField("Attempt", attempt)

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				lastErr = &internal.FetchFailure{Url: req.Url, State: StateLaunching.String(), Err: err}
				break
			}
		}

		nodes, err := f.attempt(ctx, req, attemptLog)
		if err == nil {
			return nodes, nil
		}

		lastErr = err
		if !retryable(err) || ctx.Err() != nil || attempt == f.cfg.MaxAttempts {
			break
		}

		backoff := time.Duration(attempt*attempt) * f.cfg.RetryBaseDelay
		attemptLog.WithError(err).WithField("Backoff", backoff.String()).Warn("fetch attempt failed, trying again")

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			lastErr = &internal.FetchFailure{Url: req.Url, State: StateFailed.String(), Err: errors.Join(err, ctx.Err())}
		}
		if ctx.Err() != nil {
			break
		}
	}

	log.WithError(lastErr).Error("fetch failed")
	return nil, lastErr
}

func retryable(err error) bool {
	var failure *internal.FetchFailure
	if !errors.As(err, &failure) {
		return false
	}

	return failure.State == StateLaunching.String() || failure.State == StateNavigating.String()
}

type outcome struct {
	nodes []internal.RawResultNode
	err   error
}

// attempt owns exactly one session and releases it on every path, including a
// hard timeout while the engine is stuck.
func (f *Fetcher) attempt(ctx context.Context, req Request, log logrus.FieldLogger) ([]internal.RawResultNode, error) {
	hardCtx, cancel := context.WithTimeout(ctx, f.cfg.FetchTimeout)
	defer cancel()

	session, err := f.launcher.Launch(hardCtx)
	if err != nil {
		return nil, &internal.FetchFailure{Url: req.Url, State: StateLaunching.String(), Err: err}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := session.Close(); err != nil {
				log.WithError(err).Warn("failed to close browser session")
			}
		})
	}
	defer release()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &internal.FetchFailure{Url: req.Url, State: StateFailed.String(), Err: fmt.Errorf("panic: %v", r)}}
			}
		}()

		nodes, err := f.run(hardCtx, session, req, log)
		done <- outcome{nodes: nodes, err: err}
	}()

	select {
	case o := <-done:
		return o.nodes, o.err
	case <-hardCtx.Done():
		release()

		state := StateHardTimeout
		if ctx.Err() != nil {
			state = StateFailed
		}

		return nil, &internal.FetchFailure{Url: req.Url, State: state.String(), Err: hardCtx.Err()}
	}
}

func (f *Fetcher) run(ctx context.Context, s Session, req Request, log logrus.FieldLogger) ([]internal.RawResultNode, error) {
	log.Debug("navigating to {Url}")

	navCtx, cancel := context.WithTimeout(ctx, f.cfg.NavigationTimeout)
	err := s.Navigate(navCtx, req.Url)
	timedOut := errors.Is(navCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()

	if err != nil {
		if timedOut {
			err = &internal.NavigationTimeoutError{Url: req.Url, Timeout: f.cfg.NavigationTimeout, Err: err}
		}
		return nil, &internal.FetchFailure{Url: req.Url, State: StateNavigating.String(), Err: err}
	}

	logStep(log, f.step(ctx, StateDismissingConsent, "reject consent", f.awaitAndClick(s, selector.ConsentRejectBtn, 0)))

	logStep(log, f.step(ctx, StateDismissingPopups, "press escape", s.PressEscape))
	logStep(log, f.step(ctx, StateDismissingPopups, "dismiss pop-ups", f.dismissPopups(s)))

	if req.Mode == internal.QueryModeCalendar {
		f.paginate(ctx, s, req, log)
	} else {
		if req.CheapestFirst {
			result := f.step(ctx, StateApplyingSort, "sort by price", f.awaitAndClick(s, selector.CheapestTab, f.cfg.SettleDelay))
			logStep(log, result)
			if result.Err == nil && !result.Performed {
				log.Warn("cheapest tab not found, results keep the page order")
			}
		}
		if req.MoreFlights {
			logStep(log, f.step(ctx, StateApplyingSort, "show more flights", f.awaitAndClick(s, selector.MoreFlightsBtn, f.cfg.SettleDelay)))
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, f.cfg.DataWaitTimeout)
	err = s.WaitVisible(waitCtx, req.Selectors.Result)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return nil, &internal.FetchFailure{Url: req.Url, State: StateWaitingForData.String(), Err: ctx.Err()}
		}

		log.WithError(err).Warn("no results appeared on the page")
		return []internal.RawResultNode{}, nil
	}

	html, err := s.HTML(ctx)
	if err != nil {
		return nil, &internal.FetchFailure{Url: req.Url, State: StateWaitingForData.String(), Err: err}
	}

	nodes, err := extract.Nodes(html, req.Selectors)
	if err != nil {
		return nil, &internal.FetchFailure{Url: req.Url, State: StateExtracted.String(), Err: err}
	}

	log.WithField("NodeCount", len(nodes)).Debug("found {NodeCount} result nodes")
	return nodes, nil
}

// paginate opens the date grid and moves it forward month by month, stopping at the first failure.
func (f *Fetcher) paginate(ctx context.Context, s Session, req Request, log logrus.FieldLogger) {
	result := f.step(ctx, StatePaginating, "open date grid", f.awaitAndClick(s, selector.CalendarOpenBtn, 0))
	logStep(log, result)
	if result.Err != nil || !result.Performed {
		return
	}

	if req.Selectors.Container != "" {
		result = f.step(ctx, StatePaginating, "wait for date grid", func(ctx context.Context) error {
			return f.await(ctx, s, req.Selectors.Container)
		})
		logStep(log, result)
		if result.Err != nil || !result.Performed {
			return
		}
	}

	for page := 1; page < req.CalendarPages; page++ {
		result = f.step(ctx, StatePaginating, fmt.Sprintf("next month %d", page), f.click(s, selector.CalendarNextBtn, f.cfg.SettleDelay))
		logStep(log, result)

		if result.Err != nil || !result.Performed {
			return
		}
	}
}

// click clicks sel if it is on the page right now, then waits settle.
func (f *Fetcher) click(s Session, sel selector.Selector, settle time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := s.Click(ctx, sel); err != nil {
			return err
		}

		return sleep(ctx, settle)
	}
}

// awaitAndClick is click for a control that may render after the page has loaded.
func (f *Fetcher) awaitAndClick(s Session, sel selector.Selector, settle time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := f.await(ctx, s, sel); err != nil {
			return err
		}

		return f.click(s, sel, settle)(ctx)
	}
}

// dismissPopups clicks every pop-up dismiss button present, at most maxPopups of them.
func (f *Fetcher) dismissPopups(s Session) func(context.Context) error {
	return func(ctx context.Context) error {
		dismissed := 0
		for ; dismissed < maxPopups; dismissed++ {
			err := s.Click(ctx, selector.PopupDismissBtn)
			if errors.Is(err, &internal.ElementNotFoundError{}) {
				break
			}
			if err != nil {
				return err
			}
		}

		if dismissed == 0 {
			return internal.NewElementNotFoundError(selector.PopupDismissBtn)
		}

		return nil
	}
}

// await polls until sel matches at least one element. It returns an ElementNotFoundError
// once StepTimeout has passed without a match.
func (f *Fetcher) await(ctx context.Context, s Session, sel selector.Selector) error {
	waitCtx, cancel := context.WithTimeout(ctx, f.cfg.StepTimeout)
	defer cancel()

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		count, err := s.Count(waitCtx, sel)
		if err == nil && count > 0 {
			return nil
		}
		if err != nil && waitCtx.Err() == nil {
			return err
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return internal.NewElementNotFoundError(sel)
		case <-ticker.C:
		}
	}
}

// step runs a best-effort action. A missing element means there was nothing to do.
// The action gets StepTimeout to find its control and another StepTimeout to use it.
func (f *Fetcher) step(ctx context.Context, state State, name string, fn func(context.Context) error) StepResult {
	stepCtx, cancel := context.WithTimeout(ctx, 2*f.cfg.StepTimeout+f.cfg.SettleDelay)
	defer cancel()

	err := fn(stepCtx)

	switch {
	case err == nil:
		return StepResult{State: state, Name: name, Performed: true}
	case errors.Is(err, &internal.ElementNotFoundError{}):
		return StepResult{State: state, Name: name}
	default:
		return StepResult{State: state, Name: name, Err: err}
	}
}

func logStep(log logrus.FieldLogger, r StepResult) {
	entry := log.WithFields(logrus.Fields{
		"State": r.State.String(),
		"Step":  r.Name,
	})

	switch {
	case r.Err != nil:
		entry.WithError(r.Err).Warn("step {Step} failed, continuing")
	case r.Performed:
		entry.Debug("step {Step} done")
	default:
		entry.Debug("step {Step} not needed")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
