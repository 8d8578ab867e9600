// Package browser drives a headless browser through a result page and captures its result nodes.
package browser

import (
	"context"
	"github.com/csr-ugra/flight-price-parser/internal/selector"
)

// Session is one exclusive browser tab. Every method must return once ctx is done.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// Count returns the number of elements matching sel, 0 when there are none.
	Count(ctx context.Context, sel selector.Selector) (int, error)
	// Click clicks the first element matching sel, or returns an ElementNotFoundError.
	Click(ctx context.Context, sel selector.Selector) error
	PressEscape(ctx context.Context) error
	WaitVisible(ctx context.Context, sel selector.Selector) error
	// HTML returns the outer HTML of the whole document.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Launcher hands out sessions. It is shared by all workers.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
	Close() error
}

type State int

const (
	StateLaunching State = iota
	StateNavigating
	StateDismissingConsent
	StateDismissingPopups
	StateApplyingSort
	StatePaginating
	StateWaitingForData
	StateExtracted
	StateFailed
	StateHardTimeout
)

func (s State) String() string {
	switch s {
	case StateLaunching:
		return "Launching"
	case StateNavigating:
		return "Navigating"
	case StateDismissingConsent:
		return "DismissingConsent"
	case StateDismissingPopups:
		return "DismissingPopups"
	case StateApplyingSort:
		return "ApplyingSort"
	case StatePaginating:
		return "Paginating"
	case StateWaitingForData:
		return "WaitingForData"
	case StateExtracted:
		return "Extracted"
	case StateFailed:
		return "Failed"
	case StateHardTimeout:
		return "HardTimeout"
	default:
		return "Unknown"
	}
}
