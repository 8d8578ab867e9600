package selector

import "strings"

// Selector is either a CSS selector or, when it starts with "//", an XPath expression.
type Selector string

func (s Selector) String() string {
	return string(s)
}

func (s Selector) IsXPath() bool {
	return strings.HasPrefix(string(s), "//")
}

const (
	ConsentRejectBtn  Selector = "//button[contains(., 'Reject all') or contains(., 'Alle ablehnen')]"
	PopupDismissBtn   Selector = "//button[contains(., 'Got it') or contains(., 'Verstanden') or contains(., 'Done')]"
	CheapestTab       Selector = "#M7sBEb"
	MoreFlightsBtn    Selector = "li.ZVk93d"
	CalendarOpenBtn   Selector = "input[aria-label=\"Departure\"]"
	CalendarNextBtn   Selector = "button[aria-label=\"Next\"]"
	CalendarContainer Selector = "div[role=\"grid\"]"
)

// Set describes where result nodes and their fields live in a captured page.
// Field selectors are evaluated relative to the Result node.
type Set struct {
	Container Selector
	Result    Selector
	Airline   Selector
	Duration  Selector
	Price     Selector
	Stops     Selector

	// KeyAttr names the attribute used as the node's natural identity.
	KeyAttr string
	// DepartureAttr names the attribute holding a node's own departure date.
	DepartureAttr string
}

var FlightList = Set{
	Container: "ul.Rk10dc",
	Result:    "li.pIav2d",
	Airline:   ".sSHqwe",
	Duration:  ".gvkrdb",
	Price:     ".FpEdX span",
	Stops:     ".EfT7Ae",
}

var CalendarGrid = Set{
	Container:     CalendarContainer,
	Result:        "div[role=\"gridcell\"][data-iso]",
	Price:         "div[jsname=\"qCDwBb\"]",
	KeyAttr:       "data-iso",
	DepartureAttr: "data-iso",
}
