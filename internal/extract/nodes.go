package extract

import (
	"fmt"
	"github.com/PuerkitoBio/goquery"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/csr-ugra/flight-price-parser/internal/selector"
	"strings"
)

// Nodes finds every result node of the set in a captured page, inside the set's
// container when the page has one. Nodes sharing a non-empty key are reported
// once, the first occurrence wins.
func Nodes(html string, set selector.Set) ([]internal.RawResultNode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	var nodes []internal.RawResultNode
	seen := make(map[string]struct{})

	root := doc.Selection
	if set.Container != "" {
		if container := doc.Find(set.Container.String()); container.Length() > 0 {
			root = container
		}
	}

	root.Find(set.Result.String()).Each(func(_ int, s *goquery.Selection) {
		node := internal.RawResultNode{
			Airline:  text(s, set.Airline),
			Duration: text(s, set.Duration),
			Price:    text(s, set.Price),
			Stops:    text(s, set.Stops),
		}

		if set.KeyAttr != "" {
			node.Key = strings.TrimSpace(s.AttrOr(set.KeyAttr, ""))
		}
		if set.DepartureAttr != "" {
			node.DepartureText = strings.TrimSpace(s.AttrOr(set.DepartureAttr, ""))
		}

		if node.Key != "" {
			if _, ok := seen[node.Key]; ok {
				return
			}
			seen[node.Key] = struct{}{}
		}

		nodes = append(nodes, node)
	})

	return nodes, nil
}

func text(s *goquery.Selection, sel selector.Selector) string {
	if sel == "" {
		return ""
	}

	return strings.TrimSpace(s.Find(sel.String()).First().Text())
}
