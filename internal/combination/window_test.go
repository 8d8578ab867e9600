package combination

import (
	"errors"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/google/go-cmp/cmp"
	"testing"
	"time"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func collect(w Window) []internal.DateCombination {
	var out []internal.DateCombination
	for c := range w.All() {
		out = append(out, c)
	}
	return out
}

func TestWindow_All(t *testing.T) {
	w, err := ParseWindow("2026-01-01", "2026-01-10", 7, 8)
	if err != nil {
		t.Fatal(err)
	}

	want := []internal.DateCombination{
		{DepartureDate: date(t, "2026-01-01"), ReturnDate: date(t, "2026-01-08"), StayDays: 7},
		{DepartureDate: date(t, "2026-01-01"), ReturnDate: date(t, "2026-01-09"), StayDays: 8},
		{DepartureDate: date(t, "2026-01-02"), ReturnDate: date(t, "2026-01-09"), StayDays: 7},
		{DepartureDate: date(t, "2026-01-02"), ReturnDate: date(t, "2026-01-10"), StayDays: 8},
		// the return date may fall on the deadline itself
		{DepartureDate: date(t, "2026-01-03"), ReturnDate: date(t, "2026-01-10"), StayDays: 7},
	}

	if diff := cmp.Diff(want, collect(w)); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}

	if w.Count() != len(want) {
		t.Errorf("Count() = %d, want %d", w.Count(), len(want))
	}
}

func TestWindow_AllIsRestartable(t *testing.T) {
	w, err := ParseWindow("2026-03-01", "2026-03-20", 2, 5)
	if err != nil {
		t.Fatal(err)
	}

	first := collect(w)

	// stop the second pass early, then run a full third pass
	for range w.All() {
		break
	}

	if diff := cmp.Diff(first, collect(w)); diff != "" {
		t.Errorf("second enumeration differs (-first +third):\n%s", diff)
	}
}

func TestWindow_Empty(t *testing.T) {
	tests := []struct {
		name            string
		earliest, latest string
		minStay, maxStay int
	}{
		{"window shorter than min stay", "2026-01-01", "2026-01-05", 7, 8},
		{"latest before earliest", "2026-02-01", "2026-01-01", 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := ParseWindow(tt.earliest, tt.latest, tt.minStay, tt.maxStay)
			if err != nil {
				t.Fatal(err)
			}
			if got := collect(w); len(got) != 0 {
				t.Errorf("expected no combinations, got %v", got)
			}
		})
	}
}

func TestWindow_SameDayReturn(t *testing.T) {
	w, err := ParseWindow("2026-01-01", "2026-01-01", 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	got := collect(w)
	if len(got) != 1 || got[0].StayDays != 0 || !got[0].ReturnDate.Equal(got[0].DepartureDate) {
		t.Errorf("unexpected combinations %v", got)
	}
}

func TestParseWindow_InvalidRange(t *testing.T) {
	tests := []struct {
		name            string
		earliest, latest string
		minStay, maxStay int
	}{
		{"min greater than max", "2026-01-01", "2026-01-10", 9, 8},
		{"negative stay", "2026-01-01", "2026-01-10", -1, 8},
		{"bad earliest", "01/01/2026", "2026-01-10", 1, 2},
		{"bad latest", "2026-01-01", "", 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWindow(tt.earliest, tt.latest, tt.minStay, tt.maxStay)

			var rangeErr *internal.InvalidRangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("expected InvalidRangeError, got %v", err)
			}
		})
	}
}

func TestWindow_Contains(t *testing.T) {
	w, err := ParseWindow("2026-01-01", "2026-01-10", 7, 8)
	if err != nil {
		t.Fatal(err)
	}

	ret := date(t, "2026-01-10")
	if !w.Contains(date(t, "2026-01-03"), &ret) {
		t.Error("expected 01-03..01-10 inside the window")
	}
	if w.Contains(date(t, "2026-01-04"), nil) {
		t.Error("01-04 departs too late for a 7 day stay")
	}
	tooShort := date(t, "2026-01-05")
	if w.Contains(date(t, "2026-01-01"), &tooShort) {
		t.Error("a 4 day stay is outside the window")
	}
}

// bruteForce checks every (departure, return) pair in a wider range independently of All.
func bruteForce(w Window) map[internal.DateCombination]bool {
	valid := map[internal.DateCombination]bool{}
	start := w.EarliestDeparture.AddDate(0, 0, -3)
	end := w.LatestReturn.AddDate(0, 0, 3)

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for r := d; !r.After(end); r = r.AddDate(0, 0, 1) {
			stay := int(r.Sub(d).Hours() / 24)
			if d.Before(w.EarliestDeparture) || r.After(w.LatestReturn) {
				continue
			}
			if stay < w.MinStayDays || stay > w.MaxStayDays {
				continue
			}
			valid[internal.DateCombination{DepartureDate: d, ReturnDate: r, StayDays: stay}] = true
		}
	}

	return valid
}

func FuzzWindow_All(f *testing.F) {
	f.Add(uint8(10), uint8(7), uint8(8))
	f.Add(uint8(0), uint8(0), uint8(0))
	f.Add(uint8(3), uint8(5), uint8(5))
	f.Add(uint8(40), uint8(1), uint8(14))

	earliest := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	f.Fuzz(func(t *testing.T, span, minStay, maxStay uint8) {
		if span > 60 || minStay > 30 || maxStay > 30 {
			t.Skip()
		}

		w, err := NewWindow(earliest, earliest.AddDate(0, 0, int(span)), int(minStay), int(maxStay))
		if minStay > maxStay {
			if err == nil {
				t.Fatal("expected InvalidRangeError")
			}
			return
		}
		if err != nil {
			t.Fatal(err)
		}

		want := bruteForce(w)
		seen := map[internal.DateCombination]bool{}
		var prev *internal.DateCombination

		for c := range w.All() {
			if !want[c] {
				t.Fatalf("unsound combination %+v", c)
			}
			if seen[c] {
				t.Fatalf("duplicate combination %+v", c)
			}
			seen[c] = true

			if prev != nil {
				ordered := prev.DepartureDate.Before(c.DepartureDate) ||
					(prev.DepartureDate.Equal(c.DepartureDate) && prev.StayDays < c.StayDays)
				if !ordered {
					t.Fatalf("%+v yielded after %+v", c, *prev)
				}
			}
			cur := c
			prev = &cur
		}

		if len(seen) != len(want) {
			t.Fatalf("incomplete: got %d combinations, want %d", len(seen), len(want))
		}
	})
}
