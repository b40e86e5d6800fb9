package backfill

import (
	"slices"
	"time"
)

const day = 24 * time.Hour

// Gap is a missing interval. End is always exclusive.
type Gap struct {
	Start          time.Time
	End            time.Time
	StartInclusive bool
}

// Contains reports whether t lies inside the gap
func (g Gap) Contains(t time.Time) bool {
	if g.StartInclusive {
		if t.Before(g.Start) {
			return false
		}
	} else if !t.After(g.Start) {
		return false
	}
	return t.Before(g.End)
}

func (g Gap) Duration() time.Duration {
	return g.End.Sub(g.Start)
}

// DayGaps are the gaps of one UTC calendar day, ordered by start
type DayGaps struct {
	Day  time.Time
	Gaps []Gap
}

func containsAny(gaps []Gap, t time.Time) bool {
	for _, g := range gaps {
		if g.Contains(t) {
			return true
		}
	}
	return false
}

// startOfDay truncates t to UTC midnight
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DetectGaps computes the parts of [start, now) not covered by existing,
// bucketed by UTC day. The first bucket begins at start and the last ends at now.
// Gaps shorter than minGap are dropped. Days without gaps are omitted.
func DetectGaps(existing []time.Time, start, now time.Time, minGap time.Duration) []DayGaps {
	start, now = start.UTC(), now.UTC()
	if !start.Before(now) {
		return nil
	}

	sorted := make([]time.Time, 0, len(existing))
	for _, t := range existing {
		if !t.Before(start) && t.Before(now) {
			sorted = append(sorted, t.UTC())
		}
	}
	slices.SortFunc(sorted, time.Time.Compare)

	var out []DayGaps
	next := 0
	for dayStart := startOfDay(start); dayStart.Before(now); dayStart = dayStart.Add(day) {
		from := later(start, dayStart)
		to := earlier(now, dayStart.Add(day))

		var inDay []time.Time
		for next < len(sorted) && sorted[next].Before(to) {
			inDay = append(inDay, sorted[next])
			next++
		}

		if gaps := dayGaps(inDay, from, to, minGap); len(gaps) > 0 {
			out = append(out, DayGaps{Day: dayStart, Gaps: gaps})
		}
	}
	return out
}

// dayGaps returns the complement of ts within [from, to)
func dayGaps(ts []time.Time, from, to time.Time, minGap time.Duration) []Gap {
	keep := func(g Gap) bool {
		d := g.Duration()
		return d > 0 && d >= minGap
	}

	if len(ts) == 0 {
		g := Gap{Start: from, End: to, StartInclusive: true}
		if keep(g) {
			return []Gap{g}
		}
		return nil
	}

	var gaps []Gap
	// nothing precedes the first sample, so the leading edge is inclusive
	if g := (Gap{Start: from, End: ts[0], StartInclusive: true}); keep(g) {
		gaps = append(gaps, g)
	}
	for i := 1; i < len(ts); i++ {
		if g := (Gap{Start: ts[i-1], End: ts[i]}); keep(g) {
			gaps = append(gaps, g)
		}
	}
	if g := (Gap{Start: ts[len(ts)-1], End: to}); keep(g) {
		gaps = append(gaps, g)
	}
	return gaps
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
