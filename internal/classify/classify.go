// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

// Package classify assigns IN/OUT directions to raw punches.
//
// Punches are grouped per worker per calendar day, where the day is taken
// from the punch timestamp converted to the source timezone. Within a
// group, punches are ordered by timestamp with a stable sort, so punches
// sharing a timestamp keep their fetch order. Direction is then positional:
//
//   - a single punch is IN
//   - otherwise the first punch is IN, positions alternate, and the final
//     punch of the day is always OUT
//
// Five punches therefore classify as IN, OUT, IN, OUT, OUT: the trailing
// override wins over alternation. A punch carrying an explicit direction
// hint (the API transport reports one, devices do not) keeps the hinted
// direction instead of its positional one.
//
// Classification is deterministic: equal input in equal order yields equal
// output, and input order only matters for punches with equal timestamps.
package classify

import (
	"sort"
	"time"

	"github.com/tomtom215/punchsync/internal/models"
)

type groupKey struct {
	code string
	date string
}

type indexedPunch struct {
	punch models.RawPunch
	pos   int
}

// Classify assigns a direction to every punch and returns the classified
// events ordered by worker code, calendar day, and position within the day.
// A nil location falls back to UTC.
func Classify(punches []models.RawPunch, loc *time.Location) []models.ClassifiedEvent {
	if loc == nil {
		loc = time.UTC
	}
	if len(punches) == 0 {
		return nil
	}

	groups := make(map[groupKey][]indexedPunch)
	keys := make([]groupKey, 0)
	for i, p := range punches {
		k := groupKey{
			code: p.SourceWorkerCode,
			date: p.Timestamp.In(loc).Format("2006-01-02"),
		}
		if _, seen := groups[k]; !seen {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], indexedPunch{punch: p, pos: i})
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].code != keys[j].code {
			return keys[i].code < keys[j].code
		}
		return keys[i].date < keys[j].date
	})

	out := make([]models.ClassifiedEvent, 0, len(punches))
	for _, k := range keys {
		group := groups[k]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].punch.Timestamp.Before(group[j].punch.Timestamp)
		})

		n := len(group)
		for i, item := range group {
			dir := Positional(i, n)
			if item.punch.DirectionHint.Explicit() {
				dir = item.punch.DirectionHint
			}
			out = append(out, models.ClassifiedEvent{RawPunch: item.punch, Direction: dir})
		}
	}
	return out
}

// Positional returns the direction for position i (0-based) in a day group
// of n punches. The reclassify maintenance operation reuses this against
// stored events, which carry no hints.
func Positional(i, n int) models.Direction {
	switch {
	case n == 1:
		return models.DirectionIn
	case i == n-1:
		return models.DirectionOut
	case i%2 == 0:
		return models.DirectionIn
	default:
		return models.DirectionOut
	}
}

// DayKey returns the calendar day of ts in loc as YYYY-MM-DD. Grouping for
// classification and reclassification both key on it.
func DayKey(ts time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return ts.In(loc).Format("2006-01-02")
}
