// Package stats derives the aggregate progress view from the static catalog
// and a progress map. Everything here is a pure function of its inputs; the
// caller recomputes on every change instead of caching.
package stats

import (
	"math"
	"time"

	"github.com/hyperengineering/leettrack/internal/calendar"
	"github.com/hyperengineering/leettrack/internal/catalog"
	"github.com/hyperengineering/leettrack/internal/types"
)

// MaxStreakDays caps the backward streak scan. Real data always hits a
// zero day long before this; corrupted data must not loop forever.
const MaxStreakDays = 3650

// Compute returns the statistics for progress over c as of today.
//
// Totals and per-category figures iterate the catalog, so progress entries
// for unknown problem ids never count toward them. The streak reads every
// done entry in the map.
func Compute(c *catalog.Catalog, progress types.ProgressMap, today time.Time) types.Statistics {
	todayKey := calendar.DateKey(today)

	st := types.Statistics{
		CategoryProgress: make(map[string]types.CategoryProgress, len(c.Categories())),
	}

	for _, key := range c.Categories() {
		problems := c.Problems(key)
		var catCompleted int

		for _, p := range problems {
			st.Total++
			rec, ok := progress[p.ID]
			if !ok {
				st.Todo++
				continue
			}

			switch rec.Status {
			case types.StatusDone:
				st.Completed++
				catCompleted++
				if rec.DateCompleted == todayKey {
					st.TodayCompleted++
				}
			case types.StatusInProgress:
				st.InProgress++
			default:
				st.Todo++
			}
		}

		st.CategoryProgress[key] = types.CategoryProgress{
			Total:      len(problems),
			Completed:  catCompleted,
			Percentage: Percentage(catCompleted, len(problems)),
		}
	}

	st.Streak = Streak(progress, today)
	return st
}

// Percentage returns round(completed/total*100), or 0 for an empty total.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// Streak counts consecutive calendar days, ending today, with at least one
// done entry completed that day. A today without completions is forgiven
// once, since the day may not be over yet; any earlier empty day ends the
// streak.
func Streak(progress types.ProgressMap, today time.Time) int {
	perDay := make(map[string]int)
	for _, rec := range progress {
		if rec.Status == types.StatusDone && rec.DateCompleted != "" {
			perDay[rec.DateCompleted]++
		}
	}
	if len(perDay) == 0 {
		return 0
	}

	todayKey := calendar.DateKey(today)
	check := calendar.Midday(today)
	streak := 0

	for i := 0; i < MaxStreakDays; i++ {
		key := calendar.DateKey(check)
		if perDay[key] > 0 {
			streak++
			check = calendar.PreviousDay(check)
			continue
		}
		if key == todayKey {
			check = calendar.PreviousDay(check)
			continue
		}
		break
	}

	return streak
}
