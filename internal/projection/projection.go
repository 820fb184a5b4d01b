// Package projection derives display-side series from committed simulation
// state: the best-case growth ceiling for charting, and what-if previews for
// hovered choices. Everything here is a pure read — nothing feeds back into
// the engine.
package projection

import (
	"fmt"

	"github.com/talgya/growthsim/internal/engine"
	"github.com/talgya/growthsim/internal/scaling"
	"github.com/talgya/growthsim/internal/scenario"
)

// TheoreticalMaximum replays the scenario picking, at every decision chapter,
// the choice with the largest scaled follower delta against its own running
// total. The result is a chart ceiling with one value per step boundary,
// index 0 being the baseline.
func TheoreticalMaximum(sc *scenario.Scenario, baselineFollowers int64) []int64 {
	series := make([]int64, 0, len(sc.Chapters))
	followers := baselineFollowers
	series = append(series, followers)

	for _, ch := range sc.Chapters {
		if ch.Terminal() {
			continue
		}
		var best int64
		for _, c := range ch.Choices {
			if delta := scaling.Scale(c.Effect, followers).Followers; delta > best {
				best = delta
			}
		}
		followers += best
		series = append(series, followers)
	}
	return series
}

// Preview computes the scaled effect a not-yet-committed choice would have,
// using the committed follower count at the chapter's step boundary. The
// history slice is the engine's HistoryByStep. Committed state is never
// touched; previewing any number of times changes nothing.
func Preview(sc *scenario.Scenario, history []int64, chapterIndex, choiceIndex int) (scaling.ScaledEffect, error) {
	if chapterIndex < 0 || chapterIndex >= sc.NonTerminalCount() || chapterIndex >= len(history) {
		return scaling.ScaledEffect{}, fmt.Errorf("%w: chapter %d", engine.ErrInvalidSelection, chapterIndex)
	}
	choices := sc.Chapters[chapterIndex].Choices
	if choiceIndex < 0 || choiceIndex >= len(choices) {
		return scaling.ScaledEffect{}, fmt.Errorf("%w: choice %d of %d in chapter %d", engine.ErrInvalidSelection, choiceIndex, len(choices), chapterIndex)
	}

	return scaling.Scale(choices[choiceIndex].Effect, history[chapterIndex]), nil
}
