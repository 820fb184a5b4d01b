// Package engine holds the replayable simulation state: a baseline, one
// choice slot per decision chapter, and the projected account metrics derived
// from them. State is never patched incrementally — every mutation triggers a
// full replay from the baseline, so the scaled magnitude of later choices
// always reflects the follower count their step actually sees.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/talgya/growthsim/internal/scaling"
	"github.com/talgya/growthsim/internal/scenario"
)

var (
	// ErrNoScenarioData means neither the scenario source nor its fallback
	// produced usable chapters; simulations cannot start.
	ErrNoScenarioData = errors.New("no scenario data")

	// ErrInvalidBaseline rejects a starting follower count below the minimum
	// or otherwise unusable. Prior state is left untouched.
	ErrInvalidBaseline = errors.New("invalid baseline")

	// ErrInvalidSelection rejects an out-of-range chapter or choice index
	// without any partial write. A caller bug, not a runtime condition.
	ErrInvalidSelection = errors.New("invalid selection")
)

const (
	// MinBaselineFollowers is the smallest starting account a run accepts.
	MinBaselineFollowers = 100

	// DefaultBaselineFollowers is the account size Reset returns to.
	DefaultBaselineFollowers = 1000

	// ViewsPerFollower is the fixed estimate used to seed monthly views from
	// the starting follower count.
	ViewsPerFollower = 5

	// baselineEngagement is the starting engagement rate in percent.
	baselineEngagement = 5

	// unset marks a choice slot with no decision yet.
	unset = -1
)

// Baseline is the metric snapshot a run starts from.
type Baseline struct {
	Followers   int64 `json:"followers"`
	Views       int64 `json:"views"`
	Engagement  int   `json:"engagement"`
	Income      int64 `json:"income"`
	Subscribers int64 `json:"subscribers"`
}

// State is the current projection: running totals plus the accumulated cost
// rows of every committed choice. Engagement is the only clamped metric;
// income can go negative.
type State struct {
	Followers   int64                `json:"followers"`
	Views       int64                `json:"views"`
	Engagement  int                  `json:"engagement"`
	Income      int64                `json:"income"`
	Subscribers int64                `json:"subscribers"`
	ActiveCosts []scaling.ScaledCost `json:"active_costs"`
}

// Engine owns one simulation run. All commands and queries are safe for
// concurrent use; calls are short and synchronous, so a single mutex covers
// the whole surface.
type Engine struct {
	mu         sync.Mutex
	scenario   *scenario.Scenario
	baseline   Baseline
	selections []int
	state      State
	history    []int64
}

// New creates an engine over a loaded scenario, initialized to the default
// baseline with no choices made.
func New(sc *scenario.Scenario) (*Engine, error) {
	if sc == nil || sc.NonTerminalCount() == 0 {
		return nil, ErrNoScenarioData
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoScenarioData, err)
	}

	e := &Engine{scenario: sc}
	e.start(DefaultBaselineFollowers)
	return e, nil
}

// Start begins a fresh run from the given starting follower count. Views are
// seeded as a fixed multiple of followers; all choice slots reset to unset.
func (e *Engine) Start(baselineFollowers int64) error {
	if baselineFollowers < MinBaselineFollowers {
		return fmt.Errorf("%w: %d followers (minimum %d)", ErrInvalidBaseline, baselineFollowers, MinBaselineFollowers)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.start(baselineFollowers)
	return nil
}

// Reset returns the engine to a fresh run at the original default baseline.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.start(DefaultBaselineFollowers)
}

func (e *Engine) start(baselineFollowers int64) {
	e.baseline = Baseline{
		Followers:  baselineFollowers,
		Views:      baselineFollowers * ViewsPerFollower,
		Engagement: baselineEngagement,
	}
	e.selections = make([]int, e.scenario.NonTerminalCount())
	for i := range e.selections {
		e.selections[i] = unset
	}
	e.history = make([]int64, len(e.selections)+1)
	e.recompute()
}

// SelectChoice commits the choice at choiceIndex for the given chapter and
// replays the run. Passing choiceIndex -1 clears the slot. Later chapters'
// effects re-derive automatically since their scaling depends on the follower
// count at their step.
func (e *Engine) SelectChoice(chapterIndex, choiceIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if chapterIndex < 0 || chapterIndex >= len(e.selections) {
		return fmt.Errorf("%w: chapter %d of %d", ErrInvalidSelection, chapterIndex, len(e.selections))
	}
	choices := e.scenario.Chapters[chapterIndex].Choices
	if choiceIndex != unset && (choiceIndex < 0 || choiceIndex >= len(choices)) {
		return fmt.Errorf("%w: choice %d of %d in chapter %d", ErrInvalidSelection, choiceIndex, len(choices), chapterIndex)
	}

	e.selections[chapterIndex] = choiceIndex
	e.recompute()
	return nil
}

// recompute replays every committed choice in chapter order from the
// baseline. Each step scales against the follower count already updated by
// earlier steps — the compounding the whole model is built around. Callers
// hold the mutex.
func (e *Engine) recompute() {
	st := State{
		Followers:   e.baseline.Followers,
		Views:       e.baseline.Views,
		Engagement:  e.baseline.Engagement,
		Income:      e.baseline.Income,
		Subscribers: e.baseline.Subscribers,
	}
	e.history[0] = st.Followers

	for i, sel := range e.selections {
		if sel != unset {
			eff := scaling.Scale(e.scenario.Chapters[i].Choices[sel].Effect, st.Followers)
			st.Followers += eff.Followers
			st.Views += eff.Views
			st.Income += eff.Income
			st.Subscribers += eff.Subscribers
			st.Engagement = clampEngagement(st.Engagement + eff.Engagement)
			st.ActiveCosts = append(st.ActiveCosts, eff.Costs...)
		}
		// Unset chapters still record the carried-forward value, so the
		// history always spans every step boundary.
		e.history[i+1] = st.Followers
	}

	e.state = st
}

func clampEngagement(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Snapshot returns a copy of the current projection.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state
	st.ActiveCosts = append([]scaling.ScaledCost(nil), e.state.ActiveCosts...)
	return st
}

// Baseline returns the metrics the current run started from.
func (e *Engine) Baseline() Baseline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baseline
}

// HistoryByStep returns one follower snapshot per chapter boundary: index 0
// is the baseline, index i the count after chapter i-1. Always exactly
// decision-chapters+1 long.
func (e *Engine) HistoryByStep() []int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int64(nil), e.history...)
}

// Selections returns a copy of the choice slots (-1 = unset).
func (e *Engine) Selections() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.selections...)
}

// AllChoicesMade reports whether every decision chapter has a committed
// choice, making the terminal chapter reachable.
func (e *Engine) AllChoicesMade() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, sel := range e.selections {
		if sel == unset {
			return false
		}
	}
	return true
}

// CurrentMonthlyCost sums every active cost row.
func (e *Engine) CurrentMonthlyCost() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var total int64
	for _, c := range e.state.ActiveCosts {
		total += c.Value
	}
	return total
}

// Scenario returns the immutable decision tree this run plays through.
func (e *Engine) Scenario() *scenario.Scenario {
	return e.scenario
}
