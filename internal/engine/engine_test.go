package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/growthsim/internal/scaling"
	"github.com/talgya/growthsim/internal/scenario"
)

// testScenario builds a three-decision tree directly, bypassing ingestion, so
// expected numbers stay easy to derive.
func testScenario() *scenario.Scenario {
	grow := func(ratio float64) scenario.Choice {
		return scenario.Choice{Title: "grow", Effect: scaling.RawEffect{FollowersRatio: ratio}}
	}
	return &scenario.Scenario{
		Seed: 1,
		Chapters: []scenario.Chapter{
			{Index: 0, Title: "one", Choices: []scenario.Choice{grow(0.05), grow(0.10)}},
			{Index: 1, Title: "two", Choices: []scenario.Choice{grow(0.05), grow(-0.02)}},
			{Index: 2, Title: "three", Choices: []scenario.Choice{
				{Title: "hire", Effect: scaling.RawEffect{
					FollowersRatio:  0.03,
					EngagementDelta: 2,
					Costs:           []scaling.Cost{{Name: "Editor", MonthlyValue: -100}},
				}},
				{Title: "push", Effect: scaling.RawEffect{EngagementDelta: -10}},
			}},
			{Index: 3, Title: "end"},
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testScenario())
	require.NoError(t, err)
	return e
}

func TestNewRejectsMissingScenario(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoScenarioData)

	_, err = New(&scenario.Scenario{Chapters: []scenario.Chapter{{Title: "end"}}})
	assert.ErrorIs(t, err, ErrNoScenarioData)
}

func TestStartSeedsBaseline(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start(2000))

	b := e.Baseline()
	assert.Equal(t, int64(2000), b.Followers)
	assert.Equal(t, int64(10000), b.Views)

	st := e.Snapshot()
	assert.Equal(t, int64(2000), st.Followers)
	assert.Equal(t, int64(10000), st.Views)
	assert.Empty(t, st.ActiveCosts)
	assert.Equal(t, []int64{2000, 2000, 2000, 2000}, e.HistoryByStep())
	assert.False(t, e.AllChoicesMade())
}

func TestStartRejectsBadBaseline(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start(5000))
	require.NoError(t, e.SelectChoice(0, 0))
	before := e.Snapshot()

	assert.ErrorIs(t, e.Start(99), ErrInvalidBaseline)
	assert.ErrorIs(t, e.Start(0), ErrInvalidBaseline)
	assert.ErrorIs(t, e.Start(-1000), ErrInvalidBaseline)

	// Rejection leaves the running state untouched.
	assert.Equal(t, before, e.Snapshot())

	assert.NoError(t, e.Start(MinBaselineFollowers))
}

func TestSelectChoiceValidation(t *testing.T) {
	e := newTestEngine(t)
	before := e.Snapshot()

	assert.ErrorIs(t, e.SelectChoice(-1, 0), ErrInvalidSelection)
	assert.ErrorIs(t, e.SelectChoice(3, 0), ErrInvalidSelection) // terminal chapter
	assert.ErrorIs(t, e.SelectChoice(99, 0), ErrInvalidSelection)
	assert.ErrorIs(t, e.SelectChoice(0, 2), ErrInvalidSelection)
	assert.ErrorIs(t, e.SelectChoice(0, -2), ErrInvalidSelection)

	// No partial writes on rejection.
	assert.Equal(t, before, e.Snapshot())
	assert.Equal(t, []int{-1, -1, -1}, e.Selections())
}

func TestCompoundingReplay(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start(1000))

	// +5% at 1000 followers: round(1000 × 0.05 × dampener) = 231.
	require.NoError(t, e.SelectChoice(0, 0))
	assert.Equal(t, int64(1231), e.Snapshot().Followers)
	assert.Equal(t, []int64{1000, 1231, 1231, 1231}, e.HistoryByStep())

	// The second step scales against 1231, not the baseline.
	require.NoError(t, e.SelectChoice(1, 0))
	assert.Equal(t, int64(1491), e.Snapshot().Followers)
	assert.Equal(t, []int64{1000, 1231, 1491, 1491}, e.HistoryByStep())
}

func TestSkippedChapterCarriesForward(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start(1000))

	// Only chapter 1 answered: it scales against the untouched baseline and
	// chapter 0 contributes a flat segment.
	require.NoError(t, e.SelectChoice(1, 0))
	assert.Equal(t, []int64{1000, 1000, 1231, 1231}, e.HistoryByStep())
}

func TestReselectionRederivesDownstream(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start(1000))
	require.NoError(t, e.SelectChoice(0, 0))
	require.NoError(t, e.SelectChoice(1, 0))
	withA := e.HistoryByStep()

	// Switching chapter 0 must change chapter 1's scaled effect too.
	require.NoError(t, e.SelectChoice(0, 1))
	withB := e.HistoryByStep()

	assert.NotEqual(t, withA[1], withB[1])
	assert.NotEqual(t, withA[2], withB[2])

	// And switching back restores the original numbers exactly.
	require.NoError(t, e.SelectChoice(0, 0))
	assert.Equal(t, withA, e.HistoryByStep())
}

func TestDeterministicReplay(t *testing.T) {
	run := func() (State, []int64) {
		e, err := New(testScenario())
		require.NoError(t, err)
		require.NoError(t, e.Start(4200))
		require.NoError(t, e.SelectChoice(0, 1))
		require.NoError(t, e.SelectChoice(1, 1))
		require.NoError(t, e.SelectChoice(2, 0))
		return e.Snapshot(), e.HistoryByStep()
	}

	st1, h1 := run()
	st2, h2 := run()
	assert.Equal(t, st1, st2)
	assert.Equal(t, h1, h2)
}

func TestUnsetChoice(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start(1000))
	require.NoError(t, e.SelectChoice(0, 0))
	require.NoError(t, e.SelectChoice(2, 0))
	assert.NotEmpty(t, e.Snapshot().ActiveCosts)

	require.NoError(t, e.SelectChoice(2, -1))
	st := e.Snapshot()
	assert.Empty(t, st.ActiveCosts)
	assert.Equal(t, int64(1231), st.Followers)
	assert.Equal(t, []int{0, -1, -1}, e.Selections())
}

func TestEngagementClamped(t *testing.T) {
	sc := &scenario.Scenario{
		Chapters: []scenario.Chapter{
			{Index: 0, Choices: []scenario.Choice{
				{Title: "down", Effect: scaling.RawEffect{EngagementDelta: -40}},
				{Title: "up", Effect: scaling.RawEffect{EngagementDelta: 70}},
			}},
			{Index: 1, Choices: []scenario.Choice{
				{Title: "down", Effect: scaling.RawEffect{EngagementDelta: -40}},
				{Title: "up", Effect: scaling.RawEffect{EngagementDelta: 70}},
			}},
			{Index: 2, Title: "end"},
		},
	}
	e, err := New(sc)
	require.NoError(t, err)

	require.NoError(t, e.SelectChoice(0, 0))
	assert.Equal(t, 0, e.Snapshot().Engagement)
	require.NoError(t, e.SelectChoice(1, 0))
	assert.Equal(t, 0, e.Snapshot().Engagement)

	require.NoError(t, e.SelectChoice(0, 1))
	require.NoError(t, e.SelectChoice(1, 1))
	assert.Equal(t, 100, e.Snapshot().Engagement)

	// Clamp applies after each step, not once at the end: -40 from the
	// floor then +70 lands at 70, not 30 short of the naive sum.
	require.NoError(t, e.SelectChoice(0, 0))
	assert.Equal(t, 70, e.Snapshot().Engagement)
}

func TestMonthlyCost(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start(1000))
	assert.Zero(t, e.CurrentMonthlyCost())

	// Cost scales with the absolute multiplier at the follower count the
	// chapter sees: round(-100 × (1000/35000)^0.57) = -13.
	require.NoError(t, e.SelectChoice(2, 0))
	assert.Equal(t, int64(-13), e.CurrentMonthlyCost())

	// Growing earlier chapters re-derives the cost at the larger size.
	require.NoError(t, e.SelectChoice(0, 0))
	assert.Equal(t, int64(-15), e.CurrentMonthlyCost())

	st := e.Snapshot()
	require.Len(t, st.ActiveCosts, 1)
	assert.Equal(t, "Editor", st.ActiveCosts[0].Name)
}

func TestAllChoicesMadeAndReset(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start(1000))

	for i := 0; i < 3; i++ {
		assert.False(t, e.AllChoicesMade())
		require.NoError(t, e.SelectChoice(i, 0))
	}
	assert.True(t, e.AllChoicesMade())

	e.Reset()
	assert.False(t, e.AllChoicesMade())
	assert.Equal(t, int64(DefaultBaselineFollowers), e.Baseline().Followers)
	assert.Equal(t, []int{-1, -1, -1}, e.Selections())
}

func TestSnapshotIsACopy(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Start(1000))
	require.NoError(t, e.SelectChoice(2, 0))

	st := e.Snapshot()
	st.ActiveCosts[0].Value = 99999
	assert.Equal(t, int64(-13), e.CurrentMonthlyCost())

	h := e.HistoryByStep()
	h[0] = 0
	assert.Equal(t, int64(1000), e.HistoryByStep()[0])
}
