// Package scenario loads the decision tree the simulator replays: an ordered
// sequence of chapters, each offering a few mutually exclusive choices with
// unscaled effects. Loaded once per session and immutable afterwards.
package scenario

import (
	"fmt"

	"github.com/talgya/growthsim/internal/scaling"
)

// Choice is one selectable option within a chapter.
type Choice struct {
	Title       string            `json:"title"`
	Text        string            `json:"text"`
	Explanation string            `json:"explanation,omitempty"`
	Effect      scaling.RawEffect `json:"effect"`
}

// Chapter is one decision point in the story. The final chapter is terminal
// and carries no choices; every other chapter has at least one.
type Chapter struct {
	Index   int      `json:"index"`
	Title   string   `json:"title"`
	Text    string   `json:"text"`
	Choices []Choice `json:"choices"`
}

// Terminal reports whether this chapter ends the story.
func (c Chapter) Terminal() bool {
	return len(c.Choices) == 0
}

// Scenario is the fully constructed decision tree for one session. Seed is
// the value that drove variation selection and choice shuffling, kept so a
// session can be reproduced exactly.
type Scenario struct {
	Chapters []Chapter `json:"chapters"`
	Seed     int64     `json:"seed"`
}

// NonTerminalCount returns the number of chapters that take a decision.
func (s *Scenario) NonTerminalCount() int {
	n := 0
	for _, ch := range s.Chapters {
		if !ch.Terminal() {
			n++
		}
	}
	return n
}

// Validate checks the structural invariants: at least one decision chapter,
// exactly one terminal chapter, and it comes last.
func (s *Scenario) Validate() error {
	if len(s.Chapters) < 2 {
		return fmt.Errorf("scenario has %d chapters, need at least one decision and a terminal", len(s.Chapters))
	}
	for i, ch := range s.Chapters {
		last := i == len(s.Chapters)-1
		if last && !ch.Terminal() {
			return fmt.Errorf("final chapter %q still offers choices", ch.Title)
		}
		if !last && ch.Terminal() {
			return fmt.Errorf("chapter %d %q has no choices but is not terminal", i, ch.Title)
		}
	}
	return nil
}
