package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/growthsim/internal/engine"
	"github.com/talgya/growthsim/internal/entropy"
	"github.com/talgya/growthsim/internal/projection"
	"github.com/talgya/growthsim/internal/scenario"
)

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a scripted run and print the projection",
		Long: `Replay runs a full simulation from the terminal. Choices are given as a
comma-separated list of zero-based indices, one per chapter; use "-" to
leave a chapter undecided.

Examples:
  growthsim replay --followers 5000 --choices 0,2,1,0,1,2
  growthsim replay --scenario story.csv --seed 7 --choices 1,1,-,0,2,0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
				setupLogging(lvl)
			} else {
				setupLogging("warn")
			}

			followers, _ := cmd.Flags().GetInt64("followers")
			choicesArg, _ := cmd.Flags().GetString("choices")
			scenarioPath, _ := cmd.Flags().GetString("scenario")
			seed, _ := cmd.Flags().GetInt64("seed")

			sc, err := scenario.LoadFile(scenarioPath, entropy.NewSource(seed))
			if err != nil {
				return fmt.Errorf("load scenario: %w", err)
			}

			e, err := engine.New(sc)
			if err != nil {
				return err
			}
			if err := e.Start(followers); err != nil {
				return err
			}

			selections, err := parseChoices(choicesArg, sc.NonTerminalCount())
			if err != nil {
				return err
			}
			for ch, sel := range selections {
				if sel < 0 {
					continue
				}
				if err := e.SelectChoice(ch, sel); err != nil {
					return err
				}
			}

			printReplay(sc, e, followers)
			return nil
		},
	}

	cmd.Flags().Int64("followers", engine.DefaultBaselineFollowers, "Starting follower count")
	cmd.Flags().String("choices", "", "Comma-separated choice indices, one per chapter")
	cmd.Flags().String("scenario", "", "Scenario CSV path (empty = embedded dataset)")
	cmd.Flags().Int64("seed", 0, "Scenario seed (0 = random)")
	return cmd
}

// parseChoices reads the --choices list. Missing trailing chapters stay
// undecided.
func parseChoices(arg string, chapters int) ([]int, error) {
	selections := make([]int, chapters)
	for i := range selections {
		selections[i] = -1
	}
	if arg == "" {
		return selections, nil
	}

	parts := strings.Split(arg, ",")
	if len(parts) > chapters {
		return nil, fmt.Errorf("%d choices given but the scenario has %d chapters", len(parts), chapters)
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || p == "-" {
			continue
		}
		sel, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("choice %d: %q is not an index", i, p)
		}
		selections[i] = sel
	}
	return selections, nil
}

func printReplay(sc *scenario.Scenario, e *engine.Engine, baseline int64) {
	history := e.HistoryByStep()
	selections := e.Selections()

	fmt.Printf("scenario seed %d, baseline %s followers\n\n", sc.Seed, humanize.Comma(baseline))

	for i, sel := range selections {
		ch := sc.Chapters[i]
		picked := "(undecided)"
		if sel >= 0 {
			picked = ch.Choices[sel].Title
		}
		fmt.Printf("%d. %-28s %-30s %12s\n",
			i+1, ch.Title, picked, humanize.Comma(history[i+1]))
	}

	st := e.Snapshot()
	ceiling := projection.TheoreticalMaximum(sc, baseline)

	fmt.Println()
	fmt.Printf("followers    %12s   (best case %s)\n",
		humanize.Comma(st.Followers), humanize.Comma(ceiling[len(ceiling)-1]))
	fmt.Printf("views        %12s\n", humanize.Comma(st.Views))
	fmt.Printf("engagement   %11d%%\n", st.Engagement)
	fmt.Printf("income       %12s\n", humanize.Comma(st.Income))
	fmt.Printf("subscribers  %12s\n", humanize.Comma(st.Subscribers))
	fmt.Printf("monthly cost %12s\n", humanize.Comma(e.CurrentMonthlyCost()))

	if e.AllChoicesMade() {
		fmt.Printf("\n%s\n", sc.Chapters[len(sc.Chapters)-1].Title)
	}
}
