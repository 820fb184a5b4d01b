package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/growthsim/internal/entropy"
	"github.com/talgya/growthsim/internal/scenario"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [scenario.csv]",
		Short: "Check a scenario CSV and print its structure",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging("warn")

			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			seed, _ := cmd.Flags().GetInt64("seed")

			// Load directly instead of LoadFile: validation must report the
			// file's problems, not paper over them with the fallback.
			sc, err := loadStrict(path, seed)
			if err != nil {
				return err
			}

			fmt.Printf("%d chapters (%d decisions), seed %d\n\n",
				len(sc.Chapters), sc.NonTerminalCount(), sc.Seed)
			for _, ch := range sc.Chapters {
				if ch.Terminal() {
					fmt.Printf("%2d. %s (terminal)\n", ch.Index+1, ch.Title)
					continue
				}
				fmt.Printf("%2d. %s — %d choices\n", ch.Index+1, ch.Title, len(ch.Choices))
				for j, c := range ch.Choices {
					cost := ""
					if len(c.Effect.Costs) > 0 {
						cost = fmt.Sprintf("  [%s %+.0f/mo]",
							c.Effect.Costs[0].Name, c.Effect.Costs[0].MonthlyValue)
					}
					fmt.Printf("      %d) %s%s\n", j, c.Title, cost)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64("seed", 1, "Scenario seed used for the structural pass")
	return cmd
}

func loadStrict(path string, seed int64) (*scenario.Scenario, error) {
	src := entropy.NewSource(seed)
	if path == "" {
		return scenario.LoadEmbedded(src)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scenario.Load(f, src)
}
