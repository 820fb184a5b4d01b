package scenario

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/talgya/growthsim/internal/entropy"
	"github.com/talgya/growthsim/internal/scaling"
)

// fallbackCSV ships inside the binary so a missing or broken scenario file
// never leaves the simulator without data.
//
//go:embed fallback.csv
var fallbackCSV []byte

// Two source schemas are in the wild: the current one, and a legacy export
// with an extra VariationID column between Step and RowType. Both normalize
// to the same row shape before chapters are built.
const (
	columnsCurrent = 12
	columnsLegacy  = 13
)

// row is one normalized record from the scenario source. Effect columns are
// still multipliers here (1.05 = +5%); conversion to ratios happens when the
// choice is built.
type row struct {
	line        int
	step        int
	question    bool
	title       string
	text        string
	followers   float64
	views       float64
	engagement  float64
	income      float64
	subscribers float64
	costName    string
	costValue   float64
	explanation string
}

// Load parses scenario rows from r and builds the chapter sequence. The
// entropy source drives variation selection and the early-chapter choice
// shuffle; the same seed always yields the same scenario.
func Load(r io.Reader, src *entropy.Source) (*Scenario, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read scenario source: %w", err)
	}

	rows, err := normalize(records)
	if err != nil {
		return nil, err
	}
	return build(rows, src)
}

// LoadFile loads the scenario at path, falling back to the embedded dataset
// when the file is missing or malformed. An empty path goes straight to the
// embedded dataset.
func LoadFile(path string, src *entropy.Source) (*Scenario, error) {
	if path == "" {
		return LoadEmbedded(src)
	}

	f, err := os.Open(path)
	if err != nil {
		slog.Warn("scenario file unavailable, using embedded dataset", "path", path, "error", err)
		return LoadEmbedded(src)
	}
	defer f.Close()

	sc, err := Load(f, src)
	if err != nil {
		slog.Warn("scenario file malformed, using embedded dataset", "path", path, "error", err)
		return LoadEmbedded(src)
	}
	return sc, nil
}

// LoadEmbedded builds the scenario from the dataset compiled into the binary.
func LoadEmbedded(src *entropy.Source) (*Scenario, error) {
	sc, err := Load(bytes.NewReader(fallbackCSV), src)
	if err != nil {
		return nil, fmt.Errorf("embedded scenario dataset: %w", err)
	}
	return sc, nil
}

// normalize sniffs the schema variant, drops the header if present, and
// converts every record into a row.
func normalize(records [][]string) ([]row, error) {
	var rows []row
	for i, rec := range records {
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}

		var variant int
		switch len(rec) {
		case columnsCurrent:
			variant = columnsCurrent
		case columnsLegacy:
			variant = columnsLegacy
		default:
			return nil, fmt.Errorf("line %d: unrecognized scenario schema (%d columns)", i+1, len(rec))
		}

		// Header rows have a non-numeric step column.
		if _, err := strconv.Atoi(strings.TrimSpace(rec[0])); err != nil {
			if i == 0 {
				continue
			}
			return nil, fmt.Errorf("line %d: step %q is not a number", i+1, rec[0])
		}

		r, err := parseRow(rec, variant, i+1)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("scenario source has no data rows")
	}
	return rows, nil
}

func parseRow(rec []string, variant, line int) (row, error) {
	step, _ := strconv.Atoi(strings.TrimSpace(rec[0]))

	// The legacy export carries a VariationID column after Step. Variations
	// are recovered from question-row positions either way, so the column
	// itself is skipped.
	fields := rec[1:]
	if variant == columnsLegacy {
		fields = rec[2:]
	}

	r := row{
		line:        line,
		step:        step,
		title:       strings.TrimSpace(fields[1]),
		text:        strings.TrimSpace(fields[2]),
		costName:    strings.TrimSpace(fields[8]),
		explanation: strings.TrimSpace(fields[10]),
	}

	switch kind := strings.ToLower(strings.TrimSpace(fields[0])); kind {
	case "question":
		r.question = true
	case "choice":
		r.question = false
	default:
		return row{}, fmt.Errorf("line %d: unknown row type %q", line, fields[0])
	}

	var err error
	if r.followers, err = parseMultiplier(fields[3]); err != nil {
		return row{}, fmt.Errorf("line %d: followers: %w", line, err)
	}
	if r.views, err = parseMultiplier(fields[4]); err != nil {
		return row{}, fmt.Errorf("line %d: views: %w", line, err)
	}
	if r.engagement, err = parseMultiplier(fields[5]); err != nil {
		return row{}, fmt.Errorf("line %d: engagement: %w", line, err)
	}
	if r.income, err = parseMultiplier(fields[6]); err != nil {
		return row{}, fmt.Errorf("line %d: income: %w", line, err)
	}
	if r.subscribers, err = parseMultiplier(fields[7]); err != nil {
		return row{}, fmt.Errorf("line %d: subscribers: %w", line, err)
	}

	if v := strings.TrimSpace(fields[9]); v != "" {
		if r.costValue, err = strconv.ParseFloat(v, 64); err != nil {
			return row{}, fmt.Errorf("line %d: cost value %q: %w", line, v, err)
		}
	}

	return r, nil
}

// parseMultiplier reads an effect multiplier column. Absent means neutral.
func parseMultiplier(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1.0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("multiplier %q: %w", s, err)
	}
	return v, nil
}

// variation is one alternate question-plus-choices bucket within a step.
type variation struct {
	title   string
	text    string
	choices []Choice
}

// build groups rows by step into variation buckets, picks one bucket per step
// at random, and assembles the chapter sequence.
func build(rows []row, src *entropy.Source) (*Scenario, error) {
	byStep := make(map[int][]*variation)
	var steps []int
	var current *variation

	for _, r := range rows {
		if r.question {
			current = &variation{title: r.title, text: r.text}
			if len(byStep[r.step]) == 0 {
				steps = append(steps, r.step)
			}
			byStep[r.step] = append(byStep[r.step], current)
			continue
		}

		if current == nil {
			return nil, fmt.Errorf("line %d: choice row before any question", r.line)
		}
		if c, ok := buildChoice(r); ok {
			current.choices = append(current.choices, c)
		}
	}
	sort.Ints(steps)

	sc := &Scenario{Seed: src.Seed()}
	for _, step := range steps {
		variations := byStep[step]
		picked := variations[0]
		if len(variations) > 1 {
			picked = variations[src.Intn(len(variations))]
		}
		sc.Chapters = append(sc.Chapters, Chapter{
			Index:   len(sc.Chapters),
			Title:   picked.title,
			Text:    picked.text,
			Choices: picked.choices,
		})
	}

	// Guarantee a terminal chapter even when the source stops on a decision.
	last := &sc.Chapters[len(sc.Chapters)-1]
	if !last.Terminal() {
		sc.Chapters = append(sc.Chapters, Chapter{
			Index: len(sc.Chapters),
			Title: "The end",
		})
	}

	// Only the first two chapters shuffle their choice order. Later chapters
	// keep source order — a long-standing quirk of the original dataset that
	// fixtures depend on.
	for i := 0; i < 2 && i < len(sc.Chapters); i++ {
		ch := &sc.Chapters[i]
		if ch.Terminal() {
			continue
		}
		src.Shuffle(len(ch.Choices), func(a, b int) {
			ch.Choices[a], ch.Choices[b] = ch.Choices[b], ch.Choices[a]
		})
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// buildChoice converts a choice row to the engine's representation,
// multiplier columns becoming signed ratios. Placeholder rows with no title,
// no text, and no effect are dropped.
func buildChoice(r row) (Choice, bool) {
	eff := scaling.RawEffect{
		FollowersRatio:   r.followers - 1,
		ViewsRatio:       r.views - 1,
		IncomeRatio:      r.income - 1,
		SubscribersRatio: r.subscribers - 1,
		EngagementDelta:  int(math.Round((r.engagement - 1) * 100)),
	}
	if r.costName != "" {
		eff.Costs = []scaling.Cost{{Name: r.costName, MonthlyValue: r.costValue}}
	}

	if r.title == "" && r.text == "" && eff.IsZero() {
		return Choice{}, false
	}

	return Choice{
		Title:       r.title,
		Text:        r.text,
		Explanation: r.explanation,
		Effect:      eff,
	}, true
}
