package fuzzy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"procsight/domain/core"
	"procsight/domain/series"
)

// DefaultTopRules bounds how many rules a mining run reports.
const DefaultTopRules = 20

// MinRows is the smallest row count the percentile thresholds are defined
// for.
const MinRows = 2

// Miner quantizes each series into low/medium/high bands at its own 33rd
// and 66th percentiles and counts co-occurring (antecedent tuple, consequent
// label) pairs across rows. The last selected series is the output; all
// preceding series form the antecedent, in selection order.
type Miner struct {
	TopRules int
}

// NewMiner constructs a Miner reporting at most top rules; top <= 0 selects
// DefaultTopRules.
func NewMiner(top int) *Miner {
	if top <= 0 {
		top = DefaultTopRules
	}
	return &Miner{TopRules: top}
}

// thresholds holds one series' band boundaries.
type thresholds struct {
	q33 float64
	q66 float64
}

// Label places a value into a band. The extreme bands are closed: a value at
// exactly the 33rd percentile is low, at exactly the 66th is high.
func (t thresholds) Label(v float64) series.FuzzyLabel {
	switch {
	case v <= t.q33:
		return series.LabelLow
	case v >= t.q66:
		return series.LabelHigh
	default:
		return series.LabelMedium
	}
}

// Mine extracts association rules over a cleaned dataset: every row without
// missing values contributes one (antecedent tuple, consequent) observation.
// Rules come back sorted by support, ties in first-seen row order, truncated
// to TopRules.
func (m *Miner) Mine(ds *series.Dataset) ([]series.FuzzyRule, error) {
	if len(ds.Columns) < 2 {
		return nil, fmt.Errorf("%w: fuzzy mining needs at least two series", core.ErrTooFewSeries)
	}
	if ds.Len() < MinRows {
		return nil, fmt.Errorf("%w: fuzzy mining needs at least %d rows, have %d",
			core.ErrInsufficientData, MinRows, ds.Len())
	}

	bands := make([]thresholds, len(ds.Columns))
	for i, key := range ds.Columns {
		t, err := seriesThresholds(ds.Values[key])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", core.ErrInsufficientData, key, err)
		}
		bands[i] = t
	}

	inputs := ds.Columns[:len(ds.Columns)-1]
	output := ds.Columns[len(ds.Columns)-1]
	outBands := bands[len(ds.Columns)-1]

	counts := make(map[string]int)
	firstSeen := make(map[string]series.FuzzyRule)
	order := make([]string, 0)

	labels := make([]series.FuzzyLabel, len(inputs))
rows:
	for row := 0; row < ds.Len(); row++ {
		for i, key := range inputs {
			v := ds.Values[key][row]
			if series.IsMissing(v) {
				continue rows
			}
			labels[i] = bands[i].Label(v)
		}
		out := ds.Values[output][row]
		if series.IsMissing(out) {
			continue
		}
		conLabel := outBands.Label(out)

		id := ruleID(labels, conLabel)
		if _, seen := counts[id]; !seen {
			order = append(order, id)
			firstSeen[id] = series.FuzzyRule{
				Antecedent: append([]series.FuzzyLabel(nil), labels...),
				Consequent: conLabel,
			}
		}
		counts[id]++
	}

	rules := make([]series.FuzzyRule, 0, len(order))
	for _, id := range order {
		r := firstSeen[id]
		r.Support = counts[id]
		rules = append(rules, r)
	}

	// Highest support first; ties keep discovery order.
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Support > rules[j].Support
	})
	if len(rules) > m.TopRules {
		rules = rules[:m.TopRules]
	}
	return rules, nil
}

func ruleID(antecedent []series.FuzzyLabel, consequent series.FuzzyLabel) string {
	var b strings.Builder
	for _, l := range antecedent {
		b.WriteString(string(l))
		b.WriteByte('|')
	}
	b.WriteString(">")
	b.WriteString(string(consequent))
	return b.String()
}

// seriesThresholds computes the 33rd and 66th percentiles over the present
// values of one column.
func seriesThresholds(values []float64) (thresholds, error) {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !series.IsMissing(v) {
			present = append(present, v)
		}
	}
	if len(present) < MinRows {
		return thresholds{}, fmt.Errorf("%d present values, need %d", len(present), MinRows)
	}
	q33, err := stats.Percentile(present, 33)
	if err != nil {
		return thresholds{}, err
	}
	q66, err := stats.Percentile(present, 66)
	if err != nil {
		return thresholds{}, err
	}
	return thresholds{q33: q33, q66: q66}, nil
}
