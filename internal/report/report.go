package report

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"procsight/domain/core"
	"procsight/domain/series"
	"procsight/internal/stats"
	"procsight/internal/sysid"
)

// Report collects the outcome of one analysis run. Every section is
// independent: a section either carries results or a single error line, and
// a failed section never suppresses the others.
type Report struct {
	RunID       core.RunID
	SnapshotID  core.SnapshotID
	GeneratedAt time.Time
	Window      series.Window
	Selection   []core.SeriesKey
	Labels      map[core.SeriesKey]string
	ResampleErr string

	Stats    []stats.Description
	StatsErr string

	Correlation    *stats.CorrelationMatrix
	CorrelationErr string

	Causality    []series.CausalityResult
	CausalityErr string

	StepID []sysid.Result

	FuzzyRules []series.FuzzyRule
	FuzzyErr   string
}

// Render produces the full monospace report, sections in fixed order.
func (r *Report) Render() string {
	var b strings.Builder

	r.writeHeader(&b)
	r.writeStats(&b)
	r.writeCorrelation(&b)
	r.writeCausality(&b)
	r.writeStepID(&b)
	r.writeFuzzy(&b)

	return b.String()
}

// label resolves a series key to its display short name, falling back to the
// full key.
func (r *Report) label(key core.SeriesKey) string {
	if name, ok := r.Labels[key]; ok && name != "" {
		return name
	}
	return string(key)
}

func (r *Report) writeHeader(b *strings.Builder) {
	fmt.Fprintf(b, "Analysis run %s (snapshot %s)\n", r.RunID, r.SnapshotID)
	fmt.Fprintf(b, "Generated: %s\n", r.GeneratedAt.Format(time.RFC3339))
	if !r.Window.IsZero() {
		fmt.Fprintf(b, "Window: %s .. %s\n",
			r.Window.Start.Format("2006-01-02 15:04:05"),
			r.Window.End.Format("2006-01-02 15:04:05"))
	}
	names := make([]string, len(r.Selection))
	for i, key := range r.Selection {
		names[i] = r.label(key)
	}
	fmt.Fprintf(b, "Series: %s\n", strings.Join(names, ", "))
	if r.ResampleErr != "" {
		fmt.Fprintf(b, "Resample skipped: %s\n", r.ResampleErr)
	}
	b.WriteString("\n")
}

func (r *Report) writeStats(b *strings.Builder) {
	b.WriteString("== Descriptive Statistics ==\n")
	if r.StatsErr != "" {
		fmt.Fprintf(b, "error: %s\n\n", r.StatsErr)
		return
	}

	w := tabwriter.NewWriter(b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "series\tcount\tmean\tstd\tmin\tq25\tmedian\tq75\tmax\tmissing\tskew\tkurtosis")
	for _, d := range r.Stats {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.1f%%\t%s\t%s\n",
			r.label(d.Key), d.Count,
			num(d.Mean), num(d.Std), num(d.Min), num(d.Q25), num(d.Median),
			num(d.Q75), num(d.Max), d.MissingRate*100, num(d.Skewness), num(d.Kurtosis))
	}
	w.Flush()
	b.WriteString("\n")
}

func (r *Report) writeCorrelation(b *strings.Builder) {
	b.WriteString("== Pearson Correlation ==\n")
	if r.CorrelationErr != "" {
		fmt.Fprintf(b, "error: %s\n\n", r.CorrelationErr)
		return
	}
	if r.Correlation == nil {
		b.WriteString("not computed\n\n")
		return
	}

	m := r.Correlation
	w := tabwriter.NewWriter(b, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "\t%s\n", strings.Join(m.Labels, "\t"))
	for i, label := range m.Labels {
		cells := make([]string, len(m.Labels))
		for j := range m.Labels {
			cells[j] = num(m.Coef[i][j])
		}
		fmt.Fprintf(w, "%s\t%s\n", label, strings.Join(cells, "\t"))
	}
	w.Flush()
	b.WriteString("\n")
}

func (r *Report) writeCausality(b *strings.Builder) {
	b.WriteString("== Predictive Causality (Granger) ==\n")
	if r.CausalityErr != "" {
		fmt.Fprintf(b, "error: %s\n\n", r.CausalityErr)
		return
	}
	if len(r.Causality) == 0 {
		b.WriteString("no pairs evaluated\n\n")
		return
	}
	for _, c := range r.Causality {
		src, dst := r.label(c.Source), r.label(c.Target)
		if c.Err != "" {
			fmt.Fprintf(b, "%s -> %s : error: %s\n", src, dst, c.Err)
			continue
		}
		fmt.Fprintf(b, "%s -> %s : best_lag=%d, pvalue=%.4g\n", src, dst, c.BestLag, c.PValue)
	}
	b.WriteString("\n")
}

func (r *Report) writeStepID(b *strings.Builder) {
	b.WriteString("== Step Identification ==\n")
	if len(r.StepID) == 0 {
		b.WriteString("no series processed\n\n")
		return
	}
	for _, res := range r.StepID {
		name := r.label(res.Key)
		switch res.Status {
		case sysid.StatusTooShort:
			fmt.Fprintf(b, "%s: skipped, %s\n", name, res.Detail)
		case sysid.StatusNoStepFound:
			fmt.Fprintf(b, "%s: no step found (%s)\n", name, res.Detail)
		case sysid.StatusFitFailed:
			fmt.Fprintf(b, "%s: %d window(s) detected, fit failed: %s\n",
				name, len(res.Windows), res.Detail)
		case sysid.StatusFitted:
			m, tn := res.Model, res.Tuning
			fmt.Fprintf(b, "%s: step at %s, K=%.4g tau=%.4gs y0=%.4g R2=%s\n",
				name, res.Overlay.Window.StartTime.Format("2006-01-02 15:04:05"),
				m.K, m.Tau, m.Y0, num(m.R2))
			fmt.Fprintf(b, "    tuning: L=%.4g Kp=%.4g Ti=%.4g Td=%.4g\n",
				tn.L, tn.Kp, tn.Ti, tn.Td)
		}
	}
	b.WriteString("\n")
}

func (r *Report) writeFuzzy(b *strings.Builder) {
	b.WriteString("== Fuzzy Rules ==\n")
	if r.FuzzyErr != "" {
		fmt.Fprintf(b, "error: %s\n\n", r.FuzzyErr)
		return
	}
	if len(r.FuzzyRules) == 0 {
		b.WriteString("no rules mined\n\n")
		return
	}

	// The last selected series is the output; the rest are the inputs, in
	// selection order.
	inputs := r.Selection[:len(r.Selection)-1]
	output := r.Selection[len(r.Selection)-1]

	for _, rule := range r.FuzzyRules {
		parts := make([]string, 0, len(rule.Antecedent))
		for i, label := range rule.Antecedent {
			if i < len(inputs) {
				parts = append(parts, fmt.Sprintf("%s is %s", r.label(inputs[i]), label))
			}
		}
		fmt.Fprintf(b, "IF %s THEN %s is %s (support=%d)\n",
			strings.Join(parts, " AND "), r.label(output), rule.Consequent, rule.Support)
	}
	b.WriteString("\n")
}

// num formats a float compactly; NaN renders as a dash so tables stay
// readable.
func num(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4g", v)
}
