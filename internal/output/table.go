// Package output renders cartrules results for the terminal.
//
// Tables are drawn with go-pretty. Association labels are coloured with
// ANSI codes when stdout is a terminal and NO_COLOR is unset. Progress
// indicators write to stderr so table or JSON output on stdout stays clean.
package output

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/cartrules/internal/analyzer"
	"github.com/blackwell-systems/cartrules/internal/apriori"
	"github.com/blackwell-systems/cartrules/internal/dataset"
	"github.com/blackwell-systems/cartrules/internal/rules"
	"github.com/blackwell-systems/cartrules/internal/store"
)

// ANSI color codes for association labels
const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorGray  = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	t.Style().Format.Header = text.FormatDefault
	return t
}

// alignRight right-aligns the given 1-based columns.
func alignRight(t table.Writer, columns ...int) {
	configs := make([]table.ColumnConfig, 0, len(columns))
	for _, c := range columns {
		configs = append(configs, table.ColumnConfig{Number: c, Align: text.AlignRight})
	}
	t.SetColumnConfigs(configs)
}

// RenderItemsetTable renders frequent itemsets in the order given. A limit
// above zero shows only the first limit rows.
func RenderItemsetTable(itemsets []apriori.Itemset, limit int) string {
	if len(itemsets) == 0 {
		return "No frequent itemsets found.\n"
	}

	t := newTable()
	t.AppendHeader(table.Row{"#", "Itemset", "Size", "Count", "Support"})
	alignRight(t, 1, 3, 4, 5)

	shown := clip(len(itemsets), limit)
	for i, is := range itemsets[:shown] {
		t.AppendRow(table.Row{i + 1, is.String(), is.Len(), humanize.Comma(int64(is.Count)), formatPercent(is.Support())})
	}

	return t.Render() + "\n" + moreFooter(len(itemsets), shown, "itemsets")
}

// RenderRuleTable renders association rules in the order given. A limit
// above zero shows only the first limit rows.
func RenderRuleTable(rs []rules.Rule, limit int) string {
	if len(rs) == 0 {
		return "No association rules found.\n"
	}

	t := newTable()
	t.AppendHeader(table.Row{"#", "Antecedent", "", "Consequent", "Support", "Confidence", "Lift", "Leverage", "Conviction", "Association"})
	alignRight(t, 1, 5, 6, 7, 8, 9)

	shown := clip(len(rs), limit)
	for i, r := range rs[:shown] {
		assoc := rules.Classify(r.Lift)
		t.AppendRow(table.Row{
			i + 1,
			"{" + strings.Join(r.Antecedent, ", ") + "}",
			"→",
			"{" + strings.Join(r.Consequent, ", ") + "}",
			formatPercent(r.Support),
			formatPercent(r.Confidence),
			fmt.Sprintf("%.3f", r.Lift),
			fmt.Sprintf("%+.3f", r.Leverage),
			formatConviction(r.Conviction),
			colorize(associationColor(assoc), string(assoc)),
		})
	}

	return t.Render() + "\n" + moreFooter(len(rs), shown, "rules")
}

// RenderRecommendationTable renders basket suggestions with the rule behind
// each one.
func RenderRecommendationTable(recs []analyzer.Recommendation) string {
	if len(recs) == 0 {
		return "No suggestions for this basket.\n"
	}

	t := newTable()
	t.AppendHeader(table.Row{"Suggest", "Confidence", "Lift", "Because"})
	alignRight(t, 2, 3)
	for _, rec := range recs {
		t.AppendRow(table.Row{
			rec.Item,
			formatPercent(rec.Confidence),
			fmt.Sprintf("%.3f", rec.Lift),
			rec.Rule.String(),
		})
	}
	return t.Render() + "\n"
}

// RenderAssociationSummary renders a one-line count of rules per lift class.
// Format: "positive: 14 · independent: 0 · negative: 10"
func RenderAssociationSummary(rs []rules.Rule) string {
	counts := make(map[rules.Association]int)
	for _, r := range rs {
		counts[rules.Classify(r.Lift)]++
	}

	parts := make([]string, 0, 3)
	for _, a := range []rules.Association{rules.Positive, rules.Independent, rules.Negative} {
		parts = append(parts, fmt.Sprintf("%s: %d", colorize(associationColor(a), string(a)), counts[a]))
	}
	return strings.Join(parts, " · ")
}

// RenderInterpretation renders the plain-language reading of one rule.
func RenderInterpretation(r rules.Rule) string {
	in := rules.Interpret(r)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s  [%s]\n", r, colorize(associationColor(in.Association), string(in.Association))))
	sb.WriteString("  support:    " + in.Support + "\n")
	sb.WriteString("  confidence: " + in.Confidence + "\n")
	sb.WriteString("  lift:       " + in.Lift + "\n")
	return sb.String()
}

// RenderLevelTable renders per-level search statistics.
func RenderLevelTable(levels []apriori.LevelStat) string {
	if len(levels) == 0 {
		return ""
	}

	t := newTable()
	t.AppendHeader(table.Row{"Size", "Candidates", "Pruned", "Frequent"})
	alignRight(t, 1, 2, 3, 4)
	for _, l := range levels {
		t.AppendRow(table.Row{l.Size, humanize.Comma(int64(l.Candidates)), humanize.Comma(int64(l.Pruned)), humanize.Comma(int64(l.Frequent))})
	}
	return t.Render() + "\n"
}

// RenderStats renders the dataset summary followed by the per-item
// frequency table, most frequent first.
func RenderStats(st dataset.Stats, counts map[string]int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Transactions:   %s\n", humanize.Comma(int64(st.Transactions))))
	sb.WriteString(fmt.Sprintf("Distinct items: %s\n", humanize.Comma(int64(st.DistinctItems))))
	sb.WriteString(fmt.Sprintf("Item mentions:  %s\n", humanize.Comma(int64(st.TotalItems))))
	sb.WriteString(fmt.Sprintf("Avg basket:     %.2f items (max %d)\n", st.AvgBasket, st.MaxBasket))

	if len(counts) == 0 {
		return sb.String()
	}

	items := make([]string, 0, len(counts))
	for item := range counts {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if counts[items[i]] != counts[items[j]] {
			return counts[items[i]] > counts[items[j]]
		}
		return items[i] < items[j]
	})

	t := newTable()
	t.AppendHeader(table.Row{"Item", "Count", "Support"})
	alignRight(t, 2, 3)
	for _, item := range items {
		support := 0.0
		if st.Transactions > 0 {
			support = float64(counts[item]) / float64(st.Transactions)
		}
		t.AppendRow(table.Row{item, humanize.Comma(int64(counts[item])), formatPercent(support)})
	}

	sb.WriteString("\n")
	sb.WriteString(t.Render())
	sb.WriteString("\n")
	return sb.String()
}

// RenderDatasetTable renders stored datasets.
func RenderDatasetTable(infos []*store.DatasetInfo) string {
	if len(infos) == 0 {
		return "No datasets loaded. Run 'cartrules load <file>' to import one.\n"
	}

	t := newTable()
	t.AppendHeader(table.Row{"Name", "Transactions", "Items", "Loaded", "Source"})
	alignRight(t, 2, 3)
	for _, info := range infos {
		t.AppendRow(table.Row{
			info.Name,
			humanize.Comma(int64(info.Transactions)),
			humanize.Comma(int64(info.Items)),
			formatRelativeTime(info.LoadedAt),
			truncate(info.Source, 40),
		})
	}
	return t.Render() + "\n"
}

// RenderRunTable renders saved runs. IDs are shortened to 8 characters;
// any unique prefix is accepted by 'runs show'.
func RenderRunTable(list []*store.Run) string {
	if len(list) == 0 {
		return "No saved runs. Use 'cartrules mine --save' to archive one.\n"
	}

	t := newTable()
	t.AppendHeader(table.Row{"ID", "Dataset", "Created", "Min Sup", "Min Conf", "Txns", "Itemsets", "Rules"})
	alignRight(t, 4, 5, 6, 7, 8)
	for _, r := range list {
		t.AppendRow(table.Row{
			shortID(r.ID),
			r.Dataset,
			formatRelativeTime(r.CreatedAt),
			formatPercent(r.MinSupport),
			formatPercent(r.MinConfidence),
			humanize.Comma(int64(r.Transactions)),
			humanize.Comma(int64(r.Itemsets)),
			humanize.Comma(int64(r.Rules)),
		})
	}
	return t.Render() + "\n"
}

// formatPercent renders a ratio in [0, 1] as a percentage.
func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// formatConviction renders conviction, using ∞ for certain rules.
func formatConviction(v float64) string {
	if math.IsInf(v, 1) {
		return "∞"
	}
	return fmt.Sprintf("%.3f", v)
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}

// associationColor returns the ANSI color code for a lift class.
func associationColor(a rules.Association) string {
	switch a {
	case rules.Positive:
		return colorGreen
	case rules.Negative:
		return colorRed
	default:
		return colorGray
	}
}

func clip(n, limit int) int {
	if limit > 0 && limit < n {
		return limit
	}
	return n
}

func moreFooter(total, shown int, noun string) string {
	if shown >= total {
		return ""
	}
	return fmt.Sprintf("... %d more %s (use --top 0 to show all)\n", total-shown, noun)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate truncates a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
