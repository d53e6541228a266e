// Package report renders license, valuation and payment reports as tables.
package report

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/okian/ccsl/internal/domain/ledger"
	"github.com/okian/ccsl/internal/domain/license"
	"github.com/okian/ccsl/internal/domain/model"
	"github.com/okian/ccsl/internal/domain/valuation"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // Fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// ParseMode maps "ascii"/"table" and "markdown"/"md" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ascii", "table":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	default:
		return ASCII, fmt.Errorf("unknown report format %q", s)
	}
}

func newWriter(m Mode) table.Writer {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return w
}

func render(w table.Writer, m Mode) string {
	if m == Markdown {
		return w.RenderMarkdown()
	}
	return w.Render()
}

func rightAligned(cols ...int) []table.ColumnConfig {
	out := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		out[i] = table.ColumnConfig{Number: c, Align: text.AlignRight, AlignFooter: text.AlignRight}
	}
	return out
}

// Evaluations renders one row per metric plus the composite value.
func Evaluations(m Mode, evals []valuation.Evaluation) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Metric", "Value", "Rationale"})
	for _, ev := range evals {
		w.AppendRow(table.Row{ev.Kind.String(), fmt.Sprintf("%.4f", ev.Value), ev.Rationale})
	}
	w.AppendFooter(table.Row{"Composite", fmt.Sprintf("%.4f", valuation.Composite(evals)), ""})
	w.SetColumnConfigs(append(rightAligned(2), table.ColumnConfig{Number: 3, WidthMax: 72}))
	return render(w, m)
}

// LicenseInfo renders the license header and its contributions.
func LicenseInfo(m Mode, l *license.License) string {
	var b strings.Builder
	valid := "no"
	if l.Validate() {
		valid = "yes"
	}
	fmt.Fprintf(&b, "Project: %s\nLicense Key: %s\nValid: %s\nPayout Wallet: %s\n\n", l.ProjectName(), l.Key(), valid, l.Wallet())

	w := newWriter(m)
	w.AppendHeader(table.Row{"ID", "Contributor", "File", "Lines", "Value"})
	for _, c := range l.Contributions() {
		w.AppendRow(table.Row{c.ID, c.Contributor, c.FileID, fmt.Sprintf("%d-%d", c.LineStart, c.LineEnd), fmt.Sprintf("%.4f", c.Value())})
	}
	w.SetColumnConfigs(rightAligned(5))
	b.WriteString(render(w, m))
	return b.String()
}

// Payments renders per-contributor totals and the grand total.
func Payments(m Mode, wallet string, lg *ledger.Ledger) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Payment Report for wallet %s\n\n", wallet)

	w := newWriter(m)
	w.AppendHeader(table.Row{"Contributor", "Paid"})
	for _, e := range lg.Entries() {
		w.AppendRow(table.Row{e.Contributor, ledger.FormatAmount(e.Total)})
	}
	w.AppendFooter(table.Row{"Total Payments", ledger.FormatAmount(lg.GrandTotal())})
	w.SetColumnConfigs(rightAligned(2))
	b.WriteString(render(w, m))
	return b.String()
}

// Transactions renders the transaction log.
func Transactions(m Mode, txs []model.Transaction) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"ID", "Contribution", "To", "Amount", "Verified", "Sent"})
	for _, tx := range txs {
		w.AppendRow(table.Row{
			tx.ID,
			tx.ContributionID,
			tx.DestinationWallet,
			ledger.FormatFloat(tx.Amount),
			tx.Verified,
			tx.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	w.SetColumnConfigs(rightAligned(4))
	return render(w, m)
}
