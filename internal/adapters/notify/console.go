package notify

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/phantomfill/internal/domain"
	"github.com/alejandrodnm/phantomfill/internal/strategy"
)

const ruleWidth = 55

// Console implementa ports.Reporter escribiendo texto plano.
type Console struct {
	out       io.Writer
	fillModel string
}

// NewConsoleWriter crea un reporter que escribe en w.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, fillModel: "queue"}
}

// Summary imprime el reporte de un run único o el resumen de Monte Carlo.
func (c *Console) Summary(s domain.MonteCarloSummary) error {
	if s.Runs <= 1 && len(s.Reports) == 1 {
		c.printReport(s.Reports[0], s.Seed)
		return nil
	}
	c.printMonteCarlo(s)
	return nil
}

// printReport imprime el reporte de un solo run.
func (c *Console) printReport(r domain.Report, seed uint64) {
	rule := strings.Repeat("=", ruleWidth)

	fmt.Fprintf(c.out, "\n%s\n", rule)
	fmt.Fprintf(c.out, "  PhantomFill Report: %s + %s\n", r.Strategy, c.fillModel)
	fmt.Fprintf(c.out, "  seed: %d\n", seed)
	fmt.Fprintf(c.out, "%s\n\n", rule)

	fmt.Fprintf(c.out, "  Windows:      %d\n", r.TotalWindows)
	fmt.Fprintf(c.out, "  Trades taken: %d    (%.1f%%)\n", r.TradesTaken, pct(r.TradesTaken, r.TotalWindows))
	fmt.Fprintf(c.out, "  Fills:        %d    (%.1f%% fill rate)\n", r.Fills, r.FillRate*100)
	fmt.Fprintf(c.out, "  Correct:      %d    (%.1f%% WR)\n", r.Correct, r.RealisticWinRate*100)
	fmt.Fprintf(c.out, "  Skipped:      %d    (%.1f%%)\n", r.Skipped, pct(r.Skipped, r.TotalWindows))
	if r.Failed > 0 {
		fmt.Fprintf(c.out, "  Failed:       %d    (strategy faults)\n", r.Failed)
	}
	if r.InvalidActions > 0 {
		fmt.Fprintf(c.out, "  Invalid:      %d    actions discarded\n", r.InvalidActions)
	}

	fmt.Fprintf(c.out, "\n  --- PnL %s\n", strings.Repeat("-", 45))
	fmt.Fprintf(c.out, "  Naive paper:     %+.2f\n", r.NaiveTotalPnL)
	fmt.Fprintf(c.out, "  Realistic:       %+.2f\n", r.RealisticTotalPnL)
	fmt.Fprintf(c.out, "  Phantom gap:      %.2f  <- \"what you THOUGHT you'd make\"\n", r.PhantomGap)
	fmt.Fprintf(c.out, "\n  Avg naive/trade:    %+.2f\n", r.AvgNaivePnL)
	fmt.Fprintf(c.out, "  Avg real/trade:     %+.2f\n", r.AvgRealisticPnL)

	fmt.Fprintf(c.out, "\n  --- Queue Stats %s\n", strings.Repeat("-", 37))
	fmt.Fprintf(c.out, "  Avg queue ahead:   %.1f shares\n", r.AvgQueueAhead)
	fmt.Fprintf(c.out, "  Avg fill time:    %.0f ms\n", r.AvgFillTimeMs)

	fmt.Fprintf(c.out, "\n%s\n\n", rule)
}

// printMonteCarlo imprime el resumen con intervalo p5-p95.
func (c *Console) printMonteCarlo(s domain.MonteCarloSummary) {
	rule := strings.Repeat("=", ruleWidth)

	var trades int
	if len(s.Reports) > 0 {
		trades = s.Reports[0].TradesTaken // igual en todos los runs
	}

	fmt.Fprintf(c.out, "\n%s\n", rule)
	fmt.Fprintf(c.out, "  PhantomFill Monte Carlo: %s + %s\n", s.Strategy, c.fillModel)
	fmt.Fprintf(c.out, "  %d runs, seed: %d\n", s.Runs, s.Seed)
	fmt.Fprintf(c.out, "%s\n\n", rule)

	fmt.Fprintf(c.out, "  Windows:      %d\n", s.Windows)
	fmt.Fprintf(c.out, "  Trades taken: %d    (%.1f%%)\n", trades, pct(trades, s.Windows))

	fmt.Fprintf(c.out, "\n  --- PnL (95%% confidence interval) %s\n", strings.Repeat("-", 19))
	fmt.Fprintf(c.out, "  Naive paper:     %+.2f   (deterministic)\n", s.NaiveTotalPnL)
	fmt.Fprintf(c.out, "  Realistic:       %+.2f   median [%s, %s]\n",
		s.RealisticMedian, percentileLabel(s, 5), percentileLabel(s, 95))
	fmt.Fprintf(c.out, "  Realistic mean:  %+.2f\n", s.RealisticMean)
	fmt.Fprintf(c.out, "  Phantom gap:      %.2f    median\n", s.PhantomGap)

	fmt.Fprintf(c.out, "\n  Fill rate:       %.1f%%     mean across runs\n", s.FillRateMean*100)
	fmt.Fprintf(c.out, "  Win rate:        %.1f%%     mean across runs\n", s.WinRateMean*100)

	fmt.Fprintf(c.out, "\n  Std dev:          %.2f    (realistic PnL)\n", s.RealisticStdDev)

	fmt.Fprintf(c.out, "\n%s\n\n", rule)
}

// Windows imprime el detalle por ventana de un run.
func (c *Console) Windows(results []domain.ReplayResult) error {
	if len(results) == 0 {
		fmt.Fprintln(c.out, "  No windows replayed.")
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Market", "Cat", "Outcome", "Pred", "Filled", "Queue", "Naive", "Real", "Gap", "Note")

	for i, r := range results {
		note := ""
		switch {
		case r.Failed:
			note = "FAULT: " + truncate(r.Fault, 30)
		case r.InvalidActions > 0:
			note = fmt.Sprintf("%d invalid", r.InvalidActions)
		case !r.Traded:
			note = "skip"
		}

		pred := "-"
		if r.Predicted != "" {
			pred = r.Predicted.String()
		}

		table.Append(
			fmt.Sprintf("%d", i+1),
			domain.TruncateID("", r.MarketID, 32),
			r.Category,
			outcomeLabel(r.Outcome),
			pred,
			fmt.Sprintf("%.0f/%.0f", r.SharesFilled, r.SharesRequested),
			fmt.Sprintf("%.0f", r.QueueAheadAtPlace),
			fmt.Sprintf("%+.2f", r.NaivePnL),
			fmt.Sprintf("%+.2f", r.RealisticPnL),
			fmt.Sprintf("%.2f", r.PhantomGap()),
			note,
		)
	}
	table.Render()
	return nil
}

// Compare imprime una tabla con una fila por estrategia.
func (c *Console) Compare(summaries []domain.MonteCarloSummary) error {
	table := tablewriter.NewWriter(c.out)
	table.Header("Strategy", "Runs", "Naive", "Real median", "p5", "p95", "Gap", "Fill%", "WR%")
	for _, s := range summaries {
		table.Append(
			s.Strategy,
			fmt.Sprintf("%d", s.Runs),
			fmt.Sprintf("%+.2f", s.NaiveTotalPnL),
			fmt.Sprintf("%+.2f", s.RealisticMedian),
			percentileLabel(s, 5),
			percentileLabel(s, 95),
			fmt.Sprintf("%.2f", s.PhantomGap),
			fmt.Sprintf("%.1f", s.FillRateMean*100),
			fmt.Sprintf("%.1f", s.WinRateMean*100),
		)
	}
	table.Render()
	return nil
}

// Strategies imprime las estrategias nativas disponibles.
func (c *Console) Strategies(list []strategy.Descriptor) {
	fmt.Fprintln(c.out, "Available strategies:")
	for _, d := range list {
		fmt.Fprintf(c.out, "  %-16s %s\n", d.Name, d.Description)
	}
	fmt.Fprintln(c.out, "\nOr pass a Lua script with --script path/to/strategy.lua")
}

// ImportStats imprime el resultado de un import.
func (c *Console) ImportStats(batchID string, markets, ticks, skipped, filtered int) {
	fmt.Fprintf(c.out, "Import %s complete:\n", batchID)
	fmt.Fprintf(c.out, "  Markets imported: %d\n", markets)
	fmt.Fprintf(c.out, "  Ticks imported:   %d\n", ticks)
	fmt.Fprintf(c.out, "  Markets skipped:  %d\n", skipped)
	if filtered > 0 {
		fmt.Fprintf(c.out, "  Rows filtered:    %d\n", filtered)
	}
}

// --- helpers ---

func percentileLabel(s domain.MonteCarloSummary, p float64) string {
	v, ok := s.Percentile(p)
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%+.2f", v)
}

func outcomeLabel(o domain.Outcome) string {
	if !o.Resolved() {
		return "?"
	}
	return string(o)
}

func pct(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
