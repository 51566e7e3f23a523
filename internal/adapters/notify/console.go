package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// Console implementa ports.Notifier escribiendo a stdout. Es el canal por
// defecto en desarrollo y el fallback cuando Telegram no está configurado.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout. Con table=true el
// resumen de ciclo sale como tablas completas; si no, en una línea.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// BetPlaced imprime una apuesta nueva o una acumulación.
func (c *Console) BetPlaced(_ context.Context, pos domain.Position, rationale string) error {
	fmt.Fprintf(c.out, "[%s] BET  %s | %s %.1f sh @ %.3f ($%.2f) edge %+.1f%% | %s\n",
		timestamp(), pos.Matchup(), pos.Outcome,
		pos.Shares, pos.AvgPrice, pos.CostBasis, pos.EntryEdge*100, rationale)
	return nil
}

// BetSold imprime una venta anticipada con su P&L.
func (c *Console) BetSold(_ context.Context, pos domain.Position, rationale string) error {
	fmt.Fprintf(c.out, "[%s] SELL %s | %s %.1f sh @ %.3f pnl $%+.2f | %s\n",
		timestamp(), pos.Matchup(), pos.Outcome,
		pos.Shares, pos.ExitPrice, pos.Profit, rationale)
	return nil
}

// BetResolved imprime la resolución de un mercado.
func (c *Console) BetResolved(_ context.Context, pos domain.Position) error {
	verdict := "WON "
	if pos.Status == domain.StatusLost {
		verdict = "LOST"
	}
	fmt.Fprintf(c.out, "[%s] %s %s | %s pnl $%+.2f\n",
		timestamp(), verdict, pos.Matchup(), pos.Outcome, pos.Profit)
	return nil
}

// CycleSummary imprime el resumen del ciclo en el modo configurado.
func (c *Console) CycleSummary(_ context.Context, r domain.CycleReport) error {
	if c.table {
		c.printFull(r)
	} else {
		c.printCompact(r)
	}
	return nil
}

// printCompact resume el ciclo en una línea, dos si hubo skips.
func (c *Console) printCompact(r domain.CycleReport) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d matches | %d mkts | %d cands | %d placed | bal $%.2f | exp $%.2f | %d open",
		timestamp(), r.Matches, r.Markets, len(r.Candidates), r.Placed,
		r.Balance, r.Exposure, len(r.Open))
	if line := skipsLine(r.Skips); line != "" {
		fmt.Fprintf(&sb, "\n  skips: %s", line)
	}
	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la tabla de candidatos y la de posiciones abiertas.
func (c *Console) printFull(r domain.CycleReport) {
	fmt.Fprintf(c.out, "\n[%s] cycle %.1fs — %d matches, %d markets, %d candidates, %d placed\n",
		timestamp(), r.Duration.Seconds(), r.Matches, r.Markets, len(r.Candidates), r.Placed)

	if len(r.Candidates) > 0 {
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("#", "Matchup", "Outcome", "Ask", "Cons", "Srcs", "Edge", "MinEdge", "Stake")
		for i, cand := range r.Candidates {
			tbl.Append(
				fmt.Sprintf("%d", i+1),
				truncate(cand.Matchup(), 28),
				truncate(cand.Outcome, 18),
				fmt.Sprintf("%.3f", cand.AskPrice),
				fmt.Sprintf("%.3f", cand.Consensus.Probability),
				fmt.Sprintf("%d", cand.Consensus.Sources),
				fmt.Sprintf("%+.1f%%", cand.Edge*100),
				fmt.Sprintf("%.1f%%", cand.MinEdge*100),
				stakeLabel(cand.Stake),
			)
		}
		tbl.Render()
	}

	if line := skipsLine(r.Skips); line != "" {
		fmt.Fprintf(c.out, "  skips: %s\n", line)
	}

	if len(r.Open) > 0 {
		fmt.Fprintf(c.out, "\n  open — $%.2f at risk, $%.2f correlated:\n",
			r.Exposure, r.CorrelatedExposure)
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Matchup", "Outcome", "Shares", "Avg", "Cost", "Edge@in", "Age")
		for _, pos := range r.Open {
			tbl.Append(
				truncate(pos.Matchup(), 28),
				truncate(pos.Outcome, 18),
				fmt.Sprintf("%.1f", pos.Shares),
				fmt.Sprintf("%.3f", pos.AvgPrice),
				fmt.Sprintf("$%.2f", pos.CostBasis),
				fmt.Sprintf("%+.1f%%", pos.EntryEdge*100),
				ageLabel(pos.CreatedAt),
			)
		}
		tbl.Render()
	}

	fmt.Fprintf(c.out, "  balance $%.2f\n\n", r.Balance)
}

// --- helpers ---

func timestamp() string {
	return time.Now().Format("15:04:05")
}

func stakeLabel(s domain.Stake) string {
	if s.Shares <= 0 {
		return "-"
	}
	return fmt.Sprintf("$%.2f/%.0fsh", s.USD, s.Shares)
}

// skipsLine ordena las razones alfabéticamente para que el output sea
// estable entre ciclos.
func skipsLine(skips map[string]int) string {
	if len(skips) == 0 {
		return ""
	}
	reasons := make([]string, 0, len(skips))
	for r := range skips {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)

	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, fmt.Sprintf("%s:%d", r, skips[r]))
	}
	return strings.Join(parts, " ")
}

func ageLabel(since time.Time) string {
	age := time.Since(since)
	if age < time.Hour {
		return fmt.Sprintf("%.0fm", age.Minutes())
	}
	if age < 48*time.Hour {
		return fmt.Sprintf("%.1fh", age.Hours())
	}
	return fmt.Sprintf("%.0fd", age.Hours()/24)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
