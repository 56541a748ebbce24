package reporter

import (
	"fmt"
	"io"
	"math"
	"time"

	"cdczone-bot-go/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Summary aggregates the performance of a completed run (backtest or a live
// session) from its exit fills and equity curve.
type Summary struct {
	Pair             string
	StartTime        time.Time
	EndTime          time.Time
	InitialEquity    float64
	FinalEquity      float64
	TotalProfit      float64
	ProfitPercentage float64
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	WinRate          float64
	AvgProfitLoss    float64
	MaxDrawdown      float64

	ExitsByReason map[string]int
	Trades        []models.OrderRecord
}

// Build computes the summary from filled exit orders. Entry orders and
// unfilled rows are ignored.
func Build(pair string, orders []models.OrderRecord, initialEquity, finalEquity float64, equityCurve []float64, start, end time.Time) *Summary {
	s := &Summary{
		Pair:          pair,
		StartTime:     start,
		EndTime:       end,
		InitialEquity: initialEquity,
		FinalEquity:   finalEquity,
		ExitsByReason: make(map[string]int),
	}

	var totalWin, totalLoss float64
	for _, o := range orders {
		if o.OrderType != models.OrderExit {
			continue
		}
		if o.Status != models.OrderFilled && o.Status != models.OrderPartial {
			continue
		}
		s.Trades = append(s.Trades, o)
		s.TotalTrades++
		s.ExitsByReason[o.Reason]++
		if o.PnL > 0 {
			s.WinningTrades++
			totalWin += o.PnL
		} else {
			s.LosingTrades++
			totalLoss += o.PnL
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	}
	if s.WinningTrades > 0 && s.LosingTrades > 0 {
		avgWin := totalWin / float64(s.WinningTrades)
		avgLoss := math.Abs(totalLoss / float64(s.LosingTrades))
		if avgLoss > 0 {
			s.AvgProfitLoss = avgWin / avgLoss
		}
	}

	s.TotalProfit = finalEquity - initialEquity
	if initialEquity != 0 {
		s.ProfitPercentage = s.TotalProfit / initialEquity * 100
	}
	s.MaxDrawdown = maxDrawdown(equityCurve) * 100
	return s
}

func maxDrawdown(equityCurve []float64) float64 {
	if len(equityCurve) < 2 {
		return 0
	}
	peak := equityCurve[0]
	worst := 0.0
	for _, equity := range equityCurve {
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			dd := (peak - equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// Render writes the summary and the trade log as tables.
func (s *Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Run Report: %s", s.Pair))
	t.AppendRows([]table.Row{
		{"Period", fmt.Sprintf("%s to %s",
			s.StartTime.Format("2006-01-02 15:04"), s.EndTime.Format("2006-01-02 15:04"))},
		{"Initial Equity", fmt.Sprintf("%.2f", s.InitialEquity)},
		{"Final Equity", fmt.Sprintf("%.2f", s.FinalEquity)},
		{"Total Profit", fmt.Sprintf("%.2f (%.2f%%)", s.TotalProfit, s.ProfitPercentage)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Total Trades", s.TotalTrades},
		{"Winning / Losing", fmt.Sprintf("%d / %d", s.WinningTrades, s.LosingTrades)},
		{"Win Rate", fmt.Sprintf("%.2f%%", s.WinRate)},
		{"Avg Win/Loss Ratio", fmt.Sprintf("%.2f", s.AvgProfitLoss)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", s.MaxDrawdown)},
	})
	t.AppendSeparator()
	for reason, count := range s.ExitsByReason {
		t.AppendRow(table.Row{"Exits: " + reason, count})
	}
	t.Render()

	if len(s.Trades) == 0 {
		return
	}
	tl := table.NewWriter()
	tl.SetOutputMirror(w)
	tl.SetTitle("Trades")
	tl.AppendHeader(table.Row{"#", "Filled At", "Reason", "Qty", "Exit Price", "PnL", "PnL %"})
	for i, o := range s.Trades {
		tl.AppendRow(table.Row{
			i + 1,
			o.FilledAt.Format("2006-01-02 15:04"),
			o.Reason,
			fmt.Sprintf("%.6f", o.FilledQty),
			fmt.Sprintf("%.2f", o.AvgPrice),
			fmt.Sprintf("%.2f", o.PnL),
			fmt.Sprintf("%.2f%%", o.PnLPct*100),
		})
	}
	tl.Render()
}
