package notify

import (
	"fmt"
	"strings"

	"github.com/wonny/screener/internal/backtest"
)

// Subject names the daily mail after the run date
func Subject(report *backtest.Report) string {
	return fmt.Sprintf("每日选股结果 %s (%d)", report.Window.End.String(), report.Matched)
}

// FormatReport renders the matched stocks with their move since the match date
func FormatReport(report *backtest.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "策略: %s\n", report.Strategy)
	fmt.Fprintf(&b, "区间: %s ~ %s\n", report.Window.Start.String(), report.Window.End.String())
	fmt.Fprintf(&b, "股票: %d | 完成: %d | 超时: %d | 失败: %d\n",
		report.Universe, report.Completed, report.TimedOut, report.Failed)
	b.WriteString(strings.Repeat("=", 70))
	b.WriteString("\n")

	if len(report.Results) == 0 {
		b.WriteString("未找到符合条件的股票\n")
		return b.String()
	}

	for i, r := range report.Results {
		fmt.Fprintf(&b, "%d. %s %s | 匹配日: %s | 匹配价: %.2f | 现价: %.2f | 涨跌: %+.2f%%\n",
			i+1, r.Code, r.Name, r.MatchDate.String(), r.MatchPrice, r.CurrentPrice, r.ReturnPct())
	}

	s := report.Summary
	b.WriteString(strings.Repeat("-", 70))
	b.WriteString("\n")
	fmt.Fprintf(&b, "共 %d 只 | 上涨 %d | 胜率 %.1f%% | 平均 %+.2f%%\n",
		s.Count, s.Winners, s.WinRate*100, s.AvgReturn)
	if s.BestCode != "" {
		fmt.Fprintf(&b, "最佳 %s %+.2f%% | 最差 %s %+.2f%%\n",
			s.BestCode, s.BestReturn, s.WorstCode, s.WorstReturn)
	}
	return b.String()
}
