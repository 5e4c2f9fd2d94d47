package backtest

import "github.com/wonny/screener/internal/contracts"

// Progress is a snapshot of a running backtest
type Progress struct {
	RunID     string `json:"run_id"`
	RunName   string `json:"run_name"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Matched   int    `json:"matched"`
	TimedOut  int    `json:"timed_out"`
	Failed    int    `json:"failed"`
}

// Percent returns completion in percent
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Completed) / float64(p.Total) * 100
}

// Observer receives run events. Calls for one run come from a single
// goroutine in order; implementations must not block for long.
type Observer interface {
	OnProgress(p Progress)
	OnMatch(runID string, match contracts.MatchResult)
	OnComplete(report *Report)
}

// ObserverFuncs adapts optional callbacks to Observer
type ObserverFuncs struct {
	Progress func(Progress)
	Match    func(string, contracts.MatchResult)
	Complete func(*Report)
}

// OnProgress implements Observer
func (f ObserverFuncs) OnProgress(p Progress) {
	if f.Progress != nil {
		f.Progress(p)
	}
}

// OnMatch implements Observer
func (f ObserverFuncs) OnMatch(runID string, match contracts.MatchResult) {
	if f.Match != nil {
		f.Match(runID, match)
	}
}

// OnComplete implements Observer
func (f ObserverFuncs) OnComplete(report *Report) {
	if f.Complete != nil {
		f.Complete(report)
	}
}
