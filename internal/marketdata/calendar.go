package marketdata

import (
	"time"

	"github.com/wonny/screener/internal/contracts"
)

// LastTradingDay returns the most recent weekday on or before now.
// Exchange holidays are not modelled.
func LastTradingDay(now time.Time) contracts.Date {
	today := contracts.DateOf(now)
	switch today.Weekday() {
	case time.Saturday:
		return today.AddDays(-1)
	case time.Sunday:
		return today.AddDays(-2)
	default:
		return today
	}
}
