package service

import (
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// rupees renders a paise amount as a rupee string with two decimals, e.g.
// 750050 -> "7500.50".
func rupees(paise int64) string {
	return decimal.NewFromInt(paise).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// dateOf truncates a timestamp to its calendar date in UTC.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole calendar days from a to b (negative when b is
// earlier).
func daysBetween(a, b time.Time) int {
	return int(dateOf(b).Sub(dateOf(a)).Hours() / 24)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
