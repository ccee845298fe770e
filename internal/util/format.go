package util

import (
	"github.com/dustin/go-humanize"
)

// FormatMoney formats an amount with thousands separators.
// Example: 1500000 -> "1,500,000".
func FormatMoney(amount int64) string {
	return humanize.Comma(amount)
}
