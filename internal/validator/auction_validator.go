package validator

import (
	"fmt"
	"time"

	"github.com/katatrina/auction-engine/internal/util"
)

// MaxAuctionDuration bounds how long a single auction may run.
const MaxAuctionDuration = 30 * 24 * time.Hour

// ValidateAuctionTimes validates the schedule of a new auction.
func ValidateAuctionTimes(startTime, endTime, now time.Time) error {
	if endTime.Before(startTime) {
		return fmt.Errorf("end_time must not be before start_time, provided: %s -> %s",
			startTime.Format(time.RFC3339), endTime.Format(time.RFC3339))
	}
	if !endTime.After(now) {
		return fmt.Errorf("end_time must be in the future, provided: %s", endTime.Format(time.RFC3339))
	}
	if endTime.Sub(startTime) > MaxAuctionDuration {
		return fmt.Errorf("auction must not run longer than %d days", int(MaxAuctionDuration.Hours()/24))
	}
	return nil
}

// ValidateAuctionExtension validates a new end time for a running auction.
// Only auctions that have not reached their deadline can be extended, and only forward.
func ValidateAuctionExtension(startTime, currentEnd, newEnd, now time.Time) error {
	if !currentEnd.After(now) {
		return fmt.Errorf("auction already reached its end time at %s", currentEnd.Format(time.RFC3339))
	}
	if !newEnd.After(currentEnd) {
		return fmt.Errorf("end_time must be later than the current end time %s, provided: %s",
			currentEnd.Format(time.RFC3339), newEnd.Format(time.RFC3339))
	}
	if newEnd.Sub(startTime) > MaxAuctionDuration {
		return fmt.Errorf("auction must not run longer than %d days", int(MaxAuctionDuration.Hours()/24))
	}
	return nil
}

// ValidateMinimumBid validates the reserve amount of an auction.
func ValidateMinimumBid(amount int64) error {
	if amount < 0 {
		return fmt.Errorf("minimum_bid must not be negative, provided: %s", util.FormatMoney(amount))
	}
	return nil
}
