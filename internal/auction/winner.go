package auction

import (
	db "github.com/katatrina/auction-engine/internal/db/sqlc"
)

// DetermineWinner returns the winning bid: the highest amount, ties broken by the earliest
// timestamp and then by the lowest bid id. The order of bids does not matter.
func DetermineWinner(bids []db.AuctionBid) (db.AuctionBid, bool) {
	var winner db.AuctionBid
	found := false

	for _, bid := range bids {
		if !found || beats(bid, winner) {
			winner = bid
			found = true
		}
	}

	return winner, found
}

func beats(a, b db.AuctionBid) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
