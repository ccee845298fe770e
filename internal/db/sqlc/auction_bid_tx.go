package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type PlaceBidTxParams struct {
	AuctionID int64
	BidderID  int64
	Amount    int64
	PlacedAt  time.Time
}

type PlaceBidTxResult struct {
	AuctionBid      AuctionBid  `json:"auction_bid"`
	Auction         Auction     `json:"auction"`
	PreviousHighest *AuctionBid `json:"previous_highest,omitempty"`
}

// CheckBid validates a bid against the locked auction row and the current highest bid.
// A bid placed at or after the end time is rejected even if the auction has not been closed yet.
func CheckBid(auction Auction, highest *AuctionBid, arg PlaceBidTxParams) error {
	if auction.Completed || !arg.PlacedAt.Before(auction.EndTime) {
		return ErrAuctionEnded
	}
	if arg.PlacedAt.Before(auction.StartTime) {
		return ErrAuctionNotStarted
	}
	if arg.BidderID == auction.SellerID {
		return ErrSellerCannotBid
	}
	if arg.Amount <= auction.MinimumBid {
		return ErrBidTooLow
	}
	if highest != nil && arg.Amount <= highest.Amount {
		return ErrBidTooLow
	}

	return nil
}

func (store *SQLStore) PlaceBidTx(ctx context.Context, arg PlaceBidTxParams) (PlaceBidTxResult, error) {
	var result PlaceBidTxResult

	err := store.ExecTx(ctx, func(qTx *Queries) error {
		// Khóa dòng auction để các bid đồng thời được xử lý tuần tự
		auction, err := qTx.GetAuctionByIDForUpdate(ctx, arg.AuctionID)
		if err != nil {
			return err
		}
		result.Auction = auction

		var highest *AuctionBid
		bid, err := qTx.GetHighestAuctionBid(ctx, arg.AuctionID)
		switch {
		case err == nil:
			highest = &bid
		case !errors.Is(err, ErrRecordNotFound):
			return fmt.Errorf("failed to get highest bid: %w", err)
		}
		result.PreviousHighest = highest

		if err = CheckBid(auction, highest, arg); err != nil {
			return err
		}

		result.AuctionBid, err = qTx.CreateAuctionBid(ctx, CreateAuctionBidParams{
			AuctionID: arg.AuctionID,
			BidderID:  arg.BidderID,
			Amount:    arg.Amount,
			CreatedAt: arg.PlacedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to create auction bid: %w", err)
		}

		return nil
	})

	return result, err
}
