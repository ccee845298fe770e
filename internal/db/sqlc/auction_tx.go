package db

import (
	"context"
	"fmt"
	"time"
)

type CompleteAuctionTxParams struct {
	AuctionID  int64
	EarlyClose bool
	Now        time.Time
	// SelectWinner picks the winning bid among every bid of the locked auction.
	SelectWinner func(bids []AuctionBid) (AuctionBid, bool)
}

type CompleteAuctionTxResult struct {
	Auction Auction      `json:"auction"`
	Bids    []AuctionBid `json:"bids"`
	Winner  *AuctionBid  `json:"winner,omitempty"`
	// Completed is true only for the call that moved the auction to completed.
	Completed bool `json:"completed"`
	// NotDue is set when a deadline closure finds the stored end time still in the future.
	NotDue bool `json:"not_due"`
}

// PrepareCompletion decides, on the locked auction row, whether a closure may proceed.
// It returns the end time to freeze bids at for an early close, or nil.
func PrepareCompletion(auction Auction, arg CompleteAuctionTxParams) (proceed bool, notDue bool, freezeAt *time.Time) {
	if auction.Completed {
		return false, false, nil
	}
	if !arg.EarlyClose {
		if auction.EndTime.After(arg.Now) {
			return false, true, nil
		}
		return true, false, nil
	}
	if arg.Now.Before(auction.EndTime) && !arg.Now.Before(auction.StartTime) {
		now := arg.Now
		return true, false, &now
	}
	return true, false, nil
}

// CompleteAuctionTx locks the auction row, picks the winner from its bids and marks it
// completed in one transaction. Bids wait on the same row lock, so none can slip in
// between reading the bids and storing the winner.
func (store *SQLStore) CompleteAuctionTx(ctx context.Context, arg CompleteAuctionTxParams) (CompleteAuctionTxResult, error) {
	var result CompleteAuctionTxResult

	err := store.ExecTx(ctx, func(qTx *Queries) error {
		// 1. Khóa dòng auction
		auction, err := qTx.GetAuctionByIDForUpdate(ctx, arg.AuctionID)
		if err != nil {
			return err
		}
		result.Auction = auction

		proceed, notDue, freezeAt := PrepareCompletion(auction, arg)
		result.NotDue = notDue
		if !proceed {
			return nil
		}

		// 2. Đóng sớm: dời end_time về hiện tại
		if freezeAt != nil {
			auction, err = qTx.UpdateAuctionEndTime(ctx, UpdateAuctionEndTimeParams{
				ID:      arg.AuctionID,
				EndTime: *freezeAt,
			})
			if err != nil {
				return fmt.Errorf("failed to freeze end time: %w", err)
			}
		}

		// 3. Chọn người thắng trên tập bid đã bị khóa
		bids, err := qTx.ListAuctionBids(ctx, arg.AuctionID)
		if err != nil {
			return fmt.Errorf("failed to list auction bids: %w", err)
		}
		completeArg := CompleteAuctionParams{
			ID:          arg.AuctionID,
			EarlyClosed: arg.EarlyClose,
		}
		var winner *AuctionBid
		if bid, ok := arg.SelectWinner(bids); ok {
			winner = &bid
			completeArg.WinnerID = &bid.BidderID
			completeArg.FinalAmount = &bid.Amount
		}

		// 4. Cập nhật có điều kiện
		affected, err := qTx.CompleteAuction(ctx, completeArg)
		if err != nil {
			return fmt.Errorf("failed to complete auction: %w", err)
		}
		if affected == 0 {
			return nil
		}

		auction.Completed = true
		auction.EarlyClosed = arg.EarlyClose
		auction.WinnerID = completeArg.WinnerID
		auction.FinalAmount = completeArg.FinalAmount
		result.Auction = auction
		result.Bids = bids
		result.Winner = winner
		result.Completed = true
		return nil
	})

	return result, err
}
