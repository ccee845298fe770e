package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	db "github.com/katatrina/auction-engine/internal/db/sqlc"
)

var start = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newStoreWithAuction(t *testing.T) *Store {
	t.Helper()

	store := New()
	store.PutAuction(db.Auction{
		ID:         1,
		SellerID:   9,
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
		MinimumBid: 100,
	})
	return store
}

func TestPlaceBidTxRules(t *testing.T) {
	store := newStoreWithAuction(t)
	ctx := context.Background()

	_, err := store.PlaceBidTx(ctx, db.PlaceBidTxParams{AuctionID: 1, BidderID: 2, Amount: 150, PlacedAt: start.Add(time.Minute)})
	if err != nil {
		t.Fatalf("first bid failed: %v", err)
	}

	testCases := []struct {
		name    string
		arg     db.PlaceBidTxParams
		wantErr error
	}{
		{
			name:    "unknown auction",
			arg:     db.PlaceBidTxParams{AuctionID: 2, BidderID: 3, Amount: 500, PlacedAt: start.Add(time.Minute)},
			wantErr: db.ErrRecordNotFound,
		},
		{
			name:    "before start",
			arg:     db.PlaceBidTxParams{AuctionID: 1, BidderID: 3, Amount: 500, PlacedAt: start.Add(-time.Minute)},
			wantErr: db.ErrAuctionNotStarted,
		},
		{
			name:    "at end time",
			arg:     db.PlaceBidTxParams{AuctionID: 1, BidderID: 3, Amount: 500, PlacedAt: start.Add(time.Hour)},
			wantErr: db.ErrAuctionEnded,
		},
		{
			name:    "seller",
			arg:     db.PlaceBidTxParams{AuctionID: 1, BidderID: 9, Amount: 500, PlacedAt: start.Add(time.Minute)},
			wantErr: db.ErrSellerCannotBid,
		},
		{
			name:    "equal to highest",
			arg:     db.PlaceBidTxParams{AuctionID: 1, BidderID: 3, Amount: 150, PlacedAt: start.Add(time.Minute)},
			wantErr: db.ErrBidTooLow,
		},
		{
			name: "outbids",
			arg:  db.PlaceBidTxParams{AuctionID: 1, BidderID: 3, Amount: 151, PlacedAt: start.Add(2 * time.Minute)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.PlaceBidTx(ctx, tc.arg)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	highest, err := store.GetHighestAuctionBid(ctx, 1)
	if err != nil || highest.BidderID != 3 || highest.Amount != 151 {
		t.Errorf("unexpected highest bid %+v (%v)", highest, err)
	}
}

func TestCompleteAuctionIsConditional(t *testing.T) {
	store := newStoreWithAuction(t)
	ctx := context.Background()

	arg := db.CompleteAuctionParams{ID: 1}
	if affected, _ := store.CompleteAuction(ctx, arg); affected != 1 {
		t.Fatalf("first completion: expected 1 row, got %d", affected)
	}
	if affected, _ := store.CompleteAuction(ctx, arg); affected != 0 {
		t.Errorf("second completion: expected 0 rows, got %d", affected)
	}

	if _, err := store.UpdateAuctionEndTime(ctx, db.UpdateAuctionEndTimeParams{ID: 1, EndTime: start.Add(2 * time.Hour)}); !errors.Is(err, db.ErrRecordNotFound) {
		t.Errorf("completed auction end time must be immutable, got %v", err)
	}

	rows, _ := store.ListOpenAuctions(ctx)
	if len(rows) != 0 {
		t.Errorf("completed auction listed as open: %v", rows)
	}
}

func TestNotificationIDsFollowMaximum(t *testing.T) {
	store := New()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		notification, err := store.InsertNotificationTx(ctx, db.CreateNotificationParams{RecipientID: 1, AuctionID: 1, Message: "m"})
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		if notification.ID != want {
			t.Errorf("expected id %d, got %d", want, notification.ID)
		}
		if notification.IsRead {
			t.Error("new notification must be unread")
		}
	}
}

func TestListOpenAuctionBiddersIsDistinct(t *testing.T) {
	store := newStoreWithAuction(t)
	store.PutBid(db.AuctionBid{AuctionID: 1, BidderID: 5, Amount: 200, CreatedAt: start})
	store.PutBid(db.AuctionBid{AuctionID: 1, BidderID: 5, Amount: 300, CreatedAt: start.Add(time.Minute)})
	store.PutBid(db.AuctionBid{AuctionID: 1, BidderID: 4, Amount: 400, CreatedAt: start.Add(2 * time.Minute)})

	rows, err := store.ListOpenAuctionBidders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || rows[0].BidderID != 4 || rows[1].BidderID != 5 {
		t.Errorf("unexpected rows %+v", rows)
	}
}

func pickHighest(bids []db.AuctionBid) (db.AuctionBid, bool) {
	var best db.AuctionBid
	found := false
	for _, bid := range bids {
		if !found || bid.Amount > best.Amount {
			best, found = bid, true
		}
	}
	return best, found
}

func TestCompleteAuctionTx(t *testing.T) {
	end := start.Add(time.Hour)

	testCases := []struct {
		name       string
		earlyClose bool
		now        time.Time
		completed  bool
		notDue     bool
		endTime    time.Time
	}{
		{name: "deadline reached", now: end, completed: true, endTime: end},
		{name: "deadline still ahead", now: end.Add(-time.Second), notDue: true, endTime: end},
		{name: "early close freezes end time", earlyClose: true, now: start.Add(time.Minute), completed: true, endTime: start.Add(time.Minute)},
		{name: "early close after deadline keeps end time", earlyClose: true, now: end.Add(time.Minute), completed: true, endTime: end},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStoreWithAuction(t)
			ctx := context.Background()
			store.PutBid(db.AuctionBid{AuctionID: 1, BidderID: 2, Amount: 150, CreatedAt: start})
			store.PutBid(db.AuctionBid{AuctionID: 1, BidderID: 3, Amount: 300, CreatedAt: start})

			result, err := store.CompleteAuctionTx(ctx, db.CompleteAuctionTxParams{
				AuctionID:    1,
				EarlyClose:   tc.earlyClose,
				Now:          tc.now,
				SelectWinner: pickHighest,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Completed != tc.completed || result.NotDue != tc.notDue {
				t.Fatalf("completed=%v notDue=%v, want %v/%v", result.Completed, result.NotDue, tc.completed, tc.notDue)
			}

			auction, _ := store.GetAuctionByID(ctx, 1)
			if auction.Completed != tc.completed || !auction.EndTime.Equal(tc.endTime) {
				t.Errorf("unexpected stored auction %+v", auction)
			}
			if tc.completed {
				if auction.WinnerID == nil || *auction.WinnerID != 3 || *auction.FinalAmount != 300 {
					t.Errorf("expected bidder 3 to win with 300, got %+v", auction)
				}
				if result.Winner == nil || result.Winner.BidderID != 3 || len(result.Bids) != 2 {
					t.Errorf("unexpected result %+v", result)
				}
			}
		})
	}
}

func TestCompleteAuctionTxRunsOnce(t *testing.T) {
	store := newStoreWithAuction(t)
	ctx := context.Background()
	arg := db.CompleteAuctionTxParams{AuctionID: 1, Now: start.Add(2 * time.Hour), SelectWinner: pickHighest}

	first, err := store.CompleteAuctionTx(ctx, arg)
	if err != nil || !first.Completed {
		t.Fatalf("expected first completion, got %+v err=%v", first, err)
	}
	second, err := store.CompleteAuctionTx(ctx, arg)
	if err != nil || second.Completed || second.NotDue {
		t.Fatalf("expected a no-op second completion, got %+v err=%v", second, err)
	}

	if _, err = store.CompleteAuctionTx(ctx, db.CompleteAuctionTxParams{AuctionID: 404, Now: start, SelectWinner: pickHighest}); !errors.Is(err, db.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}
