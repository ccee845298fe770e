package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	db "github.com/katatrina/auction-engine/internal/db/sqlc"
	"github.com/katatrina/auction-engine/internal/util"
	"github.com/rs/zerolog/log"
)

type placeBidRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

func (server *Server) placeBid(c *gin.Context) {
	userID := authPayload(c).UserID

	auctionID, ok := parseIDParam(c, "auctionID")
	if !ok {
		return
	}

	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(fmt.Errorf("invalid request body: %w", err)))
		return
	}

	// Thời điểm đặt giá do server quyết định, bid sau end_time bị từ chối dù phiên chưa được đóng
	result, err := server.dbStore.PlaceBidTx(c, db.PlaceBidTxParams{
		AuctionID: auctionID,
		BidderID:  userID,
		Amount:    req.Amount,
		PlacedAt:  server.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, db.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, errorResponse(fmt.Errorf("auction ID %d not found", auctionID)))
		case errors.Is(err, db.ErrBidTooLow):
			err = fmt.Errorf("%w: bid must exceed the minimum bid and the current highest bid, provided: %s",
				err, util.FormatMoney(req.Amount))
			c.JSON(http.StatusUnprocessableEntity, errorResponse(err))
		case errors.Is(err, db.ErrAuctionEnded),
			errors.Is(err, db.ErrAuctionNotStarted),
			errors.Is(err, db.ErrSellerCannotBid):
			c.JSON(http.StatusUnprocessableEntity, errorResponse(err))
		default:
			c.JSON(http.StatusInternalServerError, errorResponse(fmt.Errorf("failed to place bid: %w", err)))
		}
		return
	}

	server.engine.OnBidPlaced(result.AuctionBid)

	log.Info().
		Int64("auction_id", auctionID).
		Int64("user_id", userID).
		Int64("amount", req.Amount).
		Msg("bid placed")

	c.JSON(http.StatusOK, result)
}

func (server *Server) listAuctionBids(c *gin.Context) {
	auctionID, ok := parseIDParam(c, "auctionID")
	if !ok {
		return
	}

	bids, err := server.dbStore.ListAuctionBids(c, auctionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(fmt.Errorf("failed to list bids: %w", err)))
		return
	}

	c.JSON(http.StatusOK, bids)
}
