package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/katatrina/auction-engine/internal/auction"
	db "github.com/katatrina/auction-engine/internal/db/sqlc"
	"github.com/katatrina/auction-engine/internal/validator"
	"github.com/rs/zerolog/log"
)

type createAuctionRequest struct {
	ProductID  int64     `json:"product_id" binding:"required,gt=0"`
	StartTime  time.Time `json:"start_time" binding:"required"`
	EndTime    time.Time `json:"end_time" binding:"required"`
	MinimumBid int64     `json:"minimum_bid"`
}

func (server *Server) createAuction(c *gin.Context) {
	userID := authPayload(c).UserID

	var req createAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(fmt.Errorf("invalid request body: %w", err)))
		return
	}

	var violations []*FieldViolation
	if err := validator.ValidateAuctionTimes(req.StartTime, req.EndTime, server.now()); err != nil {
		violations = append(violations, fieldViolation("end_time", err))
	}
	if err := validator.ValidateMinimumBid(req.MinimumBid); err != nil {
		violations = append(violations, fieldViolation("minimum_bid", err))
	}
	if len(violations) > 0 {
		c.JSON(http.StatusBadRequest, failedValidationError(violations))
		return
	}

	created, err := server.dbStore.CreateAuction(c, db.CreateAuctionParams{
		SellerID:   userID,
		ProductID:  req.ProductID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		MinimumBid: req.MinimumBid,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(fmt.Errorf("failed to create auction: %w", err)))
		return
	}

	server.engine.OnAuctionCreated(created)

	log.Info().
		Int64("auction_id", created.ID).
		Int64("user_id", userID).
		Time("end_time", created.EndTime).
		Msg("auction created")

	c.JSON(http.StatusCreated, created)
}

func (server *Server) getAuction(c *gin.Context) {
	auctionID, ok := parseIDParam(c, "auctionID")
	if !ok {
		return
	}

	found, err := server.dbStore.GetAuctionByID(c, auctionID)
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse(fmt.Errorf("auction ID %d not found", auctionID)))
			return
		}

		c.JSON(http.StatusInternalServerError, errorResponse(fmt.Errorf("failed to get auction: %w", err)))
		return
	}

	resp := gin.H{"auction": found, "highest_bid": nil}
	highest, err := server.dbStore.GetHighestAuctionBid(c, auctionID)
	switch {
	case err == nil:
		resp["highest_bid"] = highest
	case !errors.Is(err, db.ErrRecordNotFound):
		c.JSON(http.StatusInternalServerError, errorResponse(fmt.Errorf("failed to get highest bid: %w", err)))
		return
	}

	c.JSON(http.StatusOK, resp)
}

type extendAuctionRequest struct {
	EndTime time.Time `json:"end_time" binding:"required"`
}

func (server *Server) extendAuction(c *gin.Context) {
	userID := authPayload(c).UserID

	auctionID, ok := parseIDParam(c, "auctionID")
	if !ok {
		return
	}

	var req extendAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(fmt.Errorf("invalid request body: %w", err)))
		return
	}

	current, ok := server.sellerAuction(c, auctionID, userID)
	if !ok {
		return
	}

	if current.Completed {
		c.JSON(http.StatusConflict, errorResponse(auction.ErrAuctionClosed))
		return
	}
	if !current.EndTime.After(server.now()) {
		c.JSON(http.StatusConflict, errorResponse(ErrAuctionExpired))
		return
	}
	if err := validator.ValidateAuctionExtension(current.StartTime, current.EndTime, req.EndTime, server.now()); err != nil {
		c.JSON(http.StatusBadRequest, failedValidationError([]*FieldViolation{
			fieldViolation("end_time", err),
		}))
		return
	}

	updated, err := server.dbStore.UpdateAuctionEndTime(c, db.UpdateAuctionEndTimeParams{
		ID:      auctionID,
		EndTime: req.EndTime,
	})
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			// Phiên đã được đóng trong lúc xử lý
			c.JSON(http.StatusConflict, errorResponse(auction.ErrAuctionClosed))
			return
		}

		c.JSON(http.StatusInternalServerError, errorResponse(fmt.Errorf("failed to extend auction: %w", err)))
		return
	}

	server.engine.OnAuctionExtended(updated.ID, updated.EndTime)
	c.JSON(http.StatusOK, updated)
}

func (server *Server) closeAuction(c *gin.Context) {
	userID := authPayload(c).UserID

	auctionID, ok := parseIDParam(c, "auctionID")
	if !ok {
		return
	}

	if _, ok = server.sellerAuction(c, auctionID, userID); !ok {
		return
	}

	closed, err := server.engine.RequestEarlyClose(c, auctionID)
	if err != nil {
		switch {
		case errors.Is(err, auction.ErrAuctionNotFound):
			c.JSON(http.StatusNotFound, errorResponse(err))
		case errors.Is(err, auction.ErrAuctionClosed), errors.Is(err, auction.ErrClosureInProgress):
			c.JSON(http.StatusConflict, errorResponse(err))
		default:
			c.JSON(http.StatusInternalServerError, errorResponse(fmt.Errorf("failed to close auction: %w", err)))
		}
		return
	}
	if !closed {
		c.JSON(http.StatusConflict, errorResponse(auction.ErrAuctionClosed))
		return
	}

	final, err := server.dbStore.GetAuctionByID(c, auctionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse(fmt.Errorf("failed to get auction: %w", err)))
		return
	}

	c.JSON(http.StatusOK, final)
}

// sellerAuction loads the auction and checks that userID is its seller.
// It writes the error response itself and returns false on failure.
func (server *Server) sellerAuction(c *gin.Context, auctionID, userID int64) (db.Auction, bool) {
	found, err := server.dbStore.GetAuctionByID(c, auctionID)
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, errorResponse(fmt.Errorf("auction ID %d not found", auctionID)))
			return found, false
		}

		c.JSON(http.StatusInternalServerError, errorResponse(fmt.Errorf("failed to get auction: %w", err)))
		return found, false
	}

	if found.SellerID != userID {
		c.JSON(http.StatusForbidden, errorResponse(ErrNotAuctionSeller))
		return found, false
	}

	return found, true
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse(fmt.Errorf("invalid %s format", name)))
		return 0, false
	}
	return id, true
}
