package api

import (
	"errors"

	"github.com/gin-gonic/gin"
)

var (
	ErrNotAuctionSeller = errors.New("only the seller of the auction can do this")
	ErrAuctionExpired   = errors.New("auction has already passed its end time")
	ErrForbiddenGroup   = errors.New("cannot subscribe to another user's group")
	ErrNoGroups         = errors.New("at least one group is required")
)

type FailedValidationResponse struct {
	Message         string            `json:"message"`
	FieldViolations []*FieldViolation `json:"field_violations"`
}

type FieldViolation struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

func fieldViolation(field string, err error) *FieldViolation {
	return &FieldViolation{
		Field:       field,
		Description: err.Error(),
	}
}

func errorResponse(err error) gin.H {
	return gin.H{"error": err.Error()}
}

func failedValidationError(violations []*FieldViolation) *FailedValidationResponse {
	return &FailedValidationResponse{
		Message:         "Invalid request parameters",
		FieldViolations: violations,
	}
}
