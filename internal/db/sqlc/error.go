package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	UniqueViolationCode = "23505"
)

const (
	NotificationsPrimaryKeyConstraint = "notifications_pkey"
)

var ErrRecordNotFound = pgx.ErrNoRows

var (
	ErrAuctionEnded      = errors.New("auction has already ended")
	ErrAuctionNotStarted = errors.New("auction has not started yet")
	ErrBidTooLow         = errors.New("bid amount is too low")
	ErrSellerCannotBid   = errors.New("seller cannot bid on their own auction")
)

// ErrorDescription returns the error code and constraint name from a Postgres error.
func ErrorDescription(err error) (errCode string, constraintName string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}

	return
}
