package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/katatrina/auction-engine/internal/token"
	"github.com/rs/zerolog/log"
)

const (
	authorizationHeaderKey  = "Authorization"
	authorizationTypeBearer = "Bearer"
	authorizationPayloadKey = "authPayload"
	accessTokenQueryKey     = "access_token"
)

// authMiddleware authenticates the user.
func authMiddleware(tokenMaker token.Maker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		accessToken, err := bearerToken(ctx)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(err))
			return
		}

		payload, err := tokenMaker.VerifyToken(accessToken)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(err))
			return
		}

		ctx.Set(authorizationPayloadKey, payload)
		ctx.Next()
	}
}

// optionalAuthMiddleware authenticates the user when a token is given in the header or in the
// access_token query parameter. Anonymous requests pass through; an invalid token is rejected.
func optionalAuthMiddleware(tokenMaker token.Maker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		accessToken := ctx.Query(accessTokenQueryKey)
		if accessToken == "" && ctx.GetHeader(authorizationHeaderKey) != "" {
			var err error
			accessToken, err = bearerToken(ctx)
			if err != nil {
				ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(err))
				return
			}
		}
		if accessToken == "" {
			ctx.Next()
			return
		}

		payload, err := tokenMaker.VerifyToken(accessToken)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(err))
			return
		}

		ctx.Set(authorizationPayloadKey, payload)
		ctx.Next()
	}
}

func bearerToken(ctx *gin.Context) (string, error) {
	authorizationHeader := ctx.GetHeader(authorizationHeaderKey)
	if authorizationHeader == "" {
		return "", errors.New("authorization header is not provided")
	}

	fields := strings.Fields(authorizationHeader)
	if len(fields) != 2 {
		return "", errors.New("invalid authorization header format")
	}

	if fields[0] != authorizationTypeBearer {
		return "", errors.New("unsupported authorization header type")
	}

	return fields[1], nil
}

// authPayload returns the authenticated caller, or nil for an anonymous request.
func authPayload(ctx *gin.Context) *token.Payload {
	value, ok := ctx.Get(authorizationPayloadKey)
	if !ok {
		return nil
	}
	payload, _ := value.(*token.Payload)
	return payload
}

// requestLogger logs every request through zerolog.
func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		path := ctx.Request.URL.Path

		ctx.Next()

		status := ctx.Writer.Status()
		entry := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			entry = log.Error()
		case status >= http.StatusBadRequest:
			entry = log.Warn()
		}
		if len(ctx.Errors) > 0 {
			entry = entry.Str("errors", ctx.Errors.String())
		}

		entry.
			Str("method", ctx.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", ctx.ClientIP()).
			Msg("request handled")
	}
}
