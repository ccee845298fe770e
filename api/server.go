package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/katatrina/auction-engine/internal/auction"
	db "github.com/katatrina/auction-engine/internal/db/sqlc"
	"github.com/katatrina/auction-engine/internal/event"
	"github.com/katatrina/auction-engine/internal/notification"
	"github.com/katatrina/auction-engine/internal/token"
	"github.com/katatrina/auction-engine/internal/util"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Server struct {
	router        *gin.Engine
	dbStore       db.Store
	tokenMaker    token.Maker
	config        *util.Config
	engine        *auction.Engine
	notifications *notification.Center
	hub           *event.Hub
	now           func() time.Time
}

// NewServer creates a new HTTP server and set up routing.
func NewServer(
	config *util.Config,
	store db.Store,
	engine *auction.Engine,
	notifications *notification.Center,
	hub *event.Hub,
) (*Server, error) {
	// Create a new JWT token maker
	tokenMaker, err := token.NewJWTMaker(config.TokenSecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create token maker: %w", err)
	}
	log.Info().Msg("Token maker created successfully ✅")

	server := &Server{
		dbStore:       store,
		tokenMaker:    tokenMaker,
		config:        config,
		engine:        engine,
		notifications: notifications,
		hub:           hub,
		now:           time.Now,
	}

	server.setupRouter()
	return server, nil
}

// setupRouter configures the HTTP server routes.
func (server *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	router.GET("/healthz", server.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")

	v1.POST("/tokens/verify", server.verifyAccessToken)

	// Kết nối realtime, token có thể truyền qua query vì EventSource không gửi được header
	v1.GET("/stream", optionalAuthMiddleware(server.tokenMaker), server.streamEvents)
	v1.GET("/ws", optionalAuthMiddleware(server.tokenMaker), server.serveWebsocket)

	auctionPublicGroup := v1.Group("/auctions")
	{
		auctionPublicGroup.GET(":auctionID", server.getAuction)
		auctionPublicGroup.GET(":auctionID/bids", server.listAuctionBids)
	}

	auctionGroup := v1.Group("/auctions", authMiddleware(server.tokenMaker))
	{
		auctionGroup.POST("", server.createAuction)
		auctionGroup.POST(":auctionID/bids", server.placeBid)
		auctionGroup.PATCH(":auctionID/end-time", server.extendAuction)

		// Người bán chốt phiên sớm
		auctionGroup.POST(":auctionID/close", server.closeAuction)
	}

	notificationGroup := v1.Group("/notifications", authMiddleware(server.tokenMaker))
	{
		notificationGroup.GET("", server.listNotifications)
		notificationGroup.GET("unread-count", server.getUnreadCount)
		notificationGroup.PATCH("read-all", server.markAllNotificationsRead)
		notificationGroup.PATCH(":notificationID/read", server.markNotificationRead)
	}

	server.router = router
	return router
}

// HTTPServer wraps the router into an http.Server listening on address.
func (server *Server) HTTPServer(address string) *http.Server {
	return &http.Server{
		Addr:              address,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (server *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"tracked_auctions": server.engine.TrackedAuctions(),
	})
}
