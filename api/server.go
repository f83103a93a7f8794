package api

import (
	"context"
	"crypto/rsa"
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/uber-go/tally"

	"github.com/civitas-labs/dispatch-api/external/geoinfo"
	"github.com/civitas-labs/dispatch-api/logmodule"
	"github.com/civitas-labs/dispatch-api/schema"
	"github.com/civitas-labs/dispatch-api/store"
)

var log *logrus.Entry

func init() {
	log = logrus.WithField("prefix", "gin")
}

// Server to run a http server instance
type Server struct {
	// Server instance
	server *http.Server

	// Stores
	store store.DispatchCore

	// JWT private key
	jwtPrivateKey *rsa.PrivateKey

	// External services
	geoClient geoinfo.GeoInfo

	// Metrics
	metrics tally.Scope
}

// NewServer new instance of server
func NewServer(
	dispatchStore store.DispatchCore,
	jwtKey *rsa.PrivateKey,
	geoClient geoinfo.GeoInfo,
	metrics tally.Scope) *Server {
	if metrics == nil {
		metrics = tally.NoopScope
	}

	return &Server{
		store:         dispatchStore,
		jwtPrivateKey: jwtKey,
		geoClient:     geoClient,
		metrics:       metrics,
	}
}

// Run to run the server
func (s *Server) Run(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.setupRouter(),
	}

	return s.server.ListenAndServe()
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         10 * time.Second,
	}))

	apiRoute := r.Group("/api")
	apiRoute.Use(logmodule.Ginrus("API"))
	apiRoute.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowAllOrigins:  true,
		MaxAge:           12 * time.Hour,
	}))

	apiRoute.GET("/information", s.information)
	apiRoute.POST("/auth", s.requestJWT)

	// api route other than `/auth` will apply the following middleware
	apiRoute.Use(s.authMiddleware())

	accountRoute := apiRoute.Group("/accounts")
	{
		accountRoute.POST("", s.accountRegister)
	}

	accountRoute.Use(s.recognizeAccountMiddleware())
	{
		accountRoute.GET("/me", s.accountDetail)
		accountRoute.PATCH("/me", s.accountUpdate)
		accountRoute.GET("/me/role", s.accountRole)
	}

	requestRoute := apiRoute.Group("/requests")
	requestRoute.Use(s.recognizeAccountMiddleware())
	{
		requestRoute.POST("", s.sendSOSRequest)
		requestRoute.GET("", s.listRequests)
		requestRoute.GET("/:requestID", s.getRequest)
		requestRoute.PATCH("/:requestID/accept", s.requireRoles(schema.RoleOfficer), s.acceptRequest)
		requestRoute.PATCH("/:requestID/complete", s.requireRoles(schema.RoleOfficer), s.completeRequest)
		requestRoute.POST("/:requestID/messages", s.sendMessage)
		requestRoute.GET("/:requestID/messages", s.getMessages)
	}

	adminRoute := apiRoute.Group("/admin")
	adminRoute.Use(s.recognizeAccountMiddleware())
	adminRoute.Use(s.requireRoles(schema.RoleAdmin))
	{
		adminRoute.GET("/accounts", s.adminListAccounts)
		adminRoute.GET("/accounts/:principal", s.adminGetAccount)
		adminRoute.PUT("/accounts/:principal/role", s.adminAssignRole)
	}

	r.GET("/healthz", s.healthz)

	return r
}

// Shutdown to shutdown the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// shouldInterupt sends error message and determine if it should interupt the current flow
func shouldInterupt(err error, c *gin.Context) bool {
	if err == nil {
		return false
	}

	log.Error(err)
	abortWithEncoding(c, http.StatusInternalServerError, errorInternalServer)
	return true
}

func (s *Server) healthz(c *gin.Context) {
	// Ping db
	err := s.store.Ping()
	if shouldInterupt(err, c) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"version": viper.GetString("server.version"),
	})
}

func (s *Server) information(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"information": map[string]interface{}{
			"server": map[string]interface{}{
				"version": viper.GetString("server.version"),
			},
			"system_version": "Dispatch 0.1",
		},
	})
}

func responseWithEncoding(c *gin.Context, code int, obj ErrorResponse) {
	c.JSON(code, obj)
}

func abortWithEncoding(c *gin.Context, code int, obj ErrorResponse, errors ...error) {
	for _, err := range errors {
		c.Error(err)
	}
	responseWithEncoding(c, code, obj)
	c.Abort()
}
