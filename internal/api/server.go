// Package api exposes backlogs, tickets and alerts over a JSON HTTP API.
package api

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"backlogwatch/internal/auth"
	"backlogwatch/internal/ingest"
	"backlogwatch/internal/overdue"
	"backlogwatch/internal/scheduler"
	"backlogwatch/internal/storage/sqlite"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const defaultMaxUploadBytes = 20 << 20

type Server struct {
	DB             *sql.DB
	Auth           *auth.Service
	Classifier     *overdue.Classifier
	Parser         *ingest.Parser
	Runner         *scheduler.Runner
	CORSOrigins    []string
	MaxUploadBytes int64
	Now            func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(s.corsConfig()))
	r.MaxMultipartMemory = s.maxUploadBytes()

	r.POST("/login", s.login)
	r.POST("/refresh", s.refresh)
	r.POST("/logout", s.logout)
	r.GET("/healthz", s.healthz)

	protected := r.Group("/api")
	protected.Use(auth.Middleware(s.Auth.Issuer, s.DB))
	{
		read := auth.RequirePermission(auth.PermBacklogRead)
		write := auth.RequirePermission(auth.PermBacklogWrite)

		protected.GET("/permissions", getPermissions)
		protected.GET("/me", getMe)

		protected.GET("/backlogs", read, s.listBacklogs)
		protected.POST("/backlogs", write, s.createBacklog)
		protected.GET("/backlogs/:id", read, s.getBacklog)
		protected.PUT("/backlogs/:id", write, s.updateBacklog)
		protected.DELETE("/backlogs/:id", write, s.deleteBacklog)

		protected.POST("/backlogs/:id/import", auth.RequirePermission(auth.PermTicketImport), s.importTickets)
		protected.GET("/backlogs/:id/tickets", read, s.listTickets)
		protected.GET("/backlogs/:id/analytics", read, s.backlogAnalytics)
		protected.GET("/backlogs/:id/export", read, s.exportTickets)

		protected.POST("/backlogs/:id/alerts", auth.RequirePermission(auth.PermAlertSend), s.sendAlert)
		protected.GET("/backlogs/:id/alerts", read, s.listAlertRuns)

		protected.POST("/emails/validate", read, validateEmails)

		manage := auth.RequirePermission(auth.PermUserManage)
		protected.GET("/users", manage, s.listUsers)
		protected.POST("/users", manage, s.createUser)
		protected.DELETE("/users/:username", manage, s.deleteUser)
	}
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "X-Requested-With", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.CORSOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.CORSOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}

func (s *Server) maxUploadBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.DB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// storageError writes the response for a storage failure.
func storageError(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.Is(err, sqlite.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Name already taken"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}
