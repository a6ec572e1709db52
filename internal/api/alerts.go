package api

import (
	"log"
	"net/http"
	"strconv"

	"backlogwatch/internal/auth"
	"backlogwatch/internal/domain"
	"backlogwatch/internal/notify"
	"backlogwatch/internal/storage/sqlite"

	"github.com/gin-gonic/gin"
)

func (s *Server) sendAlert(c *gin.Context) {
	b, ok := s.loadBacklog(c)
	if !ok {
		return
	}
	run, err := s.Runner.Run(c.Request.Context(), b, c.GetString(auth.ContextUsername))
	if err != nil {
		log.Printf("api alert backlog=%s error: %v", b.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	status := http.StatusOK
	if !run.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, run)
}

func (s *Server) listAlertRuns(c *gin.Context) {
	b, ok := s.loadBacklog(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := sqlite.ListAlertRuns(s.DB, b.ID, limit)
	if err != nil {
		storageError(c, err, "")
		return
	}
	if runs == nil {
		runs = []domain.AlertRun{}
	}
	c.JSON(http.StatusOK, runs)
}

func validateEmails(c *gin.Context) {
	var req struct {
		Emails []string `json:"emails" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	valid, invalid := notify.PartitionEmails(req.Emails)
	c.JSON(http.StatusOK, gin.H{"valid": valid, "invalid": invalid})
}
