package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"backlogwatch/internal/auth"
	"backlogwatch/internal/domain"
	"backlogwatch/internal/storage/sqlite"

	"github.com/gin-gonic/gin"
)

type backlogRequest struct {
	Name        string `json:"name" binding:"required,max=120"`
	Description string `json:"description" binding:"max=2000"`
	Source      string `json:"source"`
}

func (r *backlogRequest) normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.Source = strings.TrimSpace(r.Source)
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.Source != "" && !domain.IsKnownSource(r.Source) {
		return errors.New("unknown source " + r.Source + "; expected one of " + strings.Join(domain.Sources, ", "))
	}
	return nil
}

func (s *Server) listBacklogs(c *gin.Context) {
	backlogs, err := sqlite.ListBacklogs(s.DB)
	if err != nil {
		log.Printf("api list backlogs error: %v", err)
		storageError(c, err, "")
		return
	}
	if backlogs == nil {
		backlogs = []domain.Backlog{}
	}
	c.JSON(http.StatusOK, backlogs)
}

func (s *Server) createBacklog(c *gin.Context) {
	var req backlogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := req.normalize(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := sqlite.CreateBacklog(s.DB, domain.Backlog{
		Name:        req.Name,
		Description: req.Description,
		Source:      req.Source,
		CreatedBy:   c.GetString(auth.ContextUsername),
	})
	if err != nil {
		log.Printf("api create backlog name=%q error: %v", req.Name, err)
		storageError(c, err, "")
		return
	}
	log.Printf("api backlog created id=%s name=%q by=%s", b.ID, b.Name, b.CreatedBy)
	c.JSON(http.StatusCreated, b)
}

// loadBacklog fetches the :id backlog or writes the error response.
func (s *Server) loadBacklog(c *gin.Context) (domain.Backlog, bool) {
	b, err := sqlite.GetBacklog(s.DB, c.Param("id"))
	if err != nil {
		if !errors.Is(err, sqlite.ErrNotFound) {
			log.Printf("api get backlog id=%s error: %v", c.Param("id"), err)
		}
		storageError(c, err, "Backlog not found")
		return b, false
	}
	return b, true
}

func (s *Server) getBacklog(c *gin.Context) {
	b, ok := s.loadBacklog(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) updateBacklog(c *gin.Context) {
	var req backlogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := req.normalize(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	if err := sqlite.UpdateBacklog(s.DB, id, req.Name, req.Description, req.Source); err != nil {
		storageError(c, err, "Backlog not found")
		return
	}
	b, ok := s.loadBacklog(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) deleteBacklog(c *gin.Context) {
	id := c.Param("id")
	if err := sqlite.DeleteBacklog(s.DB, id); err != nil {
		storageError(c, err, "Backlog not found")
		return
	}
	log.Printf("api backlog deleted id=%s by=%s", id, c.GetString(auth.ContextUsername))
	c.JSON(http.StatusOK, gin.H{"message": "Backlog deleted"})
}
