package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"backlogwatch/internal/analytics"
	"backlogwatch/internal/export"
	"backlogwatch/internal/ingest"
	"backlogwatch/internal/overdue"
	"backlogwatch/internal/storage/sqlite"

	"github.com/gin-gonic/gin"
)

func (s *Server) importTickets(c *gin.Context) {
	b, ok := s.loadBacklog(c)
	if !ok {
		return
	}
	source := strings.TrimSpace(c.DefaultQuery("source", b.Source))
	mode := c.DefaultQuery("mode", "replace")
	if mode != "replace" && mode != "merge" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be replace or merge"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes())
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot read upload"})
		return
	}
	defer f.Close()

	tickets, report, err := s.Parser.Parse(source, fh.Filename, f)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, ingest.ErrUnknownSource) || errors.Is(err, ingest.ErrUnsupportedFormat) {
			status = http.StatusBadRequest
		}
		log.Printf("api import backlog=%s file=%q source=%s error: %v", b.ID, fh.Filename, source, err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	write := sqlite.ReplaceTickets
	if mode == "merge" {
		write = sqlite.UpsertTickets
	}
	written, err := write(s.DB, b.ID, tickets)
	if err != nil {
		log.Printf("api import backlog=%s store error: %v", b.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store tickets"})
		return
	}
	log.Printf("api import backlog=%s source=%s mode=%s rows=%d imported=%d skipped=%d", b.ID, source, mode, report.Rows, written, report.Skipped)
	c.JSON(http.StatusOK, gin.H{"report": report, "written": written, "mode": mode})
}

// evaluate loads and classifies the backlog's tickets, applying the
// overdue and level query filters. Results are sorted by urgency.
func (s *Server) evaluate(c *gin.Context, backlogID string) ([]overdue.Evaluated, error) {
	tickets, err := sqlite.ListTickets(s.DB, backlogID)
	if err != nil {
		return nil, err
	}
	items := s.Classifier.Evaluate(tickets, s.now())
	onlyOverdue, _ := strconv.ParseBool(c.DefaultQuery("overdue", "false"))
	level := overdue.Level(strings.ToLower(strings.TrimSpace(c.Query("level"))))

	out := make([]overdue.Evaluated, 0, len(items))
	for _, e := range items {
		if onlyOverdue && !e.Overdue.IsOverdue {
			continue
		}
		if level != "" && e.Overdue.Level != level {
			continue
		}
		out = append(out, e)
	}
	overdue.SortByUrgency(out)
	return out, nil
}

func (s *Server) listTickets(c *gin.Context) {
	b, ok := s.loadBacklog(c)
	if !ok {
		return
	}
	items, err := s.evaluate(c, b.ID)
	if err != nil {
		storageError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"backlog_id": b.ID, "count": len(items), "tickets": items})
}

func (s *Server) backlogAnalytics(c *gin.Context) {
	b, ok := s.loadBacklog(c)
	if !ok {
		return
	}
	tickets, err := sqlite.ListTickets(s.DB, b.ID)
	if err != nil {
		storageError(c, err, "")
		return
	}
	top, _ := strconv.Atoi(c.DefaultQuery("top", strconv.Itoa(analytics.DefaultTopN)))
	c.JSON(http.StatusOK, analytics.Compute(tickets, s.Classifier, s.now(), top))
}

func (s *Server) exportTickets(c *gin.Context) {
	b, ok := s.loadBacklog(c)
	if !ok {
		return
	}
	items, err := s.evaluate(c, b.ID)
	if err != nil {
		storageError(c, err, "")
		return
	}
	sheet := export.SheetTickets
	if c.Query("overdue") == "true" {
		sheet = export.SheetOverdue
	}
	buf, err := export.WriteTickets(sheet, items)
	if err != nil {
		log.Printf("api export backlog=%s error: %v", b.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build spreadsheet"})
		return
	}
	fileName := export.AlertFileName(b.Name, s.now())
	c.Header("Content-Disposition", export.ContentDisposition(fileName))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
