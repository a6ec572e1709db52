// Package mail delivers overdue alerts by email, over SMTP when a relay is
// configured and as .eml files in an outbox directory otherwise.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"backlogwatch/internal/export"
	"backlogwatch/internal/overdue"
)

type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	OutboxDir string
	Subject   string
}

// Summarizer writes a short narrative for the alert body.
type Summarizer interface {
	Summarize(ctx context.Context, items []overdue.Evaluated) (string, error)
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Sender struct {
	cfg        Config
	Summarizer Summarizer
	Now        func() time.Time
	send       sendFunc
}

func NewSender(cfg Config) *Sender {
	if cfg.Subject == "" {
		cfg.Subject = "Overdue tickets"
	}
	if cfg.From == "" {
		cfg.From = "backlogwatch@localhost"
	}
	return &Sender{cfg: cfg, Now: time.Now, send: smtp.SendMail}
}

func (s *Sender) SendOverdue(ctx context.Context, items []overdue.Evaluated, recipients []string, fileName string) (string, error) {
	if len(recipients) == 0 {
		return "", errors.New("no recipients")
	}
	now := s.Now()

	attachment, err := export.WriteTickets(export.SheetOverdue, items)
	if err != nil {
		return "", fmt.Errorf("build attachment: %w", err)
	}

	summary := ""
	if s.Summarizer != nil {
		summary, err = s.Summarizer.Summarize(ctx, items)
		if err != nil {
			log.Printf("mail summary skipped: %v", err)
			summary = ""
		}
	}

	msg := message{
		From:       s.cfg.From,
		To:         recipients,
		Subject:    fmt.Sprintf("%s (%d) %s", s.cfg.Subject, len(items), now.Format("2006-01-02")),
		Date:       now,
		Body:       AlertBody(items, summary, now),
		FileName:   fileName,
		Attachment: attachment.Bytes(),
	}.build()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if s.cfg.Host == "" {
		path, err := s.writeOutbox(msg, fileName, now)
		if err != nil {
			return "", fmt.Errorf("write outbox: %w", err)
		}
		log.Printf("mail outbox written path=%s recipients=%d", path, len(recipients))
		return fmt.Sprintf("Alert written to outbox for %d recipients", len(recipients)), nil
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := s.send(addr, auth, s.cfg.From, recipients, msg); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	log.Printf("mail sent host=%s recipients=%d file=%s", s.cfg.Host, len(recipients), fileName)
	return fmt.Sprintf("Alert sent to %d recipients", len(recipients)), nil
}

func (s *Sender) writeOutbox(msg []byte, fileName string, now time.Time) (string, error) {
	dir := s.cfg.OutboxDir
	if dir == "" {
		dir = "outbox"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	base := strings.TrimSuffix(sanitizeFilename(fileName), filepath.Ext(fileName))
	if base == "" {
		base = "overdue"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.eml", base, now.Format("150405")))
	return path, os.WriteFile(path, msg, 0644)
}
