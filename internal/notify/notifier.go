// Package notify filters a ticket batch down to its overdue subset and hands
// it to a Sender when the batch is large enough to be worth an alert.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"backlogwatch/internal/domain"
	"backlogwatch/internal/overdue"
)

// Sender delivers an overdue alert. The returned message is shown to the caller on success.
type Sender interface {
	SendOverdue(ctx context.Context, tickets []overdue.Evaluated, recipients []string, fileName string) (string, error)
}

type Result struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	OverdueCount int    `json:"overdue_count"`
}

const DefaultMinOverdue = 1

type Notifier struct {
	Classifier *overdue.Classifier
	Sender     Sender
	Recipients []string
	MinOverdue int
	Now        func() time.Time
}

func (n *Notifier) minOverdue() int {
	if n.MinOverdue < 1 {
		return DefaultMinOverdue
	}
	return n.MinOverdue
}

// Threshold is the minimum overdue count that triggers a send.
func (n *Notifier) Threshold() int {
	return n.minOverdue()
}

func (n *Notifier) classifier() *overdue.Classifier {
	if n.Classifier == nil {
		return overdue.NewClassifier(overdue.DefaultThresholds())
	}
	return n.Classifier
}

func (n *Notifier) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// Notify never returns an error: every failure is folded into a Result with
// Success false and OverdueCount 0.
func (n *Notifier) Notify(ctx context.Context, tickets []domain.Ticket, fileName string) Result {
	overdueTickets := n.classifier().FilterOverdue(tickets, n.now())
	count := len(overdueTickets)

	if count < n.minOverdue() {
		msg := fmt.Sprintf("%d overdue ticket(s) out of %d, below the alert threshold of %d; no email sent", count, len(tickets), n.minOverdue())
		log.Printf("notify skipped overdue=%d total=%d min=%d", count, len(tickets), n.minOverdue())
		return Result{Success: true, Message: msg, OverdueCount: count}
	}

	valid, invalid := PartitionEmails(n.Recipients)
	if len(invalid) > 0 {
		log.Printf("notify dropping invalid recipients: %s", strings.Join(invalid, ", "))
	}
	if len(valid) == 0 {
		return Result{Success: false, Message: "no valid alert recipient configured"}
	}

	overdue.SortByUrgency(overdueTickets)
	msg, err := sendSafely(ctx, n.Sender, overdueTickets, valid, fileName)
	if err != nil {
		log.Printf("notify send failed overdue=%d recipients=%d: %v", count, len(valid), err)
		return Result{Success: false, Message: fmt.Sprintf("failed to send overdue alert: %v", err)}
	}
	log.Printf("notify sent overdue=%d recipients=%d file=%s", count, len(valid), fileName)
	if msg == "" {
		msg = fmt.Sprintf("Alert sent for %d overdue ticket(s)", count)
	}
	return Result{Success: true, Message: msg, OverdueCount: count}
}

func sendSafely(ctx context.Context, s Sender, tickets []overdue.Evaluated, recipients []string, fileName string) (msg string, err error) {
	if s == nil {
		return "", errors.New("no sender configured")
	}
	defer func() {
		if r := recover(); r != nil {
			msg, err = "", fmt.Errorf("sender panic: %v", r)
		}
	}()
	return s.SendOverdue(ctx, tickets, recipients, fileName)
}

// Fanout delivers through every sender in order. The first sender is the
// primary one and decides the outcome: if it fails nothing else runs.
// Failures of the remaining senders are logged and noted in the message.
type Fanout []Sender

func (f Fanout) SendOverdue(ctx context.Context, tickets []overdue.Evaluated, recipients []string, fileName string) (string, error) {
	if len(f) == 0 {
		return "", errors.New("no sender configured")
	}
	msg, err := f[0].SendOverdue(ctx, tickets, recipients, fileName)
	if err != nil {
		return "", err
	}
	var msgs []string
	if msg != "" {
		msgs = append(msgs, msg)
	}
	for i, s := range f[1:] {
		extra, err := sendSafely(ctx, s, tickets, recipients, fileName)
		if err != nil {
			log.Printf("notify secondary sender=%d failed: %v", i+1, err)
			msgs = append(msgs, fmt.Sprintf("secondary notification failed: %v", err))
			continue
		}
		if extra != "" {
			msgs = append(msgs, extra)
		}
	}
	return strings.Join(msgs, "; "), nil
}
