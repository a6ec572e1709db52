package notify

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"backlogwatch/internal/domain"
	"backlogwatch/internal/overdue"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeSender struct {
	calls      int
	tickets    []overdue.Evaluated
	recipients []string
	fileName   string
	msg        string
	err        error
	panicWith  any
}

func (f *fakeSender) SendOverdue(_ context.Context, tickets []overdue.Evaluated, recipients []string, fileName string) (string, error) {
	f.calls++
	f.tickets = tickets
	f.recipients = recipients
	f.fileName = fileName
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.msg, f.err
}

func newTestNotifier(s Sender, min int) *Notifier {
	return &Notifier{
		Classifier: overdue.NewClassifier(overdue.DefaultThresholds()),
		Sender:     s,
		Recipients: []string{"ops@example.com", "bad-address", " lead@example.com "},
		MinOverdue: min,
		Now:        func() time.Time { return testNow },
	}
}

func aged(id, severity, status string, age time.Duration) domain.Ticket {
	return domain.Ticket{
		ID:            id,
		Status:        status,
		Severity:      severity,
		CreatedAt:     testNow.Add(-age),
		LastUpdatedAt: testNow.Add(-age),
	}
}

func TestNotifyNoOverdueSendsNothing(t *testing.T) {
	sender := &fakeSender{}
	n := newTestNotifier(sender, 1)

	res := n.Notify(context.Background(), []domain.Ticket{
		aged("A", "3", "open", time.Hour),
		aged("B", "1", "closed", 500*time.Hour),
		{ID: "C", Status: "open"},
	}, "overdue.xlsx")

	if sender.calls != 0 {
		t.Fatalf("expected no send, got %d calls", sender.calls)
	}
	if !res.Success || res.OverdueCount != 0 {
		t.Fatalf("expected success with 0 overdue, got %+v", res)
	}
	if res.Message == "" {
		t.Fatal("expected a descriptive message")
	}
}

func TestNotifyBelowThresholdIsSuccessfulNoop(t *testing.T) {
	sender := &fakeSender{}
	n := newTestNotifier(sender, 3)

	res := n.Notify(context.Background(), []domain.Ticket{
		aged("A", "1", "open", 5*time.Hour),
		aged("B", "1", "open", 30*time.Hour),
	}, "overdue.xlsx")

	if sender.calls != 0 {
		t.Fatalf("expected no send below threshold, got %d calls", sender.calls)
	}
	if !res.Success || res.OverdueCount != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.Message, "threshold of 3") {
		t.Fatalf("expected message to mention the threshold, got %q", res.Message)
	}
}

func TestNotifySendsOverdueSubset(t *testing.T) {
	sender := &fakeSender{msg: "Alert sent to 2 recipients"}
	n := newTestNotifier(sender, 0) // values below 1 fall back to 1

	res := n.Notify(context.Background(), []domain.Ticket{
		aged("warn", "1", "open", 5*time.Hour),
		aged("fresh", "3", "open", time.Hour),
		aged("severe", "1", "open", 30*time.Hour),
	}, "overdue_20260310.xlsx")

	if sender.calls != 1 {
		t.Fatalf("expected one send, got %d", sender.calls)
	}
	if !res.Success || res.OverdueCount != 2 || res.Message != "Alert sent to 2 recipients" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if sender.fileName != "overdue_20260310.xlsx" {
		t.Fatalf("unexpected file name: %q", sender.fileName)
	}
	wantRecipients := []string{"ops@example.com", "lead@example.com"}
	if !reflect.DeepEqual(sender.recipients, wantRecipients) {
		t.Fatalf("recipients = %q, want %q", sender.recipients, wantRecipients)
	}
	if len(sender.tickets) != 2 || sender.tickets[0].ID != "severe" || sender.tickets[1].ID != "warn" {
		t.Fatalf("expected overdue tickets sorted by urgency, got %+v", sender.tickets)
	}
}

func TestNotifySenderErrorBecomesFailureResult(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	n := newTestNotifier(sender, 1)

	res := n.Notify(context.Background(), []domain.Ticket{aged("A", "1", "open", 30*time.Hour)}, "f.xlsx")

	if res.Success {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.OverdueCount != 0 {
		t.Fatalf("expected overdue count reset to 0, got %d", res.OverdueCount)
	}
	if !strings.Contains(res.Message, "connection refused") {
		t.Fatalf("expected message to carry the cause, got %q", res.Message)
	}
}

func TestNotifySenderPanicBecomesFailureResult(t *testing.T) {
	sender := &fakeSender{panicWith: "boom"}
	n := newTestNotifier(sender, 1)

	res := n.Notify(context.Background(), []domain.Ticket{aged("A", "1", "open", 30*time.Hour)}, "f.xlsx")

	if res.Success || res.OverdueCount != 0 || res.Message == "" {
		t.Fatalf("expected structured failure, got %+v", res)
	}
}

func TestNotifyWithoutValidRecipients(t *testing.T) {
	sender := &fakeSender{}
	n := newTestNotifier(sender, 1)
	n.Recipients = []string{"nope", " "}

	res := n.Notify(context.Background(), []domain.Ticket{aged("A", "1", "open", 30*time.Hour)}, "f.xlsx")

	if sender.calls != 0 {
		t.Fatal("expected no send without valid recipients")
	}
	if res.Success || res.OverdueCount != 0 {
		t.Fatalf("expected failure result, got %+v", res)
	}
}

func TestNotifyNilSender(t *testing.T) {
	n := newTestNotifier(nil, 1)
	res := n.Notify(context.Background(), []domain.Ticket{aged("A", "1", "open", 30*time.Hour)}, "f.xlsx")
	if res.Success || res.OverdueCount != 0 {
		t.Fatalf("expected failure result with nil sender, got %+v", res)
	}
}

func TestFanoutPrimaryDecidesOutcome(t *testing.T) {
	mail := &fakeSender{msg: "mail ok"}
	slack := &fakeSender{err: errors.New("slack down")}
	chat := &fakeSender{msg: "chat ok"}

	msg, err := Fanout{mail, slack, chat}.SendOverdue(context.Background(), nil, []string{"a@b.co"}, "f.xlsx")
	if err != nil {
		t.Fatalf("secondary failure must not fail the fanout: %v", err)
	}
	if msg != "mail ok; secondary notification failed: slack down; chat ok" {
		t.Fatalf("unexpected fanout message %q", msg)
	}
	if mail.calls != 1 || slack.calls != 1 || chat.calls != 1 {
		t.Fatalf("unexpected calls mail=%d slack=%d chat=%d", mail.calls, slack.calls, chat.calls)
	}

	failing := &fakeSender{err: errors.New("smtp refused")}
	after := &fakeSender{msg: "never"}
	if _, err := (Fanout{failing, after}).SendOverdue(context.Background(), nil, nil, "f.xlsx"); err == nil {
		t.Fatal("expected primary failure to fail the fanout")
	}
	if after.calls != 0 {
		t.Fatal("expected no secondary send after the primary failed")
	}

	panicky := &fakeSender{panicWith: "boom"}
	if msg, err := (Fanout{mail, panicky}).SendOverdue(context.Background(), nil, nil, "f.xlsx"); err != nil || !strings.Contains(msg, "sender panic") {
		t.Fatalf("expected secondary panic to be noted, msg=%q err=%v", msg, err)
	}
}

func TestNotifyMailSentSlackFailedIsSuccess(t *testing.T) {
	mail := &fakeSender{msg: "Alert sent to 2 recipients"}
	slack := &fakeSender{err: errors.New("slack down")}
	n := newTestNotifier(Fanout{mail, slack}, 1)

	res := n.Notify(context.Background(), []domain.Ticket{aged("A", "1", "open", 30*time.Hour)}, "f.xlsx")
	if !res.Success || res.OverdueCount != 1 {
		t.Fatalf("expected success with 1 overdue, got %+v", res)
	}
	if mail.calls != 1 {
		t.Fatalf("expected one mail send, got %d", mail.calls)
	}
	if !strings.Contains(res.Message, "Alert sent to 2 recipients") || !strings.Contains(res.Message, "slack down") {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestNotifyNilClassifierUsesDefaults(t *testing.T) {
	sender := &fakeSender{msg: "sent"}
	n := newTestNotifier(sender, 1)
	n.Classifier = nil

	res := n.Notify(context.Background(), []domain.Ticket{aged("A", "1", "open", 30*time.Hour), aged("B", "1", "open", time.Hour)}, "f.xlsx")
	if !res.Success || res.OverdueCount != 1 || sender.calls != 1 {
		t.Fatalf("expected default thresholds to flag one ticket, got %+v calls=%d", res, sender.calls)
	}
}
