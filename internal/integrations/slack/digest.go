// Package slackbot posts overdue digests to a Slack channel.
package slackbot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"backlogwatch/internal/httpx"
	"backlogwatch/internal/overdue"

	"github.com/slack-go/slack"
)

const defaultMaxLines = 15

// API is the subset of *slack.Client the digest sender needs.
type API interface {
	UserLister
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type DigestSender struct {
	api       API
	channelID string
	owners    *ownerDirectory
	MaxLines  int
}

func NewDigestSender(token, channelID string) *DigestSender {
	api := slack.New(token, slack.OptionHTTPClient(httpx.ExternalHTTPClient()))
	return newDigestSender(api, channelID)
}

func newDigestSender(api API, channelID string) *DigestSender {
	return &DigestSender{
		api:       api,
		channelID: channelID,
		owners:    &ownerDirectory{api: api, now: time.Now},
		MaxLines:  defaultMaxLines,
	}
}

// SendOverdue posts a digest of the overdue tickets. Email recipients are
// not used; the channel is fixed at construction.
func (s *DigestSender) SendOverdue(ctx context.Context, items []overdue.Evaluated, _ []string, fileName string) (string, error) {
	if s.channelID == "" {
		return "", errors.New("slack channel not configured")
	}
	owners := make([]string, 0, len(items))
	for _, e := range items {
		owners = append(owners, e.Owner)
	}
	mentions := s.owners.resolve(ctx, owners)

	text := formatDigest(items, mentions, fileName, s.MaxLines)
	if _, _, err := s.api.PostMessageContext(ctx, s.channelID, slack.MsgOptionText(text, false)); err != nil {
		log.Printf("slack digest post failed channel=%s: %v", s.channelID, err)
		return "", fmt.Errorf("post slack digest: %w", err)
	}
	log.Printf("slack digest posted channel=%s overdue=%d", s.channelID, len(items))
	return fmt.Sprintf("Slack digest posted to %s", s.channelID), nil
}

func formatDigest(items []overdue.Evaluated, mentions map[string]string, fileName string, maxLines int) string {
	if maxLines < 1 {
		maxLines = defaultMaxLines
	}
	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: *%d overdue ticket(s)*", len(items))
	if fileName != "" {
		fmt.Fprintf(&b, " (full list emailed as `%s`)", fileName)
	}
	b.WriteString("\n")
	for i, e := range items {
		if i == maxLines {
			fmt.Fprintf(&b, "_...and %d more_\n", len(items)-maxLines)
			break
		}
		owner := e.Owner
		if id, ok := mentions[owner]; ok {
			owner = "<@" + id + ">"
		}
		if owner == "" {
			owner = "unassigned"
		}
		fmt.Fprintf(&b, "• *%s* [%s] %s (%.0fh) %s\n", e.ID, e.Overdue.Level, strings.TrimSpace(e.Title), e.Overdue.HoursOverdue, owner)
	}
	return strings.TrimRight(b.String(), "\n")
}
