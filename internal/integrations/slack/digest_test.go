package slackbot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"backlogwatch/internal/domain"
	"backlogwatch/internal/overdue"

	"github.com/slack-go/slack"
)

type fakeAPI struct {
	users      []slack.User
	usersCalls int
	posted     []string
	channel    string
	postErr    error
}

func (f *fakeAPI) GetUsersContext(context.Context, ...slack.GetUsersOption) ([]slack.User, error) {
	f.usersCalls++
	return f.users, nil
}

func (f *fakeAPI) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	if f.postErr != nil {
		return "", "", f.postErr
	}
	f.channel = channelID
	_, values, err := slack.UnsafeApplyMsgOptions("token", channelID, "https://slack.com/api/", options...)
	if err != nil {
		return "", "", err
	}
	f.posted = append(f.posted, values.Get("text"))
	return channelID, "123.456", nil
}

func evaluated(id, owner string, level overdue.Level, hours float64) overdue.Evaluated {
	return overdue.Evaluated{
		Ticket:  domain.Ticket{ID: id, Title: "Title " + id, Owner: owner},
		Overdue: overdue.Info{IsOverdue: true, Level: level, HoursOverdue: hours},
	}
}

func TestDigestSenderPostsWithMentions(t *testing.T) {
	api := &fakeAPI{users: []slack.User{
		{ID: "U0AAAAAAA", Name: "alice", RealName: "Alice Martin (Ops)"},
		{ID: "U0BBBBBBB", Name: "bot", IsBot: true, RealName: "Bob"},
	}}
	s := newDigestSender(api, "C123")

	items := []overdue.Evaluated{
		evaluated("OPS-1", "Alice", overdue.LevelSevere, 40),
		evaluated("OPS-2", "Bob", overdue.LevelWarning, 5),
		evaluated("OPS-3", "", overdue.LevelWarning, 4),
	}
	msg, err := s.SendOverdue(context.Background(), items, []string{"ignored@example.com"}, "overdue_ops_20260304.xlsx")
	if err != nil {
		t.Fatalf("SendOverdue failed: %v", err)
	}
	if msg != "Slack digest posted to C123" || api.channel != "C123" {
		t.Fatalf("unexpected result %q channel=%s", msg, api.channel)
	}
	text := api.posted[0]
	for _, want := range []string{
		"*3 overdue ticket(s)*",
		"`overdue_ops_20260304.xlsx`",
		"*OPS-1* [severe] Title OPS-1 (40h) <@U0AAAAAAA>",
		"*OPS-2* [warning] Title OPS-2 (5h) Bob",
		"(4h) unassigned",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("digest missing %q:\n%s", want, text)
		}
	}

	if _, err := s.SendOverdue(context.Background(), items, nil, ""); err != nil {
		t.Fatalf("second SendOverdue failed: %v", err)
	}
	if api.usersCalls != 1 {
		t.Fatalf("expected cached user list, got %d GetUsers calls", api.usersCalls)
	}
}

func TestDigestSenderErrors(t *testing.T) {
	if _, err := newDigestSender(&fakeAPI{}, "").SendOverdue(context.Background(), nil, nil, ""); err == nil {
		t.Fatal("expected error without channel")
	}
	api := &fakeAPI{postErr: errors.New("channel_not_found")}
	if _, err := newDigestSender(api, "C1").SendOverdue(context.Background(), nil, nil, ""); err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected post error, got %v", err)
	}
}

func TestFormatDigestTruncates(t *testing.T) {
	var items []overdue.Evaluated
	for i := 0; i < 5; i++ {
		items = append(items, evaluated("T", "", overdue.LevelWarning, 1))
	}
	text := formatDigest(items, nil, "", 2)
	if !strings.Contains(text, "_...and 3 more_") {
		t.Fatalf("expected truncation marker:\n%s", text)
	}
}

func TestOwnerDirectoryCacheExpires(t *testing.T) {
	api := &fakeAPI{users: []slack.User{{ID: "U0CCCCCCC", Name: "carol", Profile: slack.UserProfile{Email: "carol@example.com"}}}}
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	d := &ownerDirectory{api: api, now: func() time.Time { return now }}

	got := d.resolve(context.Background(), []string{"carol@example.com", "W0DDDDDDD", "nobody"})
	if got["carol@example.com"] != "U0CCCCCCC" || got["W0DDDDDDD"] != "W0DDDDDDD" {
		t.Fatalf("unexpected resolution: %v", got)
	}
	if _, ok := got["nobody"]; ok {
		t.Fatal("expected unknown owner to stay unresolved")
	}

	now = now.Add(userCacheTTL + time.Second)
	d.resolve(context.Background(), []string{"carol"})
	if api.usersCalls != 2 {
		t.Fatalf("expected refetch after TTL, got %d calls", api.usersCalls)
	}
}

func TestNameMatches(t *testing.T) {
	tests := []struct {
		owner, candidate string
		want             bool
	}{
		{"Alice", "Alice Martin", true},
		{"alice martin", "Alice", true},
		{"Alice Martin", "Alice Dupont", false},
		{"", "Alice", false},
	}
	for _, tt := range tests {
		if got := nameMatches(tt.owner, tt.candidate); got != tt.want {
			t.Errorf("nameMatches(%q, %q) = %v, want %v", tt.owner, tt.candidate, got, tt.want)
		}
	}
}
