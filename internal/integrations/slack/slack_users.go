package slackbot

import (
	"context"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
)

const userCacheTTL = 5 * time.Minute

// UserLister is the part of the Slack API used to resolve ticket owners.
type UserLister interface {
	GetUsersContext(ctx context.Context, options ...slack.GetUsersOption) ([]slack.User, error)
}

// ownerDirectory maps ticket owner names to Slack user IDs, caching the
// workspace member list for userCacheTTL.
type ownerDirectory struct {
	api UserLister
	now func() time.Time

	mu        sync.Mutex
	users     []slack.User
	fetchedAt time.Time
}

func (d *ownerDirectory) cachedUsers(ctx context.Context) ([]slack.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.users != nil && d.now().Sub(d.fetchedAt) < userCacheTTL {
		return d.users, nil
	}
	users, err := d.api.GetUsersContext(ctx)
	if err != nil {
		return nil, err
	}
	d.users = users
	d.fetchedAt = d.now()
	return users, nil
}

// resolve returns owner -> Slack user ID for the owners it can match.
func (d *ownerDirectory) resolve(ctx context.Context, owners []string) map[string]string {
	out := make(map[string]string)
	owners = uniqueStrings(owners)
	if d == nil || d.api == nil || len(owners) == 0 {
		return out
	}
	users, err := d.cachedUsers(ctx)
	if err != nil {
		log.Printf("slack resolve owners: get users error: %v", err)
		return out
	}
	for _, owner := range owners {
		if isLikelySlackID(owner) {
			out[owner] = owner
			continue
		}
		for _, u := range users {
			if u.Deleted || u.IsBot {
				continue
			}
			if strings.EqualFold(owner, u.Profile.Email) ||
				nameMatches(owner, u.RealName) ||
				nameMatches(owner, u.Profile.DisplayName) ||
				strings.EqualFold(owner, u.Name) {
				out[owner] = u.ID
				break
			}
		}
	}
	log.Printf("slack resolve owners: owners=%d resolved=%d", len(owners), len(out))
	return out
}

func isLikelySlackID(val string) bool {
	if len(val) < 9 {
		return false
	}
	for i, r := range val {
		if i == 0 {
			if r != 'U' && r != 'W' {
				return false
			}
			continue
		}
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func uniqueStrings(vals []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

var parenPattern = regexp.MustCompile(`\([^)]*\)`)

func normalizeNameTokens(s string) []string {
	s = parenPattern.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// nameMatches accepts either token set contained in the other, so "Alice"
// matches "Alice Smith (Ops)".
func nameMatches(owner, candidate string) bool {
	a := normalizeNameTokens(owner)
	b := normalizeNameTokens(candidate)
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return allIn(a, b) || allIn(b, a)
}

func allIn(needles, haystack []string) bool {
	set := make(map[string]bool, len(haystack))
	for _, t := range haystack {
		set[t] = true
	}
	for _, t := range needles {
		if !set[t] {
			return false
		}
	}
	return true
}
