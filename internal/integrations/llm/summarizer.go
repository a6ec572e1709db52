// Package llm writes a short narrative summary of an overdue batch with the
// Anthropic Messages API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"backlogwatch/internal/httpx"
	"backlogwatch/internal/overdue"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel    = "claude-sonnet-4-5"
	defaultMaxItems = 40
	maxSummaryChars = 1200
)

type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

type Summarizer struct {
	client   anthropic.Client
	model    string
	MaxItems int
}

func NewSummarizer(apiKey, model string, opts ...option.RequestOption) *Summarizer {
	if model == "" {
		model = DefaultModel
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpx.ExternalHTTPClient()),
	}
	return &Summarizer{
		client:   anthropic.NewClient(append(base, opts...)...),
		model:    model,
		MaxItems: defaultMaxItems,
	}
}

func (s *Summarizer) Summarize(ctx context.Context, items []overdue.Evaluated) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	systemPrompt, userPrompt := buildSummaryPrompts(items, s.MaxItems)

	message, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	usage := Usage{InputTokens: message.Usage.InputTokens, OutputTokens: message.Usage.OutputTokens}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm summary size=%d tokens_in=%d tokens_out=%d", len(block.Text), usage.InputTokens, usage.OutputTokens)
			return cleanSummary(block.Text), nil
		}
	}
	return "", errors.New("no text content in anthropic response")
}

func buildSummaryPrompts(items []overdue.Evaluated, maxItems int) (string, string) {
	if maxItems < 1 {
		maxItems = defaultMaxItems
	}
	system := strings.Join([]string{
		"You summarise overdue support tickets for an operations manager.",
		"Write 2 to 4 short plain-text sentences: the overall situation, the worst tickets, and any owner, city or company concentration.",
		"Do not use markdown, headings or bullet points. Do not invent tickets.",
	}, "\n")

	counts := map[string]int{}
	for _, e := range items {
		if e.Owner != "" {
			counts[e.Owner]++
		}
	}
	owners := make([]string, 0, len(counts))
	for o := range counts {
		owners = append(owners, o)
	}
	sort.Slice(owners, func(i, j int) bool {
		if counts[owners[i]] != counts[owners[j]] {
			return counts[owners[i]] > counts[owners[j]]
		}
		return owners[i] < owners[j]
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Overdue tickets: %d\n", len(items))
	if len(owners) > 0 {
		b.WriteString("Tickets per owner:")
		for _, o := range owners {
			fmt.Fprintf(&b, " %s=%d", o, counts[o])
		}
		b.WriteString("\n")
	}
	b.WriteString("\nTickets (id | level | hours overdue | severity | owner | city | company | title):\n")
	for i, e := range items {
		if i == maxItems {
			fmt.Fprintf(&b, "(%d more not listed)\n", len(items)-maxItems)
			break
		}
		fmt.Fprintf(&b, "%s | %s | %.0f | %s | %s | %s | %s | %s\n",
			e.ID, e.Overdue.Level, e.Overdue.HoursOverdue, e.Severity, e.Owner, e.City, e.Company, strings.TrimSpace(e.Title))
	}
	return system, b.String()
}

// cleanSummary strips code fences and markdown emphasis and caps the length.
func cleanSummary(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.ReplaceAll(text, "**", "")
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > maxSummaryChars {
		text = strings.TrimSpace(string(r[:maxSummaryChars])) + "…"
	}
	return text
}
