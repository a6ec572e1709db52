package mail

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"backlogwatch/internal/overdue"
)

const maxListed = 50

// AlertBody renders the alert as lightweight markdown: "### " headings,
// "- " bullets and **bold**. Only the most urgent tickets are listed; the
// attachment carries the full set.
func AlertBody(items []overdue.Evaluated, summary string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Overdue tickets %s\n\n", now.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "**%d** ticket(s) are overdue.\n", len(items))

	counts := map[overdue.Level]int{}
	for _, e := range items {
		counts[e.Overdue.Level]++
	}
	for _, level := range []overdue.Level{overdue.LevelSevere, overdue.LevelCritical, overdue.LevelWarning, overdue.LevelStagnant} {
		if counts[level] > 0 {
			fmt.Fprintf(&b, "- %s: **%d**\n", level, counts[level])
		}
	}

	if s := strings.TrimSpace(summary); s != "" {
		b.WriteString("\n### Summary\n\n")
		b.WriteString(s)
		b.WriteString("\n")
	}

	b.WriteString("\n### Most urgent\n\n")
	for i, e := range items {
		if i == maxListed {
			fmt.Fprintf(&b, "- ... and %d more in the attachment\n", len(items)-maxListed)
			break
		}
		line := fmt.Sprintf("- **%s** [%s] %s (%.0fh", e.ID, e.Overdue.Level, strings.TrimSpace(e.Title), e.Overdue.HoursOverdue)
		if e.Owner != "" {
			line += ", " + e.Owner
		}
		b.WriteString(line + ")\n")
	}
	return b.String()
}

func markdownToPlain(body string) string {
	var out []string
	prevBlank := false
	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "### ") {
			line = strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
		}
		line = strings.ReplaceAll(line, "**", "")
		if strings.TrimSpace(line) == "" {
			if prevBlank {
				continue
			}
			prevBlank = true
			out = append(out, "")
			continue
		}
		prevBlank = false
		out = append(out, line)
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"
}

var boldTokenRe = regexp.MustCompile(`\*\*([^*]+)\*\*`)

func markdownToHTML(body string) string {
	var b strings.Builder
	b.WriteString(`<html><body style="font-family: Calibri, Arial, sans-serif; font-size: 11pt; color: #1f1f1f; line-height: 1.35;">` + "\n")
	inList := false
	closeList := func() {
		if inList {
			b.WriteString("</ul>\n")
			inList = false
		}
	}
	for _, raw := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(raw)
		switch {
		case trimmed == "":
			closeList()
			b.WriteString(`<div style="height: 10px;"></div>` + "\n")
		case strings.HasPrefix(trimmed, "### "):
			closeList()
			text := renderInlineBold(strings.TrimSpace(strings.TrimLeft(trimmed, "# ")))
			b.WriteString(`<div style="font-weight: 700; margin: 12px 0 6px 0;">` + text + "</div>\n")
		case strings.HasPrefix(trimmed, "- "):
			if !inList {
				b.WriteString(`<ul style="margin: 0 0 0 18px; padding-left: 18px; list-style-type: disc;">` + "\n")
				inList = true
			}
			b.WriteString(`<li style="margin: 2px 0;">` + renderInlineBold(strings.TrimPrefix(trimmed, "- ")) + "</li>\n")
		default:
			closeList()
			b.WriteString(`<div style="margin: 2px 0;">` + renderInlineBold(trimmed) + "</div>\n")
		}
	}
	closeList()
	b.WriteString(`</body></html>`)
	return b.String()
}

func renderInlineBold(s string) string {
	matches := boldTokenRe.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return html.EscapeString(s)
	}
	var out strings.Builder
	last := 0
	for _, m := range matches {
		out.WriteString(html.EscapeString(s[last:m[0]]))
		out.WriteString("<strong>")
		out.WriteString(html.EscapeString(s[m[2]:m[3]]))
		out.WriteString("</strong>")
		last = m[1]
	}
	out.WriteString(html.EscapeString(s[last:]))
	return out.String()
}
