package mail

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
	"time"

	"backlogwatch/internal/export"
)

type message struct {
	From       string
	To         []string
	Subject    string
	Date       time.Time
	Body       string
	FileName   string
	Attachment []byte
}

// build renders a multipart/mixed message: a text/html alternative part
// followed by the optional spreadsheet attachment.
func (m message) build() []byte {
	const (
		mixed = "backlogwatch-mixed"
		alt   = "backlogwatch-alt"
	)
	headers := []string{
		"From: " + m.From,
		"To: " + strings.Join(m.To, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", m.Subject),
		"Date: " + m.Date.Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q", mixed),
	}
	plain := normalizeCRLF(markdownToPlain(m.Body))
	htmlBody := normalizeCRLF(markdownToHTML(m.Body))

	var out strings.Builder
	out.WriteString(strings.Join(headers, "\r\n"))
	out.WriteString("\r\n\r\n")

	out.WriteString("--" + mixed + "\r\n")
	out.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", alt))
	out.WriteString("--" + alt + "\r\n")
	out.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	out.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	out.WriteString(plain)
	if !strings.HasSuffix(plain, "\r\n") {
		out.WriteString("\r\n")
	}
	out.WriteString("\r\n--" + alt + "\r\n")
	out.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	out.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	out.WriteString(htmlBody)
	out.WriteString("\r\n--" + alt + "--\r\n")

	if len(m.Attachment) > 0 {
		name := sanitizeFilename(m.FileName)
		out.WriteString("\r\n--" + mixed + "\r\n")
		out.WriteString("Content-Type: " + mime.FormatMediaType(export.ContentType, map[string]string{"name": name}) + "\r\n")
		out.WriteString("Content-Transfer-Encoding: base64\r\n")
		out.WriteString("Content-Disposition: " + export.ContentDisposition(name) + "\r\n\r\n")
		out.WriteString(wrapBase64(m.Attachment))
	}
	out.WriteString("\r\n--" + mixed + "--\r\n")
	return []byte(out.String())
}

func wrapBase64(data []byte) string {
	enc := base64.StdEncoding.EncodeToString(data)
	var b strings.Builder
	for len(enc) > 76 {
		b.WriteString(enc[:76])
		b.WriteString("\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc)
	b.WriteString("\r\n")
	return b.String()
}

func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_", "\r", "", "\n", "")
	return replacer.Replace(s)
}

func normalizeCRLF(s string) string {
	normalized := strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(normalized, "\n", "\r\n")
}
