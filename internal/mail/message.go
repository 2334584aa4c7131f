package mail

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	scriptStyleRe = regexp.MustCompile(`(?s)<script[^>]*>.*?</script>|<style[^>]*>.*?</style>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
)

// stripHTMLTags removes HTML tags from a string, returning plain text
func stripHTMLTags(html string) string {
	text := scriptStyleRe.ReplaceAllString(html, "")
	text = tagRe.ReplaceAllString(text, "")

	// Decode HTML entities and collapse whitespace
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(text)
}

// buildMessage assembles the full RFC 822 message. HTML bodies are sent as
// multipart/alternative with a stripped plain-text part first.
func buildMessage(from, to, subject, body string, isBodyHTML bool) string {
	msg := "From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n"

	if !isBodyHTML {
		return msg +
			"Content-Type: text/plain; charset=UTF-8\r\n" +
			"Content-Transfer-Encoding: 7bit\r\n" +
			"\r\n" +
			body + "\r\n"
	}

	boundary := "===============" + fmt.Sprintf("%d", time.Now().UnixNano()) + "==============="
	return msg +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"" + boundary + "\"\r\n" +
		"\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"Content-Transfer-Encoding: 7bit\r\n" +
		"\r\n" +
		stripHTMLTags(body) + "\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"Content-Transfer-Encoding: 7bit\r\n" +
		"\r\n" +
		body + "\r\n" +
		"--" + boundary + "--\r\n"
}
