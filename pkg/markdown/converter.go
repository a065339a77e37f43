package markdown

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	paragraphRe = regexp.MustCompile(`(?s)<p>(.*?)</p>`)
	headingRe   = regexp.MustCompile(`(?s)<h[1-6][^>]*>(.*?)</h[1-6]>`)
	preCodeRe   = regexp.MustCompile(`(?s)<pre><code(?: class="[^"]*")?>(.*?)</code></pre>`)
	breakRe     = regexp.MustCompile(`<br\s*/?>`)
	tagRe       = regexp.MustCompile(`</?([a-zA-Z0-9]+)(?:\s[^>]*)?>`)
	newlinesRe  = regexp.MustCompile(`\n{3,}`)
)

var supportedTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true,
	"code": true, "pre": true, "a": true,
}

// ToTelegramHTML converts markdown to Telegram-compatible HTML
func ToTelegramHTML(markdown string) string {
	if markdown == "" {
		return ""
	}

	out := string(blackfriday.Run([]byte(markdown),
		blackfriday.WithExtensions(blackfriday.CommonExtensions|blackfriday.HardLineBreak)))

	return cleanHTMLForTelegram(out)
}

func cleanHTMLForTelegram(s string) string {
	s = paragraphRe.ReplaceAllString(s, "$1\n")
	s = headingRe.ReplaceAllString(s, "<b>$1</b>\n")
	s = breakRe.ReplaceAllString(s, "\n")

	s = strings.ReplaceAll(s, "<strong>", "<b>")
	s = strings.ReplaceAll(s, "</strong>", "</b>")
	s = strings.ReplaceAll(s, "<em>", "<i>")
	s = strings.ReplaceAll(s, "</em>", "</i>")
	s = strings.ReplaceAll(s, "<del>", "<s>")
	s = strings.ReplaceAll(s, "</del>", "</s>")

	s = preCodeRe.ReplaceAllString(s, "<pre>$1</pre>")

	// Telegram has no list markup
	s = strings.NewReplacer(
		"<ul>\n", "", "</ul>\n", "", "<ol>\n", "", "</ol>\n", "",
		"<ul>", "", "</ul>", "", "<ol>", "", "</ol>", "",
		"<li>", "• ", "</li>", "",
	).Replace(s)

	s = tagRe.ReplaceAllStringFunc(s, func(match string) string {
		name := tagRe.FindStringSubmatch(match)[1]
		if supportedTags[strings.ToLower(name)] {
			return match
		}
		return ""
	})

	s = newlinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
