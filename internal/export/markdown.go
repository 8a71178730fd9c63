// Package export renders stored documents into other formats.
package export

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// Markdown converts rewritten document HTML to GitHub-flavored Markdown.
// Media links keep their /uploads/ paths.
type Markdown struct {
	converter *md.Converter
}

// NewMarkdown creates a converter. A non-empty domain (host[:port]) turns
// relative links into absolute http links.
func NewMarkdown(domain string) *Markdown {
	converter := md.NewConverter(domain, true, nil)
	converter.Use(plugin.GitHubFlavored())
	converter.Remove("script", "style", "noscript", "template")

	return &Markdown{converter: converter}
}

// Convert renders content as Markdown.
func (m *Markdown) Convert(content string) (string, error) {
	out, err := m.converter.ConvertString(content)
	if err != nil {
		return "", err
	}
	return clean(out), nil
}

func clean(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
