package extract

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict  = bluemonday.StrictPolicy()
	spaceRe = regexp.MustCompile(`\s+`)

	// bareCountRe matches element text that is nothing but a count.
	bareCountRe = regexp.MustCompile(`^\d[\d,.\x{00A0}]*\+?$`)
)

// Text reduces markup to whitespace-collapsed visible text. Script and style
// bodies are dropped.
func Text(markup string) string {
	// Tags become spaces so adjacent cells do not fuse into one number.
	spaced := strings.ReplaceAll(markup, "<", " <")
	out := html.UnescapeString(strict.Sanitize(spaced))
	return strings.TrimSpace(spaceRe.ReplaceAllString(out, " "))
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
