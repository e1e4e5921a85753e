package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/internal/numeric"
)

// headingSelector matches elements whose bare numbers are usually not counts
// (years, prices, ratings). They must match a rule to be used.
const headingSelector = "h1, h2, h3, h4, h5, h6"

// DOMScan evaluates rules against the text of each element matched by
// selectors, in document order. A non-heading element whose whole text is a
// bare count is accepted as an approximate value when no rule matches it.
func DOMScan(markup string, selectors []string, rules []Rule, accept Accept) (Match, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Match{}, false, eris.Wrap(err, "extract: parse markup")
	}

	var (
		found Match
		ok    bool
	)
	doc.Find(strings.Join(selectors, ", ")).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(spaceRe.ReplaceAllString(s.Text(), " "))
		if text == "" {
			return true
		}
		if m, hit := FirstMatch(text, rules, accept); hit {
			found, ok = m, true
			return false
		}
		if bareCountRe.MatchString(text) && !s.Is(headingSelector) {
			if v, parsed := numeric.Parse(text); parsed && (accept == nil || accept(v)) {
				found = Match{Rule: "bare_count", Text: text, Value: &v, Conf: model.ConfidenceApproximate}
				ok = true
				return false
			}
		}
		return true
	})
	return found, ok, nil
}

// CountNodes returns the number of elements matching any of selectors.
func CountNodes(markup string, selectors []string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return 0, eris.Wrap(err, "extract: parse markup")
	}
	return doc.Find(strings.Join(selectors, ", ")).Length(), nil
}
