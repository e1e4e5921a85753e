// Package identity normalizes company references and resolves them to the
// upstream's internal organization ID.
package identity

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/pkg/linkedin"
)

// bareSlugRe matches a reference with no scheme, slash or dot.
var bareSlugRe = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}_%-]*$`)

// orgRoots are path prefixes whose second segment names an organization.
var orgRoots = map[string]bool{
	"company":  true,
	"showcase": true,
	"school":   true,
}

// nonOrgRoots are top-level routes that can never be read as a slug.
var nonOrgRoots = map[string]bool{
	"in":       true,
	"pub":      true,
	"feed":     true,
	"jobs":     true,
	"search":   true,
	"login":    true,
	"authwall": true,
	"groups":   true,
	"posts":    true,
	"pulse":    true,
}

// Normalize turns a loose reference (bare slug, relative path, or URL with or
// without scheme) into a canonical company reference.
func Normalize(raw string) (model.CompanyReference, error) {
	ref := model.CompanyReference{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return ref, &model.InvalidReferenceError{Reference: raw, Reason: "empty reference"}
	}

	switch {
	case bareSlugRe.MatchString(s):
		s = linkedin.CompanyURL(s)
	case strings.HasPrefix(s, "//"):
		s = "https:" + s
	case strings.HasPrefix(s, "/"):
		s = linkedin.DefaultBaseURL + s
	case strings.HasPrefix(strings.ToLower(s), "company/"):
		s = linkedin.DefaultBaseURL + "/" + s
	case !strings.Contains(s, "://"):
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return ref, &model.InvalidReferenceError{Reference: raw, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ref, &model.InvalidReferenceError{Reference: raw, Reason: "unsupported scheme " + u.Scheme}
	}
	if !linkedin.IsUpstreamHost(u.Hostname()) {
		return ref, &model.InvalidReferenceError{Reference: raw, Reason: "host " + u.Hostname() + " is not linkedin.com"}
	}

	slug, reason := slugFromPath(u.EscapedPath())
	if slug == "" {
		return ref, &model.InvalidReferenceError{Reference: raw, Reason: reason}
	}

	ref.Slug = slug
	ref.URL = linkedin.CompanyURL(slug)
	return ref, nil
}

// ExtractSlug returns the vanity slug of a reference, or false when the
// reference does not normalize.
func ExtractSlug(raw string) (string, bool) {
	ref, err := Normalize(raw)
	if err != nil {
		return "", false
	}
	return ref.Slug, true
}

func slugFromPath(escaped string) (string, string) {
	var segs []string
	for _, seg := range strings.Split(escaped, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	if len(segs) == 0 {
		return "", "missing company slug"
	}

	root := strings.ToLower(segs[0])
	candidate := segs[0]
	switch {
	case orgRoots[root]:
		if len(segs) < 2 {
			return "", "missing company slug"
		}
		candidate = segs[1]
	case nonOrgRoots[root]:
		return "", "not a company page: /" + root
	}

	slug, err := url.PathUnescape(candidate)
	if err != nil {
		return "", "malformed slug " + candidate
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" || strings.ContainsAny(slug, " \t/?#") {
		return "", "malformed slug " + candidate
	}
	return slug, ""
}
