package identity

import (
	"context"
	"net/url"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/orgmetrics/internal/credentials"
	"github.com/sells-group/orgmetrics/internal/model"
	"github.com/sells-group/orgmetrics/pkg/linkedin"
)

// Source is one step of the org-ID cascade.
type Source interface {
	Method() model.ResolveMethod
	Lookup(ctx context.Context, ref model.CompanyReference) (string, error)
}

// anyOrgURNRe recognizes an organization identifier anywhere in a structured
// response, raw or percent-encoded.
var anyOrgURNRe = regexp.MustCompile(`urn(?::|%3A)li(?::|%3A)(?:fsd_company|fs_normalized_company|fs_miniCompany|organization|company)(?::|%3A)(\d+)`)

// markupPatterns are tried in order against page markup.
var markupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`urn(?::|%3A)li(?::|%3A)fsd_company(?::|%3A)(\d+)`),
	regexp.MustCompile(`urn(?::|%3A)li(?::|%3A)fs_miniCompany(?::|%3A)(\d+)`),
	regexp.MustCompile(`(?:"|&quot;)entityUrn(?:"|&quot;)\s*:\s*(?:"|&quot;)urn:li:(?:fsd_company|fs_normalized_company|organization|company):(\d+)`),
}

// ScanMarkup applies the ordered markup patterns and returns the first ID.
func ScanMarkup(markup string) (string, bool) {
	for _, re := range markupPatterns {
		if m := re.FindStringSubmatch(markup); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ScanStructured returns the first organization ID found in a serialized
// structured response.
func ScanStructured(body []byte) (string, bool) {
	m := anyOrgURNRe.FindSubmatch(body)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

// StructuredLookup asks the REST company finder, then the GraphQL company
// query, for the slug. It needs an authenticated session.
type StructuredLookup struct {
	Client  linkedin.Client
	Creds   credentials.Provider
	QueryID string
}

func (s *StructuredLookup) Method() model.ResolveMethod {
	return model.ResolveMethodStructuredLookup
}

func (s *StructuredLookup) Lookup(ctx context.Context, ref model.CompanyReference) (string, error) {
	if !s.Creds.Healthy(ctx) {
		return "", eris.New("no authenticated session")
	}

	params := url.Values{
		"q":             {"universalName"},
		"universalName": {ref.Slug},
		"decorationId":  {"com.linkedin.voyager.deco.organization.web.WebFullCompanyMain-12"},
	}
	body, restErr := s.Client.GetJSON(ctx, "organization/companies", params)
	if restErr == nil {
		if id, ok := ScanStructured(body); ok {
			return id, nil
		}
		restErr = &model.ParseFailure{What: "organization URN in company finder response"}
	}
	if model.TerminalDataSource(restErr) != "" {
		return "", restErr
	}

	resp, err := s.Client.GraphQL(ctx, s.QueryID, linkedin.Vars{"universalName": ref.Slug})
	if err != nil {
		return "", eris.Wrapf(err, "after rest lookup failed (%v)", restErr)
	}
	if id, ok := ScanStructured(resp.Raw); ok {
		return id, nil
	}
	return "", &model.ParseFailure{What: "organization URN in graphql company response"}
}

// PageScan fetches a company page (or one of its sub-pages) and scans the
// markup for an organization ID.
type PageScan struct {
	Client linkedin.Client
	Sub    string // "" for the main page, "about" for the about page
}

func (s *PageScan) Method() model.ResolveMethod {
	if s.Sub == "" {
		return model.ResolveMethodPageScan
	}
	return model.ResolveMethodAboutPageScan
}

func (s *PageScan) Lookup(ctx context.Context, ref model.CompanyReference) (string, error) {
	target := ref.URL
	if s.Sub != "" {
		target = linkedin.CompanySubURL(ref.Slug, s.Sub)
	}
	page, err := s.Client.GetPage(ctx, target)
	if err != nil {
		return "", err
	}
	if id, ok := ScanMarkup(page.Body); ok {
		return id, nil
	}
	return "", &model.ParseFailure{What: "organization URN in " + target}
}
