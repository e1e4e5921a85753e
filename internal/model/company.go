package model

// CompanyReference is a caller-supplied company reference after normalization.
type CompanyReference struct {
	Raw  string `json:"raw"`
	URL  string `json:"url"`  // canonical https://www.linkedin.com/company/<slug>/
	Slug string `json:"slug"` // lowercase vanity slug
}

// ResolveMethod names the cascade step that produced an organization ID.
type ResolveMethod string

const (
	ResolveMethodStructuredLookup ResolveMethod = "structured-lookup"
	ResolveMethodPageScan         ResolveMethod = "page-scan"
	ResolveMethodAboutPageScan    ResolveMethod = "about-page-scan"
)

// OrganizationIdentity is the upstream's internal organization ID plus how it
// was obtained. It is built once per resolution call and never cached.
type OrganizationIdentity struct {
	ID     string        `json:"id"`
	Method ResolveMethod `json:"method"`
}

// OrganizationFacts holds the basic profile returned by the structured
// organization query. Every field is optional.
type OrganizationFacts struct {
	Name            string `json:"name,omitempty"`
	Industry        string `json:"industry,omitempty"`
	FoundedYear     int    `json:"foundedYear,omitempty"`
	StaffCountRange string `json:"staffCountRange,omitempty"`
	Headquarters    string `json:"headquarters,omitempty"`
}

// IsZero reports whether no fact was populated.
func (f OrganizationFacts) IsZero() bool {
	return f == OrganizationFacts{}
}
