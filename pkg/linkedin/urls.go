package linkedin

import (
	"net/url"
	"strings"
)

// CompanyURL returns the canonical company page for slug.
func CompanyURL(slug string) string {
	return DefaultBaseURL + "/company/" + url.PathEscape(slug) + "/"
}

// CompanySubURL returns a sub-page (about, people, jobs) of a company page.
func CompanySubURL(slug, sub string) string {
	return CompanyURL(slug) + strings.Trim(sub, "/") + "/"
}

// PeopleSearchURL is the people search UI filtered to one organization.
func PeopleSearchURL(orgID string) string {
	return DefaultBaseURL + "/search/results/people/?currentCompany=" + url.QueryEscape(`["`+orgID+`"]`) + "&origin=COMPANY_PAGE_CANNED_SEARCH"
}

// JobsSearchURL is the public jobs listing filtered to one organization.
func JobsSearchURL(orgID string) string {
	return DefaultBaseURL + "/jobs/search/?f_C=" + url.QueryEscape(orgID)
}
