package strategy

import (
	"strconv"
	"strings"

	"github.com/sells-group/orgmetrics/internal/jsonscan"
	"github.com/sells-group/orgmetrics/internal/model"
)

// orgRecord is the typed view of an organization entity.
type orgRecord struct {
	StaffCount *int64
	Range      string
	Facts      model.OrganizationFacts
}

// candidates converts the record into employee candidates: the typed staff
// count is exact, the size band is range-only.
func (r orgRecord) candidates(source, detail string, accept func(int64) bool) []model.MetricCandidate {
	var out []model.MetricCandidate
	if r.StaffCount != nil && accept(*r.StaffCount) {
		out = append(out, model.ValueCandidate(model.MetricEmployeeCount, source, *r.StaffCount, model.ConfidenceExact, detail+".staffCount"))
	}
	if r.Range != "" {
		out = append(out, model.RangeCandidate(model.MetricEmployeeCount, source, r.Range, detail+".staffCountRange"))
	}
	return out
}

// parseOrganization finds the organization entity for slug in a decoded
// response. Normalized responses put it in "included"; the entity whose
// universalName matches wins over the first one carrying a staff count.
func parseOrganization(v any, slug string) (orgRecord, bool) {
	obj := findCompany(v, slug)
	if obj == nil {
		return orgRecord{}, false
	}

	var rec orgRecord
	if n, ok := jsonscan.Int(obj["staffCount"]); ok {
		rec.StaffCount = &n
	}
	if rng, ok := obj["staffCountRange"].(map[string]any); ok {
		rec.Range = formatRange(rng)
	}

	rec.Facts = model.OrganizationFacts{
		Name:            stringField(obj, "name"),
		Industry:        industry(obj),
		StaffCountRange: rec.Range,
		Headquarters:    headquarters(obj),
	}
	if year, ok := jsonscan.FindInt(obj["foundedOn"], "year"); ok {
		rec.Facts.FoundedYear = int(year)
	}
	return rec, rec.StaffCount != nil || rec.Range != "" || !rec.Facts.IsZero()
}

func findCompany(v any, slug string) map[string]any {
	var fallback map[string]any
	for _, obj := range jsonscan.Objects(v) {
		if name, ok := obj["universalName"].(string); ok && strings.EqualFold(name, slug) {
			return obj
		}
		if fallback != nil {
			continue
		}
		if _, ok := obj["staffCount"]; ok {
			fallback = obj
		} else if _, ok := obj["staffCountRange"]; ok {
			fallback = obj
		}
	}
	return fallback
}

// formatRange renders {start, end} as "201-500", or "10001+" when open-ended.
func formatRange(rng map[string]any) string {
	start, ok := jsonscan.Int(rng["start"])
	if !ok {
		return ""
	}
	if end, ok := jsonscan.Int(rng["end"]); ok && end > start {
		return strconv.FormatInt(start, 10) + "-" + strconv.FormatInt(end, 10)
	}
	return strconv.FormatInt(start, 10) + "+"
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func industry(obj map[string]any) string {
	for _, key := range []string{"industry", "industryV2", "industries", "companyIndustries"} {
		switch t := obj[key].(type) {
		case string:
			return t
		case []any:
			for _, item := range t {
				if s, ok := item.(string); ok && s != "" {
					return s
				}
				if s := localized(item); s != "" {
					return s
				}
			}
		case map[string]any:
			if s := localized(t); s != "" {
				return s
			}
		}
	}
	return ""
}

func localized(v any) string {
	if s, ok := jsonscan.FindString(v, "localizedName"); ok {
		return s
	}
	if s, ok := jsonscan.FindString(v, "name"); ok {
		return s
	}
	return ""
}

func headquarters(obj map[string]any) string {
	var hq any
	for _, key := range []string{"headquarter", "headquarters", "headquarter_address"} {
		if v, ok := obj[key]; ok {
			hq = v
			break
		}
	}
	if hq == nil {
		return ""
	}
	var parts []string
	for _, field := range []string{"city", "geographicArea", "country"} {
		if s, ok := jsonscan.FindString(hq, field); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
