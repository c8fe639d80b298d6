package enrich

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LinkField names a URL-bearing slot on a record.
type LinkField string

// Supported link fields, in processing order.
const (
	FieldProfileURL      LinkField = "profile_url"
	FieldPersonalWebsite LinkField = "personal_website"
	FieldLabWebsite      LinkField = "lab_website"
	FieldScholarURL      LinkField = "scholar_url"
)

// LinkFields lists every field in the order the pipeline visits them.
var LinkFields = []LinkField{
	FieldProfileURL,
	FieldPersonalWebsite,
	FieldLabWebsite,
	FieldScholarURL,
}

var fieldAccepts = map[LinkField][]LinkType{
	FieldProfileURL: {
		LinkTypeUniversityProfile,
		LinkTypeAcademicProfile,
		LinkTypePersonalWebsite,
		LinkTypeLabWebsite,
	},
	FieldPersonalWebsite: {LinkTypePersonalWebsite, LinkTypeUniversityProfile},
	FieldLabWebsite:      {LinkTypeLabWebsite},
	FieldScholarURL:      {LinkTypeGoogleScholar, LinkTypeAcademicProfile},
}

// Accepts reports whether a candidate of type t may fill the field.
// An untyped candidate fits any field.
func (f LinkField) Accepts(t LinkType) bool {
	if t == "" {
		return true
	}
	for _, ok := range fieldAccepts[f] {
		if ok == t {
			return true
		}
	}
	return false
}

// Record is one input entity with its optional link fields and free-text context.
// Unknown input keys are kept in Extra and written back unchanged.
type Record struct {
	Name            string   `json:"name,omitempty"`
	Organization    string   `json:"organization,omitempty"`
	Department      string   `json:"department,omitempty"`
	Domain          string   `json:"domain,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	ProfileURL      string   `json:"profile_url,omitempty"`
	PersonalWebsite string   `json:"personal_website,omitempty"`
	LabWebsite      string   `json:"lab_website,omitempty"`
	ScholarURL      string   `json:"scholar_url,omitempty"`

	Extra map[string]any `json:"-"`
}

// Get returns the raw value of a link field.
func (r Record) Get(f LinkField) string {
	switch f {
	case FieldProfileURL:
		return r.ProfileURL
	case FieldPersonalWebsite:
		return r.PersonalWebsite
	case FieldLabWebsite:
		return r.LabWebsite
	case FieldScholarURL:
		return r.ScholarURL
	default:
		return ""
	}
}

// With returns a copy of the record with the field set to value.
func (r Record) With(f LinkField, value string) Record {
	switch f {
	case FieldProfileURL:
		r.ProfileURL = value
	case FieldPersonalWebsite:
		r.PersonalWebsite = value
	case FieldLabWebsite:
		r.LabWebsite = value
	case FieldScholarURL:
		r.ScholarURL = value
	}
	return r
}

// Populated returns the fields carrying a non-blank value.
func (r Record) Populated() []LinkField {
	out := make([]LinkField, 0, len(LinkFields))
	for _, f := range LinkFields {
		if strings.TrimSpace(r.Get(f)) != "" {
			out = append(out, f)
		}
	}
	return out
}

// Clone deep-copies the slices and the extension map.
func (r Record) Clone() Record {
	out := r
	if r.Interests != nil {
		out.Interests = append([]string(nil), r.Interests...)
	}
	if r.Extra != nil {
		out.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

type recordAlias Record

var knownRecordKeys = map[string]struct{}{
	"name":             {},
	"organization":     {},
	"department":       {},
	"domain":           {},
	"interests":        {},
	"profile_url":      {},
	"personal_website": {},
	"lab_website":      {},
	"scholar_url":      {},
}

// UnmarshalJSON decodes the known fields and keeps every other key in Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var alias recordAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode record keys: %w", err)
	}
	*r = Record(alias)
	for key, value := range raw {
		if _, known := knownRecordKeys[key]; known {
			continue
		}
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("decode record key %q: %w", key, err)
		}
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[key] = v
	}
	return nil
}

// MarshalJSON writes the known fields and merges Extra back in.
func (r Record) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(recordAlias(r))
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	if len(r.Extra) == 0 {
		return base, nil
	}
	merged := make(map[string]any, len(r.Extra)+len(knownRecordKeys))
	for k, v := range r.Extra {
		merged[k] = v
	}
	var known map[string]any
	if err := json.Unmarshal(base, &known); err != nil {
		return nil, fmt.Errorf("re-decode record: %w", err)
	}
	for k, v := range known {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode merged record: %w", err)
	}
	return out, nil
}
