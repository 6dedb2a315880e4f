package assessment

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// fold lowercases and strips diacritics so "José" matches "jose".
func fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// SearchRecords filters records by patient name, therapist, or diagnosis,
// ignoring case and accents. An empty query returns the input unchanged.
func SearchRecords(records []*AssessmentRecord, query string) []*AssessmentRecord {
	query = strings.TrimSpace(query)
	if query == "" {
		return records
	}
	needle := fold(query)

	var out []*AssessmentRecord
	for _, r := range records {
		haystack := fold(r.UserData.Name + " " + r.UserData.SpeechTherapist + " " + r.UserData.Diagnosis)
		if strings.Contains(haystack, needle) {
			out = append(out, r)
		}
	}
	return out
}
