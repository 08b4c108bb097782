package util

import "regexp"

// CitationRegex matches bracketed numeric citation groups ([1], [3-5],
// [2, 4], [1, 3-5]) and tagged citation keys (<GC:key.name>), together with a
// single optional space on either side. The dataset generator and the live
// sentence filter must agree on what counts as a citation marker, so both use
// this pattern.
var CitationRegex = regexp.MustCompile(` ?(\[\d+(?:-\d+|(?:, ?\d+(-\d+)?)*)+\]|<([A-Z]+:[a-zA-Z0-9._:/-]*)>) ?`)

// ContainsCitationMarker reports whether the sentence carries at least one
// citation marker.
func ContainsCitationMarker(s string) bool {
	return CitationRegex.MatchString(s)
}

// StripCitationMarkers removes all citation markers from the sentence.
// Stripping an already-stripped sentence is a no-op.
func StripCitationMarkers(s string) string {
	return CitationRegex.ReplaceAllString(s, "")
}
