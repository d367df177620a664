package geocode

import (
	"regexp"
	"sort"
	"strings"
)

// AddrType is the classification assigned to a raw station address.
type AddrType string

// Address classifications, ordered roughly by geocodability.
const (
	PostalAddress            AddrType = "POSTAL_ADDRESS"
	HighwayIntersection2     AddrType = "HIGHWAY_INTERSECTION_2"
	HighwayIntersectionMulti AddrType = "HIGHWAY_INTERSECTION_MULTI"
	SingleRoute              AddrType = "SINGLE_ROUTE"
	MileMarker               AddrType = "MILE_MARKER"
	Unknown                  AddrType = "UNKNOWN"
)

var (
	whitespaceRE      = regexp.MustCompile(`\s+`)
	exitRE            = regexp.MustCompile(`(?i)\bEXIT\s*\d+\b`)
	mileMarkerRE      = regexp.MustCompile(`(?i)\b(?:MM|MILE\s*MARKER)\s*\d+\b`)
	commaSpacingRE    = regexp.MustCompile(`\s*,\s*`)
	intersectionSepRE = regexp.MustCompile(`(?i)\s*(?:&| AND )\s*`)
	commaExitRE       = regexp.MustCompile(`(?i),\s*(EXIT\s*\d+)\b`)

	// Road tokens: interstates, US routes, state routes.
	roadRE = regexp.MustCompile(`(?i)\b(I-\d{1,3}|US-\d{1,3}|SR-\d{1,4})\b`)

	// Postal cues.
	streetNumberRE   = regexp.MustCompile(`\b\d{1,6}\b`)
	numberThenWordRE = regexp.MustCompile(`(?i)\b\d{1,6}\s+[A-Za-z]`)
	streetSuffixRE   = regexp.MustCompile(`(?i)\b(` +
		`ST|STREET|AVE|AVENUE|RD|ROAD|DR|DRIVE|LN|LANE|BLVD|BOULEVARD|` +
		`HWY|HIGHWAY|PKWY|PARKWAY|CT|COURT|PL|PLACE|CIR|CIRCLE|WAY|TER|TERRACE|` +
		`PLZ|PLAZA|TRL|TRAIL|PIKE|SQ|SQUARE` +
		`)\b`)
)

// ClassifyInfo carries the evidence behind a classification.
type ClassifyInfo struct {
	Raw    string
	Roads  []string
	Reason string
}

// CleanPiece trims a field and collapses internal whitespace.
func CleanPiece(s string) string {
	s = strings.TrimSpace(s)
	return whitespaceRE.ReplaceAllString(s, " ")
}

// NormalizeComponents cleans an (address, city, state) triple:
// comma spacing becomes ", ", intersection separators become " & ",
// "I-75, EXIT 15" collapses to "I-75 EXIT 15", state is uppercased.
func NormalizeComponents(address, city, state string) (string, string, string) {
	address = CleanPiece(address)
	city = CleanPiece(city)
	state = strings.ToUpper(CleanPiece(state))

	address = commaSpacingRE.ReplaceAllString(address, ", ")
	address = intersectionSepRE.ReplaceAllString(address, " & ")
	address = commaExitRE.ReplaceAllString(address, " $1")

	return address, city, state
}

// StripExitTokens removes EXIT tokens and collapses whitespace.
func StripExitTokens(address string) string {
	a := exitRE.ReplaceAllString(address, "")
	a = strings.TrimSpace(whitespaceRE.ReplaceAllString(a, " "))
	return strings.TrimSpace(strings.Trim(a, ", "))
}

// stripExitMMNumbers removes EXIT and mile-marker fragments so their
// numbers don't look like street numbers.
func stripExitMMNumbers(address string) string {
	a := exitRE.ReplaceAllString(address, "")
	a = mileMarkerRE.ReplaceAllString(a, "")
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(a, " "))
}

// ExtractRoads returns the uppercased road tokens in first-seen order,
// de-duplicated.
func ExtractRoads(address string) []string {
	matches := roadRE.FindAllString(address, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		r := strings.ToUpper(m)
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// looksLikeHighwayReference reports whether the address is a highway
// reference even when it contains numbers (exit numbers).
func looksLikeHighwayReference(address string) bool {
	roads := ExtractRoads(address)
	if mileMarkerRE.MatchString(address) {
		return true
	}
	if exitRE.MatchString(address) && len(roads) >= 1 {
		return true
	}
	// Single route like "US-46".
	if len(roads) == 1 && !strings.Contains(address, " ") && !streetSuffixRE.MatchString(address) {
		return true
	}
	// Pure road tokens / intersections without postal cues.
	if len(roads) >= 1 && !streetSuffixRE.MatchString(address) &&
		!numberThenWordRE.MatchString(stripExitMMNumbers(address)) {
		return true
	}
	return false
}

// isPostalAddress applies the stricter postal check: highway references
// are excluded first so exit numbers never read as street numbers.
func isPostalAddress(address string) bool {
	if looksLikeHighwayReference(address) {
		return false
	}
	a := stripExitMMNumbers(address)
	if numberThenWordRE.MatchString(a) {
		return true
	}
	if streetSuffixRE.MatchString(a) && streetNumberRE.MatchString(a) {
		return true
	}
	return false
}

// Classify assigns exactly one AddrType to a raw address. Pure, no I/O.
func Classify(address string) (AddrType, ClassifyInfo) {
	info := ClassifyInfo{Raw: address}

	// Mile markers are never geocodable as-is.
	if mileMarkerRE.MatchString(address) {
		info.Reason = "mile_marker_detected"
		return MileMarker, info
	}

	info.Roads = ExtractRoads(address)

	// Highway-style addresses first, even if they contain numbers.
	if looksLikeHighwayReference(address) {
		switch {
		case len(info.Roads) == 1:
			info.Reason = "highway_single_route"
			return SingleRoute, info
		case len(info.Roads) == 2:
			info.Reason = "highway_two_roads"
			return HighwayIntersection2, info
		case len(info.Roads) >= 3:
			info.Reason = "highway_multi_roads"
			return HighwayIntersectionMulti, info
		}
	}

	if isPostalAddress(address) {
		info.Reason = "postal_cues_detected"
		return PostalAddress, info
	}

	info.Reason = "unable_to_classify"
	return Unknown, info
}

// RankPair scores a pair of road tokens for intersection queries.
// Lower is better: interstate crossings are the most resolvable.
func RankPair(a, b string) int {
	ta, _, _ := strings.Cut(a, "-")
	tb, _, _ := strings.Cut(b, "-")
	has := func(t string) bool { return ta == t || tb == t }
	switch {
	case has("I") && (has("US") || has("SR")):
		return 0
	case ta == "I" && tb == "I":
		return 1
	case has("US") && has("SR"):
		return 2
	case ta == "US" && tb == "US":
		return 3
	case ta == "SR" && tb == "SR":
		return 4
	}
	return 5
}

// RoadPair is an ordered pair of road tokens.
type RoadPair struct {
	A, B string
}

// BestRoadPairs returns up to maxPairs pairs of roads ordered by
// RankPair preference, preserving input order among ties.
func BestRoadPairs(roads []string, maxPairs int) []RoadPair {
	var pairs []RoadPair
	for i := 0; i < len(roads); i++ {
		for j := i + 1; j < len(roads); j++ {
			pairs = append(pairs, RoadPair{A: roads[i], B: roads[j]})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return RankPair(pairs[i].A, pairs[i].B) < RankPair(pairs[j].A, pairs[j].B)
	})
	if len(pairs) > maxPairs {
		pairs = pairs[:maxPairs]
	}
	return pairs
}
