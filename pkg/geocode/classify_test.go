package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_HighwayIntersectionTwoRoads(t *testing.T) {
	class, info := Classify("I-95 & US-1")
	assert.Equal(t, HighwayIntersection2, class)
	assert.Equal(t, []string{"I-95", "US-1"}, info.Roads)
	assert.Equal(t, "highway_two_roads", info.Reason)
}

func TestClassify_PostalAddress(t *testing.T) {
	class, info := Classify("123 Main St, Miami, FL")
	assert.Equal(t, PostalAddress, class)
	assert.Equal(t, "postal_cues_detected", info.Reason)
}

func TestClassify_MileMarker(t *testing.T) {
	class, info := Classify("I-75 MM 120")
	assert.Equal(t, MileMarker, class)
	assert.Equal(t, "mile_marker_detected", info.Reason)
}

func TestClassify_SingleRoute(t *testing.T) {
	class, _ := Classify("US-46")
	assert.Equal(t, SingleRoute, class)
}

func TestClassify_MultiRoads(t *testing.T) {
	class, info := Classify("I-80 & I-76 & SR-19")
	assert.Equal(t, HighwayIntersectionMulti, class)
	assert.Len(t, info.Roads, 3)
}

func TestClassify_ExitNumberIsNotStreetNumber(t *testing.T) {
	class, _ := Classify("I-95 EXIT 42")
	assert.Equal(t, SingleRoute, class)
}

func TestClassify_Unknown(t *testing.T) {
	class, info := Classify("Behind the old water tower")
	assert.Equal(t, Unknown, class)
	assert.Equal(t, "unable_to_classify", info.Reason)
}

func TestClassify_WhitespaceInvariant(t *testing.T) {
	messy := "  123   Main   St,  Miami,  FL "
	clean, _, _ := NormalizeComponents(messy, "", "")

	classMessy, _ := Classify(CleanPiece(messy))
	classClean, _ := Classify(clean)
	assert.Equal(t, classClean, classMessy)
	assert.Equal(t, PostalAddress, classClean)
}

func TestNormalizeComponents(t *testing.T) {
	addr, city, state := NormalizeComponents("I-75, EXIT 15", " Lima ", " oh ")
	assert.Equal(t, "I-75 EXIT 15", addr)
	assert.Equal(t, "Lima", city)
	assert.Equal(t, "OH", state)

	addr, _, _ = NormalizeComponents("I-95 AND US-1", "", "")
	assert.Equal(t, "I-95 & US-1", addr)

	addr, _, _ = NormalizeComponents("123  Main St ,Miami", "", "")
	assert.Equal(t, "123 Main St, Miami", addr)
}

func TestStripExitTokens(t *testing.T) {
	assert.Equal(t, "I-75", StripExitTokens("I-75 EXIT 15"))
	assert.Equal(t, "I-95 & US-1", StripExitTokens("I-95 & US-1 EXIT 42"))
	assert.Equal(t, "123 Main St", StripExitTokens("123 Main St"))
}

func TestExtractRoads_DedupesAndUppercases(t *testing.T) {
	roads := ExtractRoads("i-80 & I-80 & us-30")
	assert.Equal(t, []string{"I-80", "US-30"}, roads)
}

func TestRankPair(t *testing.T) {
	assert.Equal(t, 0, RankPair("I-80", "US-30"))
	assert.Equal(t, 0, RankPair("SR-9", "I-80"))
	assert.Equal(t, 1, RankPair("I-80", "I-76"))
	assert.Equal(t, 2, RankPair("US-30", "SR-9"))
	assert.Equal(t, 3, RankPair("US-30", "US-6"))
	assert.Equal(t, 4, RankPair("SR-9", "SR-14"))
}

func TestBestRoadPairs_OrdersByRank(t *testing.T) {
	pairs := BestRoadPairs([]string{"SR-9", "US-30", "I-80"}, 2)
	assert.Len(t, pairs, 2)
	// I-80 paired with either of the others outranks SR/US pairs,
	// preserving generation order among the tie.
	assert.Equal(t, RoadPair{A: "SR-9", B: "I-80"}, pairs[0])
	assert.Equal(t, RoadPair{A: "US-30", B: "I-80"}, pairs[1])
}

func TestBestRoadPairs_SingleRoad(t *testing.T) {
	assert.Empty(t, BestRoadPairs([]string{"I-80"}, 2))
}
