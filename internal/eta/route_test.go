package eta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteHint(t *testing.T) {
	cases := map[string]string{
		"504 King":        "504",
		"Line 7A":         "7A",
		"Bus 29 Dufferin": "29",
		"N301 Night":      "301",
		"510 Spadina / 1": "510",
	}
	for name, want := range cases {
		got, ok := RouteHint(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
}

// Non-numeric line names are a known blind spot of the hint.
func TestRouteHintKnownFalseNegatives(t *testing.T) {
	for _, name := range []string{"Red Line", "Airport Express", "Lakeshore West", ""} {
		_, ok := RouteHint(name)
		assert.False(t, ok, name)
	}

	// "Line 1" hints "1" even when the live feed calls the route "YU"
	cands := []Candidate{candidate("a", "YU", "", 100)}
	assert.Empty(t, FilterByLine(cands, "Line 1"))
}

func TestFilterByLine(t *testing.T) {
	cands := []Candidate{
		candidate("a", "504", "", 100),
		candidate("b", "505", "", 200),
	}

	got := FilterByLine(cands, "504 King")
	assert.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Vehicle.ID)

	assert.Equal(t, cands, FilterByLine(cands, "Red Line"))
}
