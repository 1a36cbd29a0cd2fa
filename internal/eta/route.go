package eta

import "regexp"

var routeHintPattern = regexp.MustCompile(`\d+[A-Za-z]?`)

// RouteHint pulls a route id out of a free-text line name such as "504 King"
// or "Line 7A". It is a best-effort hint: names without digits ("Red Line",
// "Airport Express") yield nothing, and names with several numbers may pick the
// wrong one.
func RouteHint(lineName string) (string, bool) {
	m := routeHintPattern.FindString(lineName)
	return m, m != ""
}

// FilterByLine keeps the candidates whose route matches the hint extracted
// from lineName. With no hint the input is returned unchanged.
func FilterByLine(candidates []Candidate, lineName string) []Candidate {
	hint, ok := RouteHint(lineName)
	if !ok {
		return candidates
	}

	var out []Candidate
	for _, c := range candidates {
		if c.Vehicle.RouteID == hint {
			out = append(out, c)
		}
	}
	return out
}
