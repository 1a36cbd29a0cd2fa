package kvstore

const (
	KeyLastItinerary    = "trip:last_itinerary"
	KeyAccessibility    = "settings:accessibility"
	KeyPlaceHome        = "places:home"
	KeyPlaceWork        = "places:work"
	KeyPlacesCustom     = "places:custom"
	KeySearchHistory    = "search:history"
	KeyCommuteLog       = "commute:departures"
	KeyCommutePatterns  = "commute:patterns"
	KeyPredictiveHandle = "commute:predictive_handle"
)
