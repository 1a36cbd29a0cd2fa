package gtfsrt

import (
	"fmt"
	"strings"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"

	"transitpulse/internal/domain"
)

// Decoded is the typed content of one feed message.
type Decoded[T any] struct {
	Entities  map[string]T
	Timestamp time.Time
}

func unmarshal(data []byte) (*gtfsproto.FeedMessage, error) {
	f := &gtfsproto.FeedMessage{}
	if err := proto.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("unmarshaling protobuf: %w", err)
	}

	version := f.GetHeader().GetGtfsRealtimeVersion()
	if version != "2.0" && version != "1.0" {
		return nil, fmt.Errorf("version %q not supported", version)
	}
	return f, nil
}

func headerTime(f *gtfsproto.FeedMessage) time.Time {
	ts := f.GetHeader().GetTimestamp()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(int64(ts), 0).UTC()
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// DecodeVehiclePositions decodes a VehiclePositions feed. Entities without a
// vehicle payload are skipped; positionless vehicles are kept but flagged.
func DecodeVehiclePositions(data []byte) (*Decoded[*domain.VehiclePosition], error) {
	f, err := unmarshal(data)
	if err != nil {
		return nil, err
	}

	out := &Decoded[*domain.VehiclePosition]{
		Entities:  make(map[string]*domain.VehiclePosition, len(f.GetEntity())),
		Timestamp: headerTime(f),
	}

	for _, entity := range f.GetEntity() {
		vp := entity.GetVehicle()
		if vp == nil || entity.GetIsDeleted() {
			continue
		}

		v := &domain.VehiclePosition{
			ID:        entity.GetId(),
			VehicleID: vp.GetVehicle().GetId(),
			Label:     vp.GetVehicle().GetLabel(),
			RouteID:   vp.GetTrip().GetRouteId(),
			TripID:    vp.GetTrip().GetTripId(),
			StopID:    vp.GetStopId(),
			Timestamp: unixTime(int64(vp.GetTimestamp())),
		}
		if v.ID == "" {
			v.ID = firstNonEmpty(v.VehicleID, v.TripID)
		}
		if v.ID == "" {
			continue
		}
		if vp.GetTrip() != nil && vp.GetTrip().DirectionId != nil {
			dir := int(vp.GetTrip().GetDirectionId())
			v.DirectionID = &dir
		}
		if pos := vp.GetPosition(); pos != nil {
			v.HasPosition = true
			v.Lat = float64(pos.GetLatitude())
			v.Lon = float64(pos.GetLongitude())
			v.Bearing = float64(pos.GetBearing())
			v.Speed = float64(pos.GetSpeed())
		}
		if vp.CurrentStopSequence != nil {
			seq := int(vp.GetCurrentStopSequence())
			v.CurrentStopSequence = &seq
		}
		if vp.CurrentStatus != nil {
			v.CurrentStatus = domain.VehicleStatus(vp.GetCurrentStatus().String())
		}

		out.Entities[v.ID] = v
	}

	return out, nil
}

// DecodeTripUpdates decodes a TripUpdates feed. Updates without a trip id
// cannot be correlated and are dropped.
func DecodeTripUpdates(data []byte) (*Decoded[*domain.TripUpdate], error) {
	f, err := unmarshal(data)
	if err != nil {
		return nil, err
	}

	out := &Decoded[*domain.TripUpdate]{
		Entities:  make(map[string]*domain.TripUpdate, len(f.GetEntity())),
		Timestamp: headerTime(f),
	}

	for _, entity := range f.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil || entity.GetIsDeleted() {
			continue
		}
		trip := tu.GetTrip()
		if trip.GetTripId() == "" {
			continue
		}
		if trip.GetScheduleRelationship() == gtfsproto.TripDescriptor_CANCELED {
			continue
		}

		u := &domain.TripUpdate{
			ID:              firstNonEmpty(entity.GetId(), trip.GetTripId()),
			TripID:          trip.GetTripId(),
			RouteID:         trip.GetRouteId(),
			VehicleID:       tu.GetVehicle().GetId(),
			Timestamp:       unixTime(int64(tu.GetTimestamp())),
			StopTimeUpdates: make([]domain.StopTimeUpdate, 0, len(tu.GetStopTimeUpdate())),
		}
		if trip.DirectionId != nil {
			dir := int(trip.GetDirectionId())
			u.DirectionID = &dir
		}

		for _, stu := range tu.GetStopTimeUpdate() {
			u.StopTimeUpdates = append(u.StopTimeUpdates, decodeStopTimeUpdate(stu))
		}

		out.Entities[u.ID] = u
	}

	return out, nil
}

func decodeStopTimeUpdate(stu *gtfsproto.TripUpdate_StopTimeUpdate) domain.StopTimeUpdate {
	update := domain.StopTimeUpdate{
		StopID:       stu.GetStopId(),
		Relationship: domain.StopTimeScheduled,
	}
	if stu.StopSequence != nil {
		seq := int(stu.GetStopSequence())
		update.StopSequence = &seq
	}
	if stu.Arrival != nil {
		update.Arrival = &domain.StopTimeEvent{
			Time:  unixTime(stu.GetArrival().GetTime()),
			Delay: stu.GetArrival().GetDelay(),
		}
	}
	if stu.Departure != nil {
		update.Departure = &domain.StopTimeEvent{
			Time:  unixTime(stu.GetDeparture().GetTime()),
			Delay: stu.GetDeparture().GetDelay(),
		}
	}

	switch stu.GetScheduleRelationship() {
	case gtfsproto.TripUpdate_StopTimeUpdate_SKIPPED:
		update.Relationship = domain.StopTimeSkipped
	case gtfsproto.TripUpdate_StopTimeUpdate_NO_DATA:
		update.Relationship = domain.StopTimeNoData
	}
	return update
}

// DecodeAlerts decodes a ServiceAlerts feed, choosing translations in language.
func DecodeAlerts(data []byte, language string) (*Decoded[*domain.ServiceAlert], error) {
	f, err := unmarshal(data)
	if err != nil {
		return nil, err
	}

	out := &Decoded[*domain.ServiceAlert]{
		Entities:  make(map[string]*domain.ServiceAlert, len(f.GetEntity())),
		Timestamp: headerTime(f),
	}

	for _, entity := range f.GetEntity() {
		a := entity.GetAlert()
		if a == nil || entity.GetIsDeleted() || entity.GetId() == "" {
			continue
		}

		alert := &domain.ServiceAlert{
			ID:          entity.GetId(),
			Header:      Translate(a.GetHeaderText(), language),
			Description: Translate(a.GetDescriptionText(), language),
			URL:         Translate(a.GetUrl(), language),
			Cause:       a.GetCause().String(),
			Effect:      a.GetEffect().String(),
			RouteIDs:    []string{},
		}
		if a.SeverityLevel != nil {
			alert.SeverityLevel = a.GetSeverityLevel().String()
		}

		routes := map[string]struct{}{}
		for _, ie := range a.GetInformedEntity() {
			routeID := firstNonEmpty(ie.GetRouteId(), ie.GetTrip().GetRouteId())
			if routeID != "" {
				if _, seen := routes[routeID]; !seen {
					routes[routeID] = struct{}{}
					alert.RouteIDs = append(alert.RouteIDs, routeID)
				}
			}
			if ie.GetStopId() != "" {
				alert.StopIDs = append(alert.StopIDs, ie.GetStopId())
			}
		}

		for _, period := range a.GetActivePeriod() {
			alert.ActivePeriods = append(alert.ActivePeriods, domain.TimeRange{
				Start: unixTime(int64(period.GetStart())),
				End:   unixTime(int64(period.GetEnd())),
			})
		}

		out.Entities[alert.ID] = alert
	}

	return out, nil
}

// Translate picks the translation matching language (exact, then by primary
// subtag), falling back to the first available one.
func Translate(ts *gtfsproto.TranslatedString, language string) string {
	translations := ts.GetTranslation()
	if len(translations) == 0 {
		return ""
	}

	language = strings.ToLower(strings.TrimSpace(language))
	if language != "" {
		for _, t := range translations {
			if strings.ToLower(t.GetLanguage()) == language {
				return t.GetText()
			}
		}
		for _, t := range translations {
			lang := strings.ToLower(t.GetLanguage())
			if primary, _, _ := strings.Cut(lang, "-"); primary == language {
				return t.GetText()
			}
		}
	}
	return translations[0].GetText()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
