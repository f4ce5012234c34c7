package producer

import (
	"fmt"
	"strconv"

	"roadmirror/internal/events"
	"roadmirror/internal/registry"
)

// translateObject maps a raw registry road object into the published event
// schema. Pure, no I/O. A missing property or location section, or an
// unrecognized union kind, is a mapping fault: it propagates instead of
// defaulting, because silently dropping location data would corrupt the
// published event.
func translateObject(raw registry.RoadObject) (*events.RoadObject, error) {
	if raw.Properties == nil {
		return nil, fmt.Errorf("object %d: missing properties section", raw.ID)
	}
	if raw.Location == nil {
		return nil, fmt.Errorf("object %d: missing location section", raw.ID)
	}
	if raw.Location.Kind != registry.LocationLines {
		return nil, fmt.Errorf("object %d: unsupported location kind %q", raw.ID, raw.Location.Kind)
	}

	properties := make(map[int]string, len(raw.Properties))
	for key, value := range raw.Properties {
		propertyID, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("object %d: non-numeric property id %q", raw.ID, key)
		}

		var stringified string
		switch value.Kind {
		case registry.PropertyInteger:
			stringified = strconv.FormatInt(value.IntValue, 10)
		case registry.PropertyText:
			stringified = value.TextValue
		case registry.PropertyEnum:
			stringified = strconv.FormatInt(value.EnumValue, 10)
		default:
			return nil, fmt.Errorf("object %d: unsupported property kind %q for property %d", raw.ID, value.Kind, propertyID)
		}
		properties[propertyID] = stringified
	}

	placements := make([]events.Placement, len(raw.Location.Lines))
	for i, line := range raw.Location.Lines {
		placements[i] = events.Placement{
			SequenceID:    line.SequenceID,
			StartPosition: line.StartPosition,
			EndPosition:   line.EndPosition,
		}
	}

	return &events.RoadObject{
		ID:         raw.ID,
		Type:       raw.TypeID,
		Properties: properties,
		Placements: placements,
	}, nil
}
