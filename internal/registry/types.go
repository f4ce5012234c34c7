package registry

import (
	"encoding/json"
	"fmt"
)

// Property value kinds as reported by the registry's "type" discriminator.
const (
	PropertyInteger = "HeltallEgenskap"
	PropertyText    = "TekstEgenskap"
	PropertyEnum    = "EnumEgenskap"
)

// Location kinds. Only linear placements are supported; other kinds surface as
// translation faults rather than being silently dropped.
const (
	LocationLines = "StedfestingLinjer"
)

// RoadObject is the raw wire representation of a registry road object.
type RoadObject struct {
	ID         int64                    `json:"id"`
	TypeID     int                      `json:"typeId"`
	Version    int                      `json:"versjon"`
	Properties map[string]PropertyValue `json:"egenskaper"`
	Location   *Location                `json:"stedfesting"`
}

// PropertyValue is a closed tagged union over the supported property kinds.
// The zero value (unknown Kind) is preserved so translation can reject it.
type PropertyValue struct {
	Kind string

	// IntValue is set when Kind is PropertyInteger.
	IntValue int64

	// TextValue is set when Kind is PropertyText.
	TextValue string

	// EnumValue is set when Kind is PropertyEnum.
	EnumValue int64
}

// UnmarshalJSON dispatches on the "type" discriminator. Unknown kinds do not
// fail decoding; the unrecognized Kind is carried through for the translator
// to reject, so one bad property does not abort the whole NDJSON stream read.
func (p *PropertyValue) UnmarshalJSON(data []byte) error {
	var head struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"verdi"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	p.Kind = head.Type
	switch head.Type {
	case PropertyInteger:
		return json.Unmarshal(head.Value, &p.IntValue)
	case PropertyText:
		return json.Unmarshal(head.Value, &p.TextValue)
	case PropertyEnum:
		return json.Unmarshal(head.Value, &p.EnumValue)
	default:
		return nil
	}
}

// MarshalJSON round-trips the union for test fixtures.
func (p PropertyValue) MarshalJSON() ([]byte, error) {
	var value any
	switch p.Kind {
	case PropertyInteger:
		value = p.IntValue
	case PropertyText:
		value = p.TextValue
	case PropertyEnum:
		value = p.EnumValue
	default:
		return nil, fmt.Errorf("unknown property kind %q", p.Kind)
	}
	return json.Marshal(map[string]any{"type": p.Kind, "verdi": value})
}

// Location is a closed union over placement representations.
type Location struct {
	Kind string `json:"type"`

	// Lines is set when Kind is LocationLines.
	Lines []PlacementLine `json:"linjer"`
}

// PlacementLine is one linear placement segment. The "id" field on the wire is
// the road link sequence id.
type PlacementLine struct {
	SequenceID    int64   `json:"id"`
	StartPosition float64 `json:"startposisjon"`
	EndPosition   float64 `json:"sluttposisjon"`
}

// ChangeEvent is one entry in the registry's per-type change log.
type ChangeEvent struct {
	ChangeID int64 `json:"hendelseId"`
	ObjectID int64 `json:"vegobjektId"`
}

// LinkSequence is the subset of a road link sequence used for geometry
// enrichment.
type LinkSequence struct {
	SequenceID int64      `json:"veglenkesekvensid"`
	Links      []RoadLink `json:"veglenker"`
}

// RoadLink carries per-link geometry.
type RoadLink struct {
	Geometry *Geometry `json:"geometri"`
}

// Geometry holds a WKT geometry string with its spatial reference id.
type Geometry struct {
	WKT  string `json:"wkt"`
	SRID int    `json:"srid"`
}
