// Package events defines the canonical event schema published to the broker.
// All downstream consumers MUST use these types for event processing.
package events

import (
	"encoding/json"
)

// RoadObject is the translated form of a registry road object.
type RoadObject struct {
	// ID is the registry-assigned object identifier.
	ID int64 `json:"id"`

	// Type is the numeric object type identifier (e.g. 915, 916).
	Type int `json:"type"`

	// Properties maps property id to its stringified value.
	Properties map[int]string `json:"properties"`

	// Placements is the ordered list of linear placements on the road network.
	Placements []Placement `json:"placements"`

	// Geometries holds WKT geometry strings attached by enrichment.
	// Empty when enrichment is disabled or yielded nothing.
	Geometries []string `json:"geometries,omitempty"`
}

// Placement is one linear placement of an object on a road link sequence.
type Placement struct {
	SequenceID    int64   `json:"sequenceId"`
	StartPosition float64 `json:"startPosition"`
	EndPosition   float64 `json:"endPosition"`
}

// Delta represents one change to a road object. Before=nil signals creation,
// After=nil signals deletion. Events are keyed by the object id for publication.
type Delta struct {
	// EventID uniquely identifies this published event.
	EventID string `json:"eventId"`

	Before *RoadObject `json:"before"`
	After  *RoadObject `json:"after"`
}

// Key returns the partition key for the delta. Creation and update deltas key
// on After; deletion deltas key on Before.
func (d *Delta) Key() int64 {
	if d.After != nil {
		return d.After.ID
	}
	if d.Before != nil {
		return d.Before.ID
	}
	return 0
}

// Marshal encodes the delta for publication.
func (d *Delta) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// UnmarshalDelta decodes a published delta.
func UnmarshalDelta(data []byte) (*Delta, error) {
	var d Delta
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
