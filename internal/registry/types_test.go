package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyValue_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want PropertyValue
	}{
		{"integer", `{"type":"HeltallEgenskap","verdi":80}`, PropertyValue{Kind: PropertyInteger, IntValue: 80}},
		{"text", `{"type":"TekstEgenskap","verdi":"E6 Oslo"}`, PropertyValue{Kind: PropertyText, TextValue: "E6 Oslo"}},
		{"enum", `{"type":"EnumEgenskap","verdi":4567}`, PropertyValue{Kind: PropertyEnum, EnumValue: 4567}},
		{"unknown kind carried through", `{"type":"GeometriEgenskap","verdi":{"wkt":"POINT(1 2)"}}`, PropertyValue{Kind: "GeometriEgenskap"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got PropertyValue
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPropertyValue_Marshal(t *testing.T) {
	data, err := json.Marshal(PropertyValue{Kind: PropertyText, TextValue: "E6"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"TekstEgenskap","verdi":"E6"}`, string(data))

	_, err = json.Marshal(PropertyValue{Kind: "GeometriEgenskap"})
	assert.Error(t, err)
}

func TestLocation_Unmarshal(t *testing.T) {
	in := `{"type":"StedfestingLinjer","linjer":[{"id":42,"startposisjon":0.25,"sluttposisjon":0.75}]}`

	var loc Location
	require.NoError(t, json.Unmarshal([]byte(in), &loc))

	assert.Equal(t, LocationLines, loc.Kind)
	require.Len(t, loc.Lines, 1)
	assert.Equal(t, PlacementLine{SequenceID: 42, StartPosition: 0.25, EndPosition: 0.75}, loc.Lines[0])
}
