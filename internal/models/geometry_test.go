package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squareLot is roughly 111m x 111m at the equator.
const squareLot = `{"type":"Polygon","coordinates":[[[0,0],[0.001,0],[0.001,0.001],[0,0.001],[0,0]]]}`

func TestPolygonUnmarshal(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:  "valid polygon",
			input: squareLot,
		},
		{
			name:  "single member multipolygon",
			input: `{"type":"MultiPolygon","coordinates":[[[[0,0],[0.001,0],[0.001,0.001],[0,0.001],[0,0]]]]}`,
		},
		{
			name:      "multipolygon with two members",
			input:     `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]],[[[2,2],[3,2],[3,3],[2,2]]]]}`,
			wantError: true,
		},
		{
			name:      "wrong type",
			input:     `{"type":"Point","coordinates":[0,0]}`,
			wantError: true,
		},
		{
			name:      "invalid JSON",
			input:     `{invalid}`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Polygon
			err := json.Unmarshal([]byte(tt.input), &p)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, p.Geom)
		})
	}
}

func TestPolygonAreaSqFt(t *testing.T) {
	var p Polygon
	require.NoError(t, json.Unmarshal([]byte(squareLot), &p))

	// (0.001 deg * 111,319 m)^2 ~= 12,392 m^2 ~= 133,390 sq ft
	assert.InEpsilon(t, 133390.0, p.AreaSqFt(), 0.02)
	assert.Zero(t, Polygon{}.AreaSqFt())
}

func TestPolygonJSONRoundTrip(t *testing.T) {
	var original Polygon
	require.NoError(t, json.Unmarshal([]byte(squareLot), &original))

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"Polygon"`)

	var decoded Polygon
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, len(original.Geom), len(decoded.Geom))
	assert.Equal(t, len(original.Geom[0]), len(decoded.Geom[0]))
}
