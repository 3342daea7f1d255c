package models

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// squareFeetPerSquareMeter converts geodesic areas to the ordinance unit.
const squareFeetPerSquareMeter = 10.763910416709722

// Polygon is a GeoJSON polygon in WGS84 (lon, lat) coordinates.
// A single-member MultiPolygon is accepted on input since parcel exports
// commonly wrap simple lots that way.
type Polygon struct {
	Geom orb.Polygon
}

// AreaSqFt returns the geodesic area of the polygon in square feet.
func (p Polygon) AreaSqFt() float64 {
	if len(p.Geom) == 0 {
		return 0
	}
	return geo.Area(p.Geom) * squareFeetPerSquareMeter
}

// MarshalJSON implements json.Marshaler for API responses.
func (p Polygon) MarshalJSON() ([]byte, error) {
	return json.Marshal(geojson.NewGeometry(p.Geom))
}

// UnmarshalJSON implements json.Unmarshaler for parsing GeoJSON input.
func (p *Polygon) UnmarshalJSON(data []byte) error {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return fmt.Errorf("failed to unmarshal polygon: %w", err)
	}

	switch geom := g.Geometry().(type) {
	case orb.Polygon:
		p.Geom = geom
	case orb.MultiPolygon:
		if len(geom) != 1 {
			return fmt.Errorf("expected a single polygon, got MultiPolygon with %d members", len(geom))
		}
		p.Geom = geom[0]
	default:
		return fmt.Errorf("expected Polygon type, got %s", g.Type)
	}

	return nil
}
