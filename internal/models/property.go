package models

// squareFeetPerAcre is used for density calculations.
const squareFeetPerAcre = 43560.0

// Property is the subject of an analysis. It is supplied per request and is
// not owned by the engine.
type Property struct {
	ParcelID           string             `json:"parcel_id"`
	Address            string             `json:"address,omitempty"`
	JurisdictionID     string             `json:"jurisdiction_id"`
	ZoningDistrict     string             `json:"zoning_district,omitempty"`
	CurrentUse         string             `json:"current_use,omitempty"`
	ProposedUse        string             `json:"proposed_use"`
	ProposedDimensions ProposedDimensions `json:"proposed_dimensions"`
}

// ProposedDimensions describes the proposed development. Nil fields were not
// supplied by the caller and are not checked.
type ProposedDimensions struct {
	FrontSetback  *float64 `json:"front_setback,omitempty" binding:"omitempty,gte=0"`
	SideSetback   *float64 `json:"side_setback,omitempty" binding:"omitempty,gte=0"`
	RearSetback   *float64 `json:"rear_setback,omitempty" binding:"omitempty,gte=0"`
	CornerSetback *float64 `json:"corner_setback,omitempty" binding:"omitempty,gte=0"`
	Height        *float64 `json:"height,omitempty" binding:"omitempty,gte=0"`
	Stories       *float64 `json:"stories,omitempty" binding:"omitempty,gte=0"`
	LotCoverage   *float64 `json:"lot_coverage,omitempty" binding:"omitempty,gte=0,lte=100"`
	LotSize       *float64 `json:"lot_size,omitempty" binding:"omitempty,gt=0"`
	LotWidth      *float64 `json:"lot_width,omitempty" binding:"omitempty,gte=0"`
	FloorArea     *float64 `json:"floor_area,omitempty" binding:"omitempty,gte=0"`
	DwellingUnits *float64 `json:"dwelling_units,omitempty" binding:"omitempty,gte=0"`
	ParkingSpaces *float64 `json:"parking_spaces,omitempty" binding:"omitempty,gte=0"`
	LotBoundary   *Polygon `json:"lot_boundary,omitempty"`
	Footprint     *Polygon `json:"footprint,omitempty"`
}

// Resolved returns a copy with values derivable from other inputs filled in:
// lot size from the lot boundary and lot coverage from the building footprint.
// Values supplied by the caller always win.
func (d ProposedDimensions) Resolved() ProposedDimensions {
	out := d

	if out.LotSize == nil && out.LotBoundary != nil {
		if area := out.LotBoundary.AreaSqFt(); area > 0 {
			out.LotSize = Float(area)
		}
	}

	if out.LotCoverage == nil && out.Footprint != nil && out.LotSize != nil && *out.LotSize > 0 {
		if area := out.Footprint.AreaSqFt(); area > 0 {
			out.LotCoverage = Float(area / *out.LotSize * 100)
		}
	}

	return out
}

// FAR returns the proposed floor-area ratio, or nil when it cannot be computed.
func (d ProposedDimensions) FAR() *float64 {
	if d.FloorArea == nil || d.LotSize == nil || *d.LotSize <= 0 {
		return nil
	}
	return Float(*d.FloorArea / *d.LotSize)
}

// Density returns the proposed dwelling units per acre, or nil when it cannot
// be computed.
func (d ProposedDimensions) Density() *float64 {
	if d.DwellingUnits == nil || d.LotSize == nil || *d.LotSize <= 0 {
		return nil
	}
	return Float(*d.DwellingUnits / (*d.LotSize / squareFeetPerAcre))
}
