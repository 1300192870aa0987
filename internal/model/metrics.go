package model

// Point is a fractional (row, column) grid coordinate.
type Point struct {
	Row float64 `json:"row"`
	Col float64 `json:"col"`
}

// Geometry holds the shape metrics of one occupancy grid.
// Areas are square meters, lengths meters.
type Geometry struct {
	OccupiedCells         int     `json:"occupied_cells"`
	AreaM2                float64 `json:"area_m2"`
	PerimeterM            float64 `json:"perimeter_m"`
	Compactness           float64 `json:"compactness"`
	Components            int     `json:"components"`
	LargestComponentCells int     `json:"largest_component_cells"`
}

// AreaKM2 returns the area in square kilometers.
func (g Geometry) AreaKM2() float64 { return g.AreaM2 / 1e6 }

// Bucket counts occupied cells that fall outside every band or sector.
type Bucket struct {
	Cells             int     `json:"cells"`
	AreaM2            float64 `json:"area_m2"`
	PercentOfOccupied float64 `json:"percent_of_occupied"`
}

// RingBand is one concentric distance band [InnerM, OuterM).
type RingBand struct {
	Index   int     `json:"index"`
	Label   string  `json:"label"`
	InnerM  float64 `json:"inner_m"`
	OuterM  float64 `json:"outer_m"`
	Cells   int     `json:"cells"`
	AreaM2  float64 `json:"area_m2"`
	Percent float64 `json:"percent"` // of in-band area
}

// RingDecomposition partitions occupied area by distance from a center.
type RingDecomposition struct {
	Center      Point      `json:"center"`
	Bands       []RingBand `json:"bands"`
	Beyond      Bucket     `json:"beyond"`
	TotalAreaM2 float64    `json:"total_area_m2"`
}

// Sector is one angular bin of bearings [StartDeg, EndDeg), wrapping at 360.
type Sector struct {
	Index     int     `json:"index"`
	Label     string  `json:"label"`
	StartDeg  float64 `json:"start_deg"`
	EndDeg    float64 `json:"end_deg"`
	CenterDeg float64 `json:"center_deg"`
	Cells     int     `json:"cells"`
	AreaM2    float64 `json:"area_m2"`
	Percent   float64 `json:"percent"` // of total occupied area
}

// SectorDecomposition partitions occupied area by bearing from a center.
// Sectors are ordered clockwise starting at north.
type SectorDecomposition struct {
	Center      Point    `json:"center"`
	Sectors     []Sector `json:"sectors"`
	AtCenter    Bucket   `json:"at_center"`
	TotalAreaM2 float64  `json:"total_area_m2"`
}

// MetricRecord is the full set of metrics for one (year, threshold) pair.
// Centroid, Rings and Sectors are nil for a year with no occupied cells.
type MetricRecord struct {
	Year      int                  `json:"year"`
	Threshold float64              `json:"threshold"`
	Geometry  Geometry             `json:"geometry"`
	Centroid  *Point               `json:"centroid,omitempty"`
	Rings     *RingDecomposition   `json:"rings,omitempty"`
	Sectors   *SectorDecomposition `json:"sectors,omitempty"`
}

// DisplacementRecord describes centroid movement between two consecutive
// observations of a series. Cumulative is the path length since the
// baseline; Net is the straight line from the baseline centroid.
type DisplacementRecord struct {
	FromYear            int     `json:"from_year"`
	ToYear              int     `json:"to_year"`
	From                Point   `json:"from"`
	To                  Point   `json:"to"`
	DistanceM           float64 `json:"distance_m"`
	BearingDeg          float64 `json:"bearing_deg"`
	Direction           string  `json:"direction"`
	CumulativeDistanceM float64 `json:"cumulative_distance_m"`
	NetDistanceM        float64 `json:"net_distance_m"`
	NetBearingDeg       float64 `json:"net_bearing_deg"`
}

// SensitivityRow is the outcome of one threshold in a sensitivity run.
type SensitivityRow struct {
	Threshold float64  `json:"threshold"`
	Geometry  Geometry `json:"geometry"`
	AreaRatio Float    `json:"area_ratio"` // vs. the baseline threshold
}

// SensitivityResult holds the rows of a sensitivity run in threshold input order.
type SensitivityResult struct {
	Baseline float64          `json:"baseline"`
	Rows     []SensitivityRow `json:"rows"`
}
