package types

// ProductionRequest describes a proposed solar array.
type ProductionRequest struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	SystemCapacityKW float64 `json:"systemCapacityKW"`
	TiltDegrees      float64 `json:"tiltDegrees"`
	AzimuthDegrees   float64 `json:"azimuthDegrees"`
	LossesPercent    float64 `json:"lossesPercent"`
}

// ProductionSource identifies where an estimate came from.
type ProductionSource string

const (
	ProductionSourceProvided ProductionSource = "provided"
	ProductionSourcePVWatts  ProductionSource = "pvwatts"
	ProductionSourceFallback ProductionSource = "fallback"
)

// ProductionEstimate is an annual solar production estimate.
type ProductionEstimate struct {
	AnnualKWH  float64          `json:"annualKWH"`
	MonthlyKWH [12]float64      `json:"monthlyKWH"`
	Source     ProductionSource `json:"source"`
}
