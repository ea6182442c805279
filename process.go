// file: process.go
package wis

const (
	// sv30CompactionFactor converts a 30 minute settled volume (mL/L) to an MLSS estimate.
	sv30CompactionFactor = 120

	DefaultDesignFlow = 98.0
	DefaultTankVolume = 60.0
)

// PlantSpec holds the design constants of the aeration stage.
type PlantSpec struct {
	DesignFlow float64 `json:"designFlow"` // m3/day
	TankVolume float64 `json:"tankVolume"` // m3
}

func DefaultPlantSpec() PlantSpec {
	return PlantSpec{DesignFlow: DefaultDesignFlow, TankVolume: DefaultTankVolume}
}

// MLSSSource is how the operator obtained the mixed-liquor solids figure.
// Implemented only by QuickSV30, LabWeight and Manual.
type MLSSSource interface {
	mlssSource()
	Method() string
}

// QuickSV30 estimates MLSS from the settled volume alone.
type QuickSV30 struct{}

// LabWeight derives MLSS from a dried and weighed sample.
type LabWeight struct {
	DryWeightGrams float64 `json:"dryWeightGrams"`
	SampleVolumeML float64 `json:"sampleVolumeML"`
}

// Manual carries an MLSS value measured elsewhere.
type Manual struct {
	MLSS float64 `json:"manualMLSS"`
}

func (QuickSV30) mlssSource() {}
func (LabWeight) mlssSource() {}
func (Manual) mlssSource()    {}

func (QuickSV30) Method() string { return MethodQuickSV30 }
func (LabWeight) Method() string { return MethodLabWeight }
func (Manual) Method() string    { return MethodManual }

const (
	MethodQuickSV30 = "quick_sv30"
	MethodLabWeight = "lab_weight"
	MethodManual    = "manual"
)

// MeasurementSample is one operator-entered snapshot of the process.
type MeasurementSample struct {
	ActualFlow       float64    `json:"actualFlow"`
	InfluentBOD      float64    `json:"influentBOD"`
	DissolvedOxygen  float64    `json:"dissolvedOxygen"`
	ChlorineResidual float64    `json:"chlorineResidual"`
	SV30             float64    `json:"sv30"`
	PHInlet          float64    `json:"phInlet"`
	PHAeration       float64    `json:"phAeration"`
	PHEffluent       float64    `json:"phEffluent"`
	MLSS             MLSSSource `json:"-"`
}

// DerivedMetrics are recomputed on every run and never stored on their own.
type DerivedMetrics struct {
	MLSS    float64 `json:"mlss"`    // mg/L
	FMRatio float64 `json:"fmRatio"` // kg BOD / kg MLSS / day
	SVI     float64 `json:"svi"`     // mL/g
	HRT     float64 `json:"hrt"`     // hours
}

// ComputeMetrics derives the secondary indicators. A zero divisor yields a 0 metric.
func ComputeMetrics(spec PlantSpec, sample MeasurementSample) DerivedMetrics {
	mlss := EstimateMLSS(sample)
	return DerivedMetrics{
		MLSS:    mlss,
		FMRatio: fmRatio(sample.ActualFlow, sample.InfluentBOD, mlss, spec.TankVolume),
		SVI:     sludgeVolumeIndex(sample.SV30, mlss),
		HRT:     retentionHours(spec.TankVolume, sample.ActualFlow),
	}
}

// EstimateMLSS resolves the sample's MLSS according to its source.
func EstimateMLSS(sample MeasurementSample) float64 {
	switch src := sample.MLSS.(type) {
	case QuickSV30:
		return sample.SV30 * 1000 / sv30CompactionFactor
	case LabWeight:
		if src.SampleVolumeML <= 0 {
			return 0
		}
		return src.DryWeightGrams * 1_000_000 / src.SampleVolumeML
	case Manual:
		return src.MLSS
	default:
		return 0
	}
}

func fmRatio(flow, bod, mlss, tankVolume float64) float64 {
	if mlss <= 0 || tankVolume <= 0 {
		return 0
	}
	return (flow * bod) / (mlss * tankVolume)
}

func sludgeVolumeIndex(sv30, mlss float64) float64 {
	if mlss <= 0 {
		return 0
	}
	return sv30 * 1000 / mlss
}

func retentionHours(tankVolume, flow float64) float64 {
	if flow <= 0 {
		return 0
	}
	return tankVolume / flow * 24
}

// UndefinedMetrics names the metrics whose divisor was zero for these inputs,
// so their 0 value means "not computed" rather than a measured zero.
func UndefinedMetrics(spec PlantSpec, sample MeasurementSample) []string {
	names := []string{}
	mlss := EstimateMLSS(sample)
	if mlss <= 0 {
		names = append(names, "mlss")
	}
	if mlss <= 0 || spec.TankVolume <= 0 {
		names = append(names, "fmRatio")
	}
	if mlss <= 0 {
		names = append(names, "svi")
	}
	if sample.ActualFlow <= 0 {
		names = append(names, "hrt")
	}
	return names
}
