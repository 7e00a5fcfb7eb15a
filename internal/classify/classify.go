// ABOUTME: Pure status classification for health readings.
// ABOUTME: Maps a metric type, value and additional data to a status band and canonical unit.
package classify

import "github.com/harperreed/healthhub/internal/models"

// Status bands.
const (
	Low         = "low"
	Normal      = "normal"
	Elevated    = "elevated"
	High        = "high"
	Underweight = "underweight"
	Overweight  = "overweight"
	Obese       = "obese"
	Fever       = "fever"
	Recorded    = "recorded"
	Unknown     = "unknown"
)

// Result is the outcome of classifying a single reading.
type Result struct {
	Status string `json:"status"`
	Unit   string `json:"unit"`
}

// Classify returns the status band for a reading. Band boundaries are inclusive.
// unit is used when the metric type has no fixed unit and a unit was recorded.
func Classify(metricType models.MetricType, value *float64, additional map[string]float64, unit string) Result {
	canonical := models.MetricUnits[metricType]
	if unit == "" || metricType == models.MetricBloodPressure {
		unit = canonical
	}

	switch metricType {
	case models.MetricBloodPressure:
		sys, ok := additional[models.KeySystolic]
		if !ok {
			if value == nil {
				return Result{Unknown, unit}
			}
			sys = *value
		}
		dia, ok := additional[models.KeyDiastolic]
		if !ok {
			return Result{Unknown, unit}
		}
		return Result{bloodPressure(sys, dia), unit}
	}

	if value == nil {
		return Result{Unknown, unit}
	}
	v := *value

	switch metricType {
	case models.MetricBloodSugar:
		switch {
		case v < 70:
			return Result{Low, unit}
		case v <= 140:
			return Result{Normal, unit}
		default:
			return Result{High, unit}
		}
	case models.MetricBMI:
		switch {
		case v < 18.5:
			return Result{Underweight, unit}
		case v < 25:
			return Result{Normal, unit}
		case v < 30:
			return Result{Overweight, unit}
		default:
			return Result{Obese, unit}
		}
	case models.MetricTemperature:
		switch {
		case v < 36:
			return Result{Low, unit}
		case v <= 37.5:
			return Result{Normal, unit}
		default:
			return Result{Fever, unit}
		}
	case models.MetricHeartRate:
		switch {
		case v < 60:
			return Result{Low, unit}
		case v <= 100:
			return Result{Normal, unit}
		default:
			return Result{High, unit}
		}
	case models.MetricWeight:
		return Result{Recorded, unit}
	}
	return Result{Unknown, unit}
}

// Metric classifies a stored metric.
func Metric(m *models.Metric) Result {
	return Classify(m.MetricType, m.Value, m.AdditionalData, m.Unit)
}

func bloodPressure(sys, dia float64) string {
	switch {
	case sys < 90 || dia < 60:
		return Low
	case sys <= 120 && dia <= 80:
		return Normal
	case sys <= 139 || dia <= 89:
		return Elevated
	default:
		return High
	}
}
