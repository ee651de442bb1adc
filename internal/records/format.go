package records

import (
	"fmt"
	"strconv"

	"github.com/carpenike/repcoach/internal/models"
)

// Label is the Spanish name of a record type shown to users.
func Label(t models.RecordType) string {
	switch t {
	case models.RecordOneRepMax:
		return "1RM estimado"
	case models.RecordMaxReps:
		return "Máximo de repeticiones"
	case models.RecordMaxVolume:
		return "Volumen total"
	case models.RecordBestSet:
		return "Mejor serie"
	default:
		return string(t)
	}
}

// FormatValue renders a record value with its unit.
func FormatValue(t models.RecordType, value float64, reps int, weight float64) string {
	switch t {
	case models.RecordOneRepMax:
		return kg(value)
	case models.RecordMaxReps:
		if weight > 0 {
			return fmt.Sprintf("%d reps con %s", reps, kg(weight))
		}
		return fmt.Sprintf("%d reps", reps)
	case models.RecordMaxVolume:
		return kg(value)
	case models.RecordBestSet:
		return fmt.Sprintf("%s × %d", kg(weight), reps)
	default:
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
}

// FormatRecord renders a stored record as "<label>: <value>".
func FormatRecord(r *models.PersonalRecord) string {
	return Label(r.Type) + ": " + FormatValue(r.Type, r.Value, int(r.Reps.Int64), r.Weight.Float64)
}

// FormatAchievement renders a new record with its improvement, if any.
func FormatAchievement(a Achievement) string {
	s := Label(a.Type) + ": " + FormatValue(a.Type, a.Value, a.Reps, a.Weight)
	if a.Improvement != nil {
		s += fmt.Sprintf(" (+%.1f%%)", *a.Improvement)
	}
	return s
}

func kg(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " kg"
}
