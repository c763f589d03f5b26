package kpi

import (
	"strconv"
	"strings"
)

// Classification is the outcome of grading a captured value. A "none"
// grade with a reason is a valid terminal result, not an error; callers
// must surface the reason rather than hide the row.
type Classification struct {
	Grade  string   `json:"grade"`
	Score  *float64 `json:"score"`
	Reason string   `json:"reason,omitempty"`
}

// Classify grades a raw captured value against a KPI definition.
// Deterministic and side-effect free: the same (kpi, rawValue) pair
// always yields the same classification.
func Classify(k *KPI, rawValue string) Classification {
	if k == nil || !ValidScoreType(k.ScoreType) {
		return unscoreable("invalid KPI")
	}
	if k.ScoreType == ScoreTypeCriterion {
		return classifyCriterion(k, rawValue)
	}
	return classifyNumeric(k, rawValue)
}

func classifyCriterion(k *KPI, rawValue string) Classification {
	green := strings.TrimSpace(k.CriterionGreen)
	yellow := strings.TrimSpace(k.CriterionYellow)
	red := strings.TrimSpace(k.CriterionRed)
	if green == "" && yellow == "" && red == "" {
		return unscoreable("no criteria defined")
	}

	value := strings.TrimSpace(rawValue)
	// Green is matched first: if two criterion strings were configured
	// equal, the better grade wins.
	switch {
	case green != "" && value == green:
		return graded(GradeGreen)
	case yellow != "" && value == yellow:
		return graded(GradeYellow)
	case red != "" && value == red:
		return graded(GradeRed)
	}
	// An unmatched value is not a failure; it stays ungraded.
	return unscoreable("value does not match any criterion")
}

func classifyNumeric(k *KPI, rawValue string) Classification {
	value, ok := ParseNumeric(rawValue)
	if !ok {
		return unscoreable("non-numeric value")
	}
	if k.ThresholdGreen == nil || k.ThresholdYellow == nil {
		return unscoreable("no thresholds defined")
	}

	green := *k.ThresholdGreen
	yellow := *k.ThresholdYellow
	if k.Direction == DirectionLowerBetter {
		switch {
		case value <= green:
			return graded(GradeGreen)
		case value <= yellow:
			return graded(GradeYellow)
		default:
			return graded(GradeRed)
		}
	}
	switch {
	case value >= green:
		return graded(GradeGreen)
	case value >= yellow:
		return graded(GradeYellow)
	default:
		return graded(GradeRed)
	}
}

// ParseNumeric parses a captured numeric value, tolerating surrounding
// whitespace, a trailing percent sign and a comma decimal separator.
func ParseNumeric(raw string) (float64, bool) {
	value := strings.TrimSpace(raw)
	value = strings.TrimSuffix(value, "%")
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, ",", ".")
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func graded(grade string) Classification {
	return Classification{Grade: grade, Score: ScoreForGrade(grade)}
}

func unscoreable(reason string) Classification {
	return Classification{Grade: GradeNone, Reason: reason}
}
