package kpi

import "time"

const (
	ScoreTypePercent   = "PERCENT"
	ScoreTypeNumber    = "NUMBER"
	ScoreTypeCriterion = "CRITERION"
)

const (
	DirectionHigherBetter = "HIGHER_BETTER"
	DirectionLowerBetter  = "LOWER_BETTER"
)

const (
	GradeRed    = "red"
	GradeYellow = "yellow"
	GradeGreen  = "green"
	GradeNone   = "none"
)

// Fixed grade-to-score mapping. Weighted aggregation and manual grade
// overrides both depend on these exact values.
const (
	ScoreRed    = 40.0
	ScoreYellow = 70.0
	ScoreGreen  = 100.0
)

type KPI struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Target          string    `json:"target"`
	Unit            string    `json:"unit"`
	DepartmentID    int64     `json:"departmentId"`
	ScoreType       string    `json:"scoreType"`
	Direction       string    `json:"direction,omitempty"`
	ThresholdYellow *float64  `json:"thresholdYellow,omitempty"`
	ThresholdGreen  *float64  `json:"thresholdGreen,omitempty"`
	CriterionRed    string    `json:"criterionRed,omitempty"`
	CriterionYellow string    `json:"criterionYellow,omitempty"`
	CriterionGreen  string    `json:"criterionGreen,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

type Assignment struct {
	ID         int64   `json:"id"`
	PositionID int64   `json:"positionId"`
	KpiID      int64   `json:"kpiId"`
	KpiName    string  `json:"kpiName,omitempty"`
	Weight     float64 `json:"weight"`
}

// ScoreForGrade returns the numeric score for a grade, or nil for
// "none" and unknown grades.
func ScoreForGrade(grade string) *float64 {
	switch grade {
	case GradeRed:
		return ptr(ScoreRed)
	case GradeYellow:
		return ptr(ScoreYellow)
	case GradeGreen:
		return ptr(ScoreGreen)
	default:
		return nil
	}
}

func ValidGrade(grade string) bool {
	switch grade {
	case GradeRed, GradeYellow, GradeGreen, GradeNone:
		return true
	}
	return false
}

// Normalize nulls out whichever configuration branch the score type does
// not use, so a KPI never carries both thresholds and criterion strings.
func Normalize(k *KPI) {
	if k == nil {
		return
	}
	if k.ScoreType == ScoreTypeCriterion {
		k.Direction = ""
		k.ThresholdYellow = nil
		k.ThresholdGreen = nil
		return
	}
	k.CriterionRed = ""
	k.CriterionYellow = ""
	k.CriterionGreen = ""
}

func ValidScoreType(scoreType string) bool {
	switch scoreType {
	case ScoreTypePercent, ScoreTypeNumber, ScoreTypeCriterion:
		return true
	}
	return false
}

func ValidDirection(direction string) bool {
	return direction == DirectionHigherBetter || direction == DirectionLowerBetter
}

func ptr(v float64) *float64 {
	return &v
}
