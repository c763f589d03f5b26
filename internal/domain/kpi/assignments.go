package kpi

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

const weightSumTolerance = 0.01

var ErrWeightSum = errors.New("assignment weights must sum to 100")

// NormalizeWeights converts the boundary payload (KPI id to weight
// string) into an ordered assignment set, parsing each weight with the
// same tolerance as captured values.
func NormalizeWeights(positionID int64, weights map[int64]string) ([]Assignment, error) {
	out := make([]Assignment, 0, len(weights))
	for kpiID, raw := range weights {
		if kpiID <= 0 {
			return nil, fmt.Errorf("invalid kpi id %d", kpiID)
		}
		weight, ok := ParseNumeric(raw)
		if !ok {
			return nil, fmt.Errorf("kpi %d: weight %q is not numeric", kpiID, raw)
		}
		if weight < 0 || weight > 100 {
			return nil, fmt.Errorf("kpi %d: weight %.2f out of range", kpiID, weight)
		}
		out = append(out, Assignment{PositionID: positionID, KpiID: kpiID, Weight: weight})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KpiID < out[j].KpiID })
	return out, nil
}

// ValidateWeightSum enforces the per-position invariant that assigned
// weights total 100, within a small tolerance for decimal weights.
func ValidateWeightSum(assignments []Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	var sum float64
	for _, a := range assignments {
		sum += a.Weight
	}
	if math.Abs(sum-100) > weightSumTolerance {
		return fmt.Errorf("%w: got %.2f", ErrWeightSum, sum)
	}
	return nil
}
