package kpi

import (
	"errors"
	"testing"
)

func TestNormalizeWeightsParsesAndOrders(t *testing.T) {
	assignments, err := NormalizeWeights(7, map[int64]string{
		3: "40",
		1: "25,5",
		2: "34.5",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(assignments) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(assignments))
	}
	if assignments[0].KpiID != 1 || assignments[0].Weight != 25.5 {
		t.Fatalf("unexpected first assignment: %+v", assignments[0])
	}
	if assignments[2].PositionID != 7 {
		t.Fatalf("position id not carried: %+v", assignments[2])
	}
}

func TestNormalizeWeightsRejectsBadInput(t *testing.T) {
	if _, err := NormalizeWeights(1, map[int64]string{2: "abc"}); err == nil {
		t.Fatal("expected error for non-numeric weight")
	}
	if _, err := NormalizeWeights(1, map[int64]string{2: "120"}); err == nil {
		t.Fatal("expected error for out-of-range weight")
	}
	if _, err := NormalizeWeights(1, map[int64]string{0: "50"}); err == nil {
		t.Fatal("expected error for invalid kpi id")
	}
}

func TestValidateWeightSum(t *testing.T) {
	set := []Assignment{{KpiID: 1, Weight: 60}, {KpiID: 2, Weight: 40}}
	if err := ValidateWeightSum(set); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	set = []Assignment{{KpiID: 1, Weight: 60.005}, {KpiID: 2, Weight: 39.999}}
	if err := ValidateWeightSum(set); err != nil {
		t.Fatalf("expected tolerance to absorb rounding, got %v", err)
	}

	set = []Assignment{{KpiID: 1, Weight: 60}, {KpiID: 2, Weight: 30}}
	err := ValidateWeightSum(set)
	if !errors.Is(err, ErrWeightSum) {
		t.Fatalf("expected ErrWeightSum, got %v", err)
	}

	if err := ValidateWeightSum(nil); err != nil {
		t.Fatalf("empty set should pass, got %v", err)
	}
}
