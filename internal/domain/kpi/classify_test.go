package kpi

import "testing"

func numericKPI(direction string, yellow, green float64) *KPI {
	return &KPI{
		ScoreType:       ScoreTypeNumber,
		Direction:       direction,
		ThresholdYellow: &yellow,
		ThresholdGreen:  &green,
	}
}

func TestClassifyHigherBetterBoundaries(t *testing.T) {
	k := numericKPI(DirectionHigherBetter, 80, 95)

	result := Classify(k, "95")
	if result.Grade != GradeGreen {
		t.Fatalf("expected green at green threshold, got %s", result.Grade)
	}
	if result.Score == nil || *result.Score != ScoreGreen {
		t.Fatalf("expected score 100, got %v", result.Score)
	}

	result = Classify(k, "94.99")
	if result.Grade != GradeYellow {
		t.Fatalf("expected yellow just below green threshold, got %s", result.Grade)
	}

	result = Classify(k, "80")
	if result.Grade != GradeYellow {
		t.Fatalf("expected yellow at yellow threshold, got %s", result.Grade)
	}

	result = Classify(k, "79.99")
	if result.Grade != GradeRed {
		t.Fatalf("expected red below yellow threshold, got %s", result.Grade)
	}
	if result.Score == nil || *result.Score != ScoreRed {
		t.Fatalf("expected score 40, got %v", result.Score)
	}
}

func TestClassifyLowerBetterReversesInequality(t *testing.T) {
	k := numericKPI(DirectionLowerBetter, 10, 5)

	if result := Classify(k, "5"); result.Grade != GradeGreen {
		t.Fatalf("expected green at green threshold, got %s", result.Grade)
	}
	if result := Classify(k, "5.01"); result.Grade != GradeYellow {
		t.Fatalf("expected yellow just above green threshold, got %s", result.Grade)
	}
	if result := Classify(k, "10"); result.Grade != GradeYellow {
		t.Fatalf("expected yellow at yellow threshold, got %s", result.Grade)
	}
	if result := Classify(k, "10.5"); result.Grade != GradeRed {
		t.Fatalf("expected red above yellow threshold, got %s", result.Grade)
	}
}

func TestClassifyToleratesPercentAndComma(t *testing.T) {
	k := numericKPI(DirectionHigherBetter, 80, 95)
	k.ScoreType = ScoreTypePercent

	if result := Classify(k, " 96,5% "); result.Grade != GradeGreen {
		t.Fatalf("expected green for '96,5%%', got %s (%s)", result.Grade, result.Reason)
	}
}

func TestClassifyNonNumericValue(t *testing.T) {
	k := numericKPI(DirectionHigherBetter, 80, 95)

	result := Classify(k, "n/a")
	if result.Grade != GradeNone || result.Reason != "non-numeric value" {
		t.Fatalf("unexpected classification: %+v", result)
	}
	if result.Score != nil {
		t.Fatalf("expected nil score, got %v", *result.Score)
	}
}

func TestClassifyMissingThresholds(t *testing.T) {
	k := &KPI{ScoreType: ScoreTypeNumber, Direction: DirectionHigherBetter}

	result := Classify(k, "50")
	if result.Grade != GradeNone || result.Reason != "no thresholds defined" {
		t.Fatalf("unexpected classification: %+v", result)
	}
}

func TestClassifyCriterionPriorityAndTrim(t *testing.T) {
	k := &KPI{
		ScoreType:       ScoreTypeCriterion,
		CriterionGreen:  "done",
		CriterionYellow: "partial",
		CriterionRed:    "missed",
	}

	if result := Classify(k, "  done "); result.Grade != GradeGreen {
		t.Fatalf("expected green after trim, got %s", result.Grade)
	}
	if result := Classify(k, "partial"); result.Grade != GradeYellow {
		t.Fatalf("expected yellow, got %s", result.Grade)
	}
	if result := Classify(k, "missed"); result.Grade != GradeRed {
		t.Fatalf("expected red, got %s", result.Grade)
	}

	// Case-sensitive matching.
	result := Classify(k, "Done")
	if result.Grade != GradeNone || result.Reason != "value does not match any criterion" {
		t.Fatalf("unexpected classification for case mismatch: %+v", result)
	}
}

func TestClassifyCriterionGreenWinsOnDuplicateConfig(t *testing.T) {
	k := &KPI{
		ScoreType:      ScoreTypeCriterion,
		CriterionGreen: "ok",
		CriterionRed:   "ok",
	}

	if result := Classify(k, "ok"); result.Grade != GradeGreen {
		t.Fatalf("expected green to win over red, got %s", result.Grade)
	}
}

func TestClassifyCriterionUnconfigured(t *testing.T) {
	k := &KPI{ScoreType: ScoreTypeCriterion}

	result := Classify(k, "anything")
	if result.Grade != GradeNone || result.Reason != "no criteria defined" {
		t.Fatalf("unexpected classification: %+v", result)
	}
}

func TestClassifyInvalidKPI(t *testing.T) {
	if result := Classify(nil, "1"); result.Grade != GradeNone || result.Reason != "invalid KPI" {
		t.Fatalf("unexpected classification for nil KPI: %+v", result)
	}
	if result := Classify(&KPI{ScoreType: "BOGUS"}, "1"); result.Reason != "invalid KPI" {
		t.Fatalf("unexpected classification for bad score type: %+v", result)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	k := numericKPI(DirectionHigherBetter, 80, 95)
	first := Classify(k, "83")
	second := Classify(k, "83")
	if first.Grade != second.Grade || first.Reason != second.Reason {
		t.Fatalf("classification not stable: %+v vs %+v", first, second)
	}
}

func TestNormalizeClearsUnusedBranch(t *testing.T) {
	yellow, green := 10.0, 20.0
	k := &KPI{
		ScoreType:       ScoreTypeCriterion,
		Direction:       DirectionHigherBetter,
		ThresholdYellow: &yellow,
		ThresholdGreen:  &green,
		CriterionGreen:  "ok",
	}
	Normalize(k)
	if k.ThresholdYellow != nil || k.ThresholdGreen != nil || k.Direction != "" {
		t.Fatalf("expected numeric branch cleared: %+v", k)
	}

	k = &KPI{ScoreType: ScoreTypeNumber, CriterionGreen: "ok", CriterionRed: "bad"}
	Normalize(k)
	if k.CriterionGreen != "" || k.CriterionRed != "" {
		t.Fatalf("expected criterion branch cleared: %+v", k)
	}
}

func TestScoreForGrade(t *testing.T) {
	if score := ScoreForGrade(GradeYellow); score == nil || *score != ScoreYellow {
		t.Fatalf("expected 70 for yellow, got %v", score)
	}
	if score := ScoreForGrade(GradeNone); score != nil {
		t.Fatalf("expected nil score for none, got %v", *score)
	}
}
