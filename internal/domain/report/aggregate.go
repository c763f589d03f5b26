package report

import "kpitrack/internal/domain/kpi"

// Entry is one KPI line feeding the aggregation: the assigned weight
// plus whatever was captured for the period. Weight stays raw text so
// partially migrated assignment data degrades to a skipped entry
// instead of a zero contribution.
type Entry struct {
	KpiID   int64    `json:"kpiId"`
	KpiName string   `json:"kpiName"`
	Weight  string   `json:"weight"`
	Value   *string  `json:"value"`
	Grade   string   `json:"grade"`
	Score   *float64 `json:"score"`
}

// Skipped names an entry that contributed nothing to the total and why.
type Skipped struct {
	KpiID   int64  `json:"kpiId"`
	KpiName string `json:"kpiName"`
	Reason  string `json:"reason"`
}

type Aggregation struct {
	Total   float64   `json:"total"`
	Counted int       `json:"counted"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

// Aggregate folds per-KPI scores and weights into a single total. Each
// entry with a score and a parseable weight contributes
// score × weight/100; entries missing either are reported as skipped,
// never counted as zero. Weights are not required to sum to 100 here;
// that is enforced when assignment sets are saved.
func Aggregate(entries []Entry) Aggregation {
	var agg Aggregation
	for _, entry := range entries {
		if entry.Score == nil {
			agg.Skipped = append(agg.Skipped, Skipped{KpiID: entry.KpiID, KpiName: entry.KpiName, Reason: "no score"})
			continue
		}
		weight, ok := kpi.ParseNumeric(entry.Weight)
		if !ok {
			agg.Skipped = append(agg.Skipped, Skipped{KpiID: entry.KpiID, KpiName: entry.KpiName, Reason: "unparseable weight"})
			continue
		}
		agg.Total += *entry.Score * weight / 100
		agg.Counted++
	}
	return agg
}
