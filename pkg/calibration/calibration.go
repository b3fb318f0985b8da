// Package calibration measures whether the agent's stated confidence predicts
// correctness. It pairs DecisionProposed confidences with OutcomeObserved
// verdicts, buckets them by decile, and computes win rate, calibration delta,
// P&L and the overall Brier score. Pure batch computation over a replayed
// ledger snapshot.
package calibration

import (
	"fmt"
	"math"
	"sort"
	"time"

	"spine/pkg/event"
	"spine/pkg/projection"
)

// Pair joins one decision's stated confidence with its observed outcome.
// Only decisions carrying a non-nil hypothesis_correct are paired; absence of
// the verdict is a distinct state from false.
type Pair struct {
	DecisionID string    `json:"decision_id"`
	Confidence float64   `json:"confidence"`
	Correct    bool      `json:"correct"`
	PnL        *float64  `json:"pnl,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Bucket aggregates the pairs whose confidence rounds to one decile.
type Bucket struct {
	Bucket        float64 `json:"bucket"`
	AvgConfidence float64 `json:"avg_confidence"`
	WinRate       float64 `json:"win_rate"`
	N             int     `json:"n"`
	Delta         float64 `json:"delta"`
	PnL           float64 `json:"pnl"`
}

// Report is the full calibration summary. BrierScore is nil when no pair
// exists. Inconsistencies surfaces anomalies encountered while pairing; they
// never abort the computation.
type Report struct {
	TotalDecisions  int       `json:"total_decisions"`
	TotalProposed   int       `json:"total_proposed"`
	TotalUnresolved int       `json:"total_unresolved"`
	Buckets         []Bucket  `json:"buckets"`
	BrierScore      *float64  `json:"brier_score,omitempty"`
	Inconsistencies []string  `json:"inconsistencies,omitempty"`
	ComputedAt      time.Time `json:"computed_at"`
}

// BucketFor assigns a confidence to its decile bucket: the nearest tenth,
// with .x5 halves rounding away from zero (math.Round), so 0.75 buckets to
// 0.8 and 0.05 to 0.1. Pinned here and by tests; changing the half rule
// changes bucket membership.
func BucketFor(confidence float64) float64 {
	return math.Round(confidence*10) / 10
}

// Compute replays events and produces the calibration report. Absent or
// malformed optional fields exclude a decision from the affected aggregate;
// nothing here is a fatal error.
func Compute(events []event.Event, now time.Time) Report {
	ledger := projection.Project(events)

	report := Report{ComputedAt: now}
	var pairs []Pair

	for _, d := range ledger.Decisions() {
		prop := d.Proposal()
		if prop == nil {
			continue
		}
		report.TotalProposed++

		for _, a := range d.Anomalies {
			report.Inconsistencies = append(report.Inconsistencies,
				fmt.Sprintf("%s: %s", d.ID, a))
		}

		out := d.Outcome()
		if out == nil || out.HypothesisCorrect == nil {
			continue
		}

		ts := d.Events[0].Timestamp
		pairs = append(pairs, Pair{
			DecisionID: d.ID,
			Confidence: prop.Confidence,
			Correct:    *out.HypothesisCorrect,
			PnL:        out.PnL,
			Timestamp:  ts,
		})
	}

	report.TotalDecisions = len(pairs)
	report.TotalUnresolved = report.TotalProposed - len(pairs)
	report.Buckets = bucketize(pairs)

	if len(pairs) > 0 {
		var sum float64
		for _, p := range pairs {
			outcome := 0.0
			if p.Correct {
				outcome = 1.0
			}
			diff := p.Confidence - outcome
			sum += diff * diff
		}
		brier := sum / float64(len(pairs))
		report.BrierScore = &brier
	}
	return report
}

// bucketize groups pairs into decile buckets and computes per-bucket stats.
// Buckets are returned in ascending order. Nil P&L contributes zero.
func bucketize(pairs []Pair) []Bucket {
	type acc struct {
		sumConf float64
		correct int
		total   int
		pnl     float64
	}
	accs := make(map[float64]*acc)
	for _, p := range pairs {
		key := BucketFor(p.Confidence)
		a, ok := accs[key]
		if !ok {
			a = &acc{}
			accs[key] = a
		}
		a.sumConf += p.Confidence
		a.total++
		if p.Correct {
			a.correct++
		}
		if p.PnL != nil {
			a.pnl += *p.PnL
		}
	}

	keys := make([]float64, 0, len(accs))
	for k := range accs {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	buckets := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		a := accs[k]
		avg := a.sumConf / float64(a.total)
		winRate := float64(a.correct) / float64(a.total)
		buckets = append(buckets, Bucket{
			Bucket:        k,
			AvgConfidence: avg,
			WinRate:       winRate,
			N:             a.total,
			Delta:         winRate - avg,
			PnL:           a.pnl,
		})
	}
	return buckets
}
