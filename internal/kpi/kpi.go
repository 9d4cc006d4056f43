// Package kpi reduces a solver result to the per-run quality metrics.
package kpi

import (
	"math"

	"shiftplane/internal/solver"
	"shiftplane/internal/store"
)

// Aggregate computes the KPI of a solution.
//
// Night-rule violations and senior coverage are not derived from the solver
// output yet; they are reported as 0 and true.
func Aggregate(stats []solver.NurseStat, understaffed []solver.Understaffing) store.Kpi {
	k := store.Kpi{SeniorCoverageOK: true}

	if len(stats) > 0 {
		var sum float64
		for _, s := range stats {
			sum += float64(s.Satisfaction)
			k.OvertimeTotal += clamp(s.Overtime)
		}
		// Half away from zero.
		k.AvgSatisfaction = int(math.Round(sum / float64(len(stats))))
	}

	for _, u := range understaffed {
		k.UnderstaffTotal += clamp(u.Missing)
	}
	return k
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
