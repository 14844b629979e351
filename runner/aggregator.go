package runner

import (
	"github.com/polytest/polytest/types"
)

// FrameworkMixed is the aggregate framework label when no single framework
// holds a strict majority across the aggregated projects.
const FrameworkMixed = "mixed"

// Aggregator merges per-project results into one cross-project view.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Aggregate sums the summaries and concatenates the test cases of the given
// results, tagging each case with the project it came from. Results that
// carry no usable data (nil entries) are skipped. The aggregate framework is
// the strict majority framework of the inputs; with no strict majority the
// label is "mixed", including exact ties.
func (a *Aggregator) Aggregate(results []*types.UnifiedTestResults) *types.AggregatedResult {
	agg := &types.AggregatedResult{
		Framework:        FrameworkMixed,
		PerProjectStatus: make(map[string]string),
	}

	counts := make(map[types.TestFramework]int)
	total := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		total++
		counts[r.Framework.Framework]++

		agg.Summary.Merge(r.Summary)
		for _, c := range r.Tests {
			c.Project = r.ProjectPath
			agg.Tests = append(agg.Tests, c)
		}

		status := "passed"
		switch {
		case r.Error != "":
			status = "error"
		case r.Summary.Failed > 0 || r.Summary.Errored > 0:
			status = "failed"
		}
		agg.PerProjectStatus[r.ProjectPath] = status
	}

	for framework, n := range counts {
		if n*2 > total {
			agg.Framework = framework.String()
			break
		}
	}
	return agg
}
