package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(budgetBlocks, stageResults, itemOutcomes, runsTotal, runsActive)
}

var (
	budgetBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budget_blocks_total",
			Help: "Reservations or routes refused because of the run/task budget.",
		},
		[]string{"task", "where"}, // where: 'route', 'reserve'
	)

	stageResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_results_total",
			Help: "Pipeline stage results by stage and status (done, skipped, absent, failed).",
		},
		[]string{"stage", "status"},
	)

	itemOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_item_outcomes_total",
			Help: "Terminal item outcomes.",
		},
		[]string{"outcome", "error_kind"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runs_total",
			Help: "Finished runs, labeled by whether they were cancelled.",
		},
		[]string{"cancelled"},
	)

	runsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "runs_active",
		Help: "Runs currently executing.",
	})
)

func BudgetBlocked(task, where string) {
	budgetBlocks.WithLabelValues(norm(task), norm(where)).Inc()
}

func ObserveStage(stage, status string) {
	stageResults.WithLabelValues(norm(stage), norm(status)).Inc()
}

func ObserveItemOutcome(outcome, errorKind string) {
	itemOutcomes.WithLabelValues(norm(outcome), norm(errorKind)).Inc()
}

func RunStarted() { runsActive.Inc() }

func RunFinished(cancelled bool) {
	runsActive.Dec()
	if cancelled {
		runsTotal.WithLabelValues("true").Inc()
		return
	}
	runsTotal.WithLabelValues("false").Inc()
}
