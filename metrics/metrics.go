package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/movefuzz/fuzz-acceptor/types"
)

const (
	MetricsNamespace = "fuzzharness"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	casesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "cases_total",
		Help:      "Count of executed fuzz cases",
	}, []string{
		"run_id",
		"name",
		"function",
		"result",
	})

	violationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "violations_total",
		Help:      "Count of fuzz cases that observed a violation",
	}, []string{
		"run_id",
		"name",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of integration test runs",
	}, []string{
		"run_id",
		"result",
	})

	runCaseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_case_total",
		Help:      "Total number of cases in a run",
	}, []string{
		"run_id",
	})

	runCasePassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_case_passed",
		Help:      "Number of passed cases in a run",
	}, []string{
		"run_id",
	})

	runCaseFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_case_failed",
		Help:      "Number of failed cases in a run",
	}, []string{
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration",
		Help:      "Duration of integration test runs in seconds",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordCase records the outcome of one fuzz case.
func RecordCase(runID string, result *types.TestResult) {
	if Debug {
		log.Debug("metric inc",
			"m", "cases_total",
			"run_id", runID,
			"case", result.Name,
			"function", result.Function,
			"result", result.Status())
	}
	casesTotal.WithLabelValues(runID, result.Name, result.Function, string(result.Status())).Inc()
	if result.ViolationFound {
		violationsTotal.WithLabelValues(runID, result.Name).Inc()
	}
}

// RecordRun records the aggregate outcome of a full test run.
func RecordRun(
	runID string,
	allPassed bool,
	total int,
	passed int,
	failed int,
	duration time.Duration,
) {
	result := "pass"
	if !allPassed {
		result = "fail"
	}
	runResults.WithLabelValues(runID, result).Set(1)
	runCaseTotal.WithLabelValues(runID).Add(float64(total))
	runCasePassed.WithLabelValues(runID).Add(float64(passed))
	runCaseFailed.WithLabelValues(runID).Add(float64(failed))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}
