package coordinator

import "math"

const msPerMinute = 60000.0

// recordFetchSuccess folds one successful fetch into the run counters: the
// rolling response-time mean over n = urlsFetched samples and the fetch rate
// since startedAt.
func (s *RunState) recordFetchSuccess(now, responseTimeMs, contentSize int64) {
	s.Stats.URLsFetched++
	s.Stats.BytesDownloaded += contentSize

	n := float64(s.Stats.URLsFetched)
	s.Stats.AvgResponseTimeMs = (s.Stats.AvgResponseTimeMs*(n-1) + float64(responseTimeMs)) / n

	if s.StartedAt > 0 && now > s.StartedAt {
		elapsedMinutes := float64(now-s.StartedAt) / msPerMinute
		s.Stats.PagesPerMinute = float64(s.Stats.URLsFetched) / elapsedMinutes
	}
}

// recordFetchFailure folds one failed fetch into the run counters.
func (s *RunState) recordFetchFailure() {
	s.Stats.URLsFailed++
}

// recomputeProgress refreshes the operator-facing completion projection.
// estimatedSecondsRemaining is -1 while the fetch rate is unknown.
func (s *RunState) recomputeProgress(queueSize int) {
	processed := float64(s.Stats.URLsFetched + s.Stats.URLsFailed)
	queued := float64(s.Stats.URLsQueued)

	if queued < 1 {
		queued = 1
	}

	s.Progress.Percentage = int(math.Round(100 * processed / queued))

	if s.Stats.PagesPerMinute > 0 {
		s.Progress.EstimatedSecondsRemaining = int64(math.Round(60 * float64(queueSize) / s.Stats.PagesPerMinute))
	} else {
		s.Progress.EstimatedSecondsRemaining = -1
	}
}
