package history

import (
	"context"
	"log/slog"
	"time"

	"weather-insight/models"
)

// Recorder persists every terminal snapshot it is handed. Register Listen with
// the orchestrator controller.
type Recorder struct {
	repo    *Repo
	logger  *slog.Logger
	timeout time.Duration
}

func NewRecorder(repo *Repo, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, logger: logger, timeout: 5 * time.Second}
}

// Listen records snap if the cycle has finished. Loading and Idle snapshots are ignored.
func (r *Recorder) Listen(snap models.Snapshot) {
	if !snap.State.Phase.Terminal() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.repo.Record(ctx, snap); err != nil {
		r.logger.Error("failed to record query cycle", "query_id", snap.QueryID, "error", err)
		return
	}
	r.logger.Debug("query cycle recorded", "query_id", snap.QueryID, "phase", snap.State.Phase)
}
