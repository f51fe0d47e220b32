package publish

import (
	"context"
	"log/slog"
	"slices"

	"github.com/dgallion1/threadpost/internal/mastodon"
)

// Deleter removes a published status.
type Deleter interface {
	DeleteStatus(ctx context.Context, id string) error
}

// statusGetter is implemented by deleters that can look a status up. A
// delete that errors after the platform applied it, such as one that
// times out on the response, is then confirmed instead of reported.
type statusGetter interface {
	GetStatus(ctx context.Context, id string) (*mastodon.Status, error)
}

// Guard records the statuses created during one run and deletes them
// when the run ends without being disarmed. It is owned by a single run
// and is not safe for concurrent use.
type Guard struct {
	deleter  Deleter
	log      *slog.Logger
	ids      []string
	armed    bool
	released bool
}

// RollbackReport lists what a release deleted and what it could not.
type RollbackReport struct {
	Deleted []string
	Failed  []string
}

// NewGuard returns an armed guard with nothing recorded.
func NewGuard(d Deleter, log *slog.Logger) *Guard {
	return &Guard{deleter: d, log: log, armed: true}
}

// Add records a status created by this run.
func (g *Guard) Add(id string) {
	g.ids = append(g.ids, id)
}

// IDs returns the recorded ids in creation order.
func (g *Guard) IDs() []string {
	return slices.Clone(g.ids)
}

// Disarm keeps the recorded statuses; Release becomes a no-op.
func (g *Guard) Disarm() {
	g.armed = false
}

func (g *Guard) Armed() bool {
	return g.armed
}

// Release deletes every recorded status if the guard is still armed,
// newest first so replies go before the posts they answer. Failures are
// logged and reported, never returned, and do not stop the remaining
// deletions. Cancellation of ctx is ignored so an interrupted run still
// cleans up. Only the first call has any effect.
func (g *Guard) Release(ctx context.Context) RollbackReport {
	var report RollbackReport
	if !g.armed || g.released {
		return report
	}
	g.released = true
	if len(g.ids) == 0 {
		return report
	}

	ctx = context.WithoutCancel(ctx)
	g.log.Warn("rolling back partial thread", "posts", len(g.ids))
	for i := len(g.ids) - 1; i >= 0; i-- {
		id := g.ids[i]
		if err := g.deleter.DeleteStatus(ctx, id); err != nil && !g.gone(ctx, id) {
			g.log.Warn("rollback delete failed", "id", id, "error", err)
			report.Failed = append(report.Failed, id)
			continue
		}
		g.log.Info("post deleted", "id", id)
		report.Deleted = append(report.Deleted, id)
	}
	if len(report.Failed) > 0 {
		g.log.Warn("rollback incomplete", "deleted", len(report.Deleted), "orphaned", report.Failed)
	}
	return report
}

// gone reports whether id is confirmed absent from the platform.
func (g *Guard) gone(ctx context.Context, id string) bool {
	getter, ok := g.deleter.(statusGetter)
	if !ok {
		return false
	}
	st, err := getter.GetStatus(ctx, id)
	return err == nil && st == nil
}
