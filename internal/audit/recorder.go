package audit

import (
	"context"

	"github.com/nerrad567/pseudodev/internal/probe"
)

// Logger is the logging interface used by the Recorder.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

// Recorder writes one audit entry per controller event.
// It implements probe.Listener.
type Recorder struct {
	repo   Repository
	logger Logger
}

var _ probe.Listener = (*Recorder)(nil)

// NewRecorder creates a recorder that writes to repo.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, logger: noopLogger{}}
}

// SetLogger sets the logger used for failed inserts.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// HandleEvent records ev. Insert failures are logged, never returned:
// the probe or remove has already happened.
func (r *Recorder) HandleEvent(ctx context.Context, ev probe.Event) {
	entry := EntryFromEvent(ev)
	if entry == nil {
		return
	}
	if err := r.repo.Create(ctx, entry); err != nil {
		r.logger.Error("failed to record audit entry",
			"action", entry.Action,
			"identity", entry.Identity,
			"error", err,
		)
	}
}

// EntryFromEvent maps a controller event to an audit entry.
// Returns nil for event types that are not audited.
func EntryFromEvent(ev probe.Event) *Entry {
	var action string
	switch ev.Type {
	case probe.EventAttached:
		action = ActionProbe
	case probe.EventDetached:
		action = ActionRemove
	case probe.EventProbeFailed:
		action = ActionProbeFailed
	default:
		return nil
	}

	details := map[string]any{
		"capacity":   ev.Info.Capacity,
		"permission": ev.Info.Permission.String(),
	}
	if ev.Info.Generation != 0 {
		details["generation"] = ev.Info.Generation
	}
	if ev.Err != nil {
		details["error"] = ev.Err.Error()
	}

	return &Entry{
		Action:    action,
		Identity:  ev.Info.Identity,
		Handle:    int(ev.Info.Handle),
		Source:    string(ev.Source),
		Actor:     ev.Actor,
		Details:   details,
		CreatedAt: ev.Timestamp,
	}
}
