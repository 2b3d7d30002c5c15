package audit

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/pseudodev/internal/device"
	"github.com/nerrad567/pseudodev/internal/infrastructure/database"
	"github.com/nerrad567/pseudodev/internal/probe"
	_ "github.com/nerrad567/pseudodev/migrations" // registers the schema
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db.DB
}

func TestCreate_GeneratesIDAndTimestamp(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t))
	entry := &Entry{Action: ActionProbe, Identity: "PLFDEV0000", Handle: 0, Source: "bus"}

	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(entry.ID, "aud-") || len(entry.ID) != len("aud-")+8 {
		t.Errorf("ID = %q, want aud-xxxxxxxx", entry.ID)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestList_OrderAndPagination(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c", "d", "e"} {
		entry := &Entry{
			Action:    ActionProbe,
			Identity:  id,
			Handle:    i,
			Source:    "config",
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		}
		if err := repo.Create(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 5 || result.Limit != 2 || result.Offset != 1 {
		t.Errorf("List() meta = %d/%d/%d, want 5/2/1", result.Total, result.Limit, result.Offset)
	}
	if len(result.Entries) != 2 || result.Entries[0].Identity != "d" || result.Entries[1].Identity != "c" {
		t.Errorf("List() page = %+v, want [d c]", result.Entries)
	}
	if !result.Entries[0].CreatedAt.Equal(base.Add(3 * time.Millisecond)) {
		t.Errorf("CreatedAt = %v, want millisecond precision kept", result.Entries[0].CreatedAt)
	}
}

func TestList_SameTimestampNewestFirst(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t))
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	for _, action := range []string{ActionProbe, ActionRemove} {
		if err := repo.Create(ctx, &Entry{Action: action, Identity: "x", Source: "api", CreatedAt: at}); err != nil {
			t.Fatal(err)
		}
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Entries[0].Action != ActionRemove {
		t.Errorf("first entry = %s, want the later insert (remove)", result.Entries[0].Action)
	}
}

func TestList_Filters(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t))
	ctx := context.Background()

	seed := []Entry{
		{Action: ActionProbe, Identity: "a", Source: "config"},
		{Action: ActionProbe, Identity: "b", Source: "bus", Actor: "enum-1"},
		{Action: ActionRemove, Identity: "b", Source: "bus"},
		{Action: ActionProbeFailed, Identity: "c", Handle: -1, Source: "api", Details: map[string]any{"error": "full"}},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 4},
		{"by action", Filter{Action: ActionProbe}, 2},
		{"by identity", Filter{Identity: "b"}, 2},
		{"by source", Filter{Source: "api"}, 1},
		{"combined", Filter{Action: ActionRemove, Identity: "b", Source: "bus"}, 1},
		{"no match", Filter{Identity: "zzz"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.want || len(result.Entries) != tt.want {
				t.Errorf("List() total=%d len=%d, want %d", result.Total, len(result.Entries), tt.want)
			}
			if result.Entries == nil {
				t.Error("Entries = nil, want empty slice")
			}
		})
	}

	failed, err := repo.List(ctx, Filter{Action: ActionProbeFailed})
	if err != nil {
		t.Fatal(err)
	}
	if failed.Entries[0].Handle != -1 || failed.Entries[0].Details["error"] != "full" {
		t.Errorf("probe_failed entry = %+v", failed.Entries[0])
	}
}

func TestList_LimitClamp(t *testing.T) {
	repo := NewSQLiteRepository(openTestDB(t))

	tests := []struct {
		in, want int
	}{
		{0, defaultLimit},
		{-3, defaultLimit},
		{10, 10},
		{1000, maxLimit},
	}
	for _, tt := range tests {
		result, err := repo.List(context.Background(), Filter{Limit: tt.in, Offset: -1})
		if err != nil {
			t.Fatal(err)
		}
		if result.Limit != tt.want || result.Offset != 0 {
			t.Errorf("List(limit %d) limit/offset = %d/%d, want %d/0", tt.in, result.Limit, result.Offset, tt.want)
		}
	}
}

func TestEntryFromEvent(t *testing.T) {
	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	info := device.Info{Handle: 2, Identity: "PLFDEV0000", Capacity: 512, Permission: device.ReadWrite, Generation: 3}

	tests := []struct {
		name       string
		ev         probe.Event
		wantAction string
	}{
		{"attached", probe.Event{Type: probe.EventAttached, Info: info, Source: probe.SourceBus, Timestamp: at}, ActionProbe},
		{"detached", probe.Event{Type: probe.EventDetached, Info: info, Source: probe.SourceShutdown, Timestamp: at}, ActionRemove},
		{"failed", probe.Event{Type: probe.EventProbeFailed, Info: info, Source: probe.SourceAPI, Err: device.ErrCapacityExceeded, Timestamp: at}, ActionProbeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := EntryFromEvent(tt.ev)
			if entry == nil {
				t.Fatal("EntryFromEvent() = nil")
			}
			if entry.Action != tt.wantAction || entry.Identity != "PLFDEV0000" || entry.Handle != 2 {
				t.Errorf("entry = %+v", entry)
			}
			if entry.Source != string(tt.ev.Source) || !entry.CreatedAt.Equal(at) {
				t.Errorf("entry source/time = %s/%v", entry.Source, entry.CreatedAt)
			}
			if entry.Details["permission"] != "rw" || entry.Details["capacity"] != 512 {
				t.Errorf("details = %v", entry.Details)
			}
			_, hasErr := entry.Details["error"]
			if hasErr != (tt.ev.Err != nil) {
				t.Errorf("details error present = %v, want %v", hasErr, tt.ev.Err != nil)
			}
		})
	}

	if EntryFromEvent(probe.Event{Type: "device.unknown"}) != nil {
		t.Error("EntryFromEvent(unknown) != nil")
	}
}

// failingRepo rejects every insert.
type failingRepo struct{}

func (failingRepo) Create(context.Context, *Entry) error { return errors.New("disk full") }
func (failingRepo) List(context.Context, Filter) (*ListResult, error) {
	return &ListResult{}, nil
}

type countingLogger struct{ errors int }

func (l *countingLogger) Error(string, ...any) { l.errors++ }

func TestRecorder_WithController(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteRepository(db)

	controller := probe.NewController(device.NewRegistry(1, 0))
	controller.AddListener(NewRecorder(repo))

	ctx := probe.ContextWithOrigin(context.Background(), probe.Origin{Source: probe.SourceAPI, Actor: "admin"})
	d := device.Descriptor{Identity: "dev", Capacity: 8, Permission: device.ReadOnly}

	h, err := controller.Probe(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := controller.Probe(ctx, device.Descriptor{Identity: "other", Capacity: 8, Permission: device.ReadOnly}); err == nil {
		t.Fatal("second Probe() into a one-slot registry succeeded")
	}
	if err := controller.Remove(ctx, h); err != nil {
		t.Fatal(err)
	}

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 3 {
		t.Fatalf("Total = %d, want 3", result.Total)
	}
	got := []string{result.Entries[2].Action, result.Entries[1].Action, result.Entries[0].Action}
	want := []string{ActionProbe, ActionProbeFailed, ActionRemove}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("actions = %v, want %v", got, want)
			break
		}
	}
	if result.Entries[0].Actor != "admin" || result.Entries[0].Source != "api" {
		t.Errorf("remove entry = %+v, want actor admin from api", result.Entries[0])
	}
}

func TestRecorder_LogsFailures(t *testing.T) {
	logger := &countingLogger{}
	rec := NewRecorder(failingRepo{})
	rec.SetLogger(logger)

	rec.HandleEvent(context.Background(), probe.Event{Type: probe.EventAttached, Info: device.Info{Identity: "x"}})
	if logger.errors != 1 {
		t.Errorf("logged errors = %d, want 1", logger.errors)
	}
}
