package probe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/pseudodev/internal/device"
)

// timestampFormat is fixed width so TEXT columns sort chronologically.
const timestampFormat = "2006-01-02T15:04:05.000000000Z"

// CatalogueEntry is one persisted descriptor.
type CatalogueEntry struct {
	Descriptor device.Descriptor `json:"descriptor"`
	Source     Source            `json:"source"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Catalogue persists descriptors of devices probed at runtime (bus or
// API) so they can be re-probed after a restart. Device contents are
// never stored; a restored device starts zero-filled.
//
// As a Listener it saves on attach and deletes on detach, for persistent
// sources only.
type Catalogue struct {
	db     *sql.DB
	logger Logger
	now    func() time.Time
}

// NewCatalogue creates a catalogue backed by the device_descriptors table.
func NewCatalogue(db *sql.DB) *Catalogue {
	return &Catalogue{
		db:     db,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the catalogue.
func (c *Catalogue) SetLogger(logger Logger) {
	c.logger = logger
}

// Save inserts or replaces the descriptor for d.Identity.
// The original created_at is kept on replace.
func (c *Catalogue) Save(ctx context.Context, d device.Descriptor, source Source) error {
	now := c.now().UTC().Format(timestampFormat)
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO device_descriptors (identity, capacity, permission, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			capacity = excluded.capacity,
			permission = excluded.permission,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		d.Identity, d.Capacity, int(d.Permission), string(source), now, now,
	)
	if err != nil {
		return fmt.Errorf("saving descriptor %s: %w", d.Identity, err)
	}
	return nil
}

// Delete removes the descriptor for identity.
// Returns ErrNotCatalogued if it was not stored.
func (c *Catalogue) Delete(ctx context.Context, identity string) error {
	result, err := c.db.ExecContext(ctx, "DELETE FROM device_descriptors WHERE identity = ?", identity)
	if err != nil {
		return fmt.Errorf("deleting descriptor %s: %w", identity, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotCatalogued, identity)
	}
	return nil
}

// Get returns the stored descriptor for identity.
func (c *Catalogue) Get(ctx context.Context, identity string) (*CatalogueEntry, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT identity, capacity, permission, source, created_at, updated_at
		FROM device_descriptors WHERE identity = ?`, identity)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotCatalogued, identity)
	}
	return entry, err
}

// List returns every stored descriptor, oldest first.
func (c *Catalogue) List(ctx context.Context) ([]CatalogueEntry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT identity, capacity, permission, source, created_at, updated_at
		FROM device_descriptors ORDER BY created_at, identity`)
	if err != nil {
		return nil, fmt.Errorf("querying descriptors: %w", err)
	}
	defer rows.Close()

	entries := []CatalogueEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating descriptors: %w", err)
	}
	return entries, nil
}

// Restore re-probes every catalogued descriptor through controller.
//
// Identities that are already bound (for example because the config file
// now lists them) are skipped. Other failures are joined; the entry stays
// in the catalogue so a later restart can try again.
func (c *Catalogue) Restore(ctx context.Context, controller *Controller) (int, error) {
	entries, err := c.List(ctx)
	if err != nil {
		return 0, err
	}

	ctx = ContextWithOrigin(ctx, Origin{Source: SourceCatalogue})

	restored := 0
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		_, err := controller.Probe(ctx, entry.Descriptor)
		switch {
		case err == nil:
			restored++
		case errors.Is(err, ErrAlreadyBound):
			c.logger.Debug("catalogued device already bound", "identity", entry.Descriptor.Identity)
		default:
			errs = append(errs, fmt.Errorf("restoring %q: %w", entry.Descriptor.Identity, err))
		}
	}
	return restored, errors.Join(errs...)
}

// HandleEvent keeps the catalogue in step with runtime probes and removes.
func (c *Catalogue) HandleEvent(ctx context.Context, ev Event) {
	if !ev.Source.Persistent() {
		return
	}

	var err error
	switch ev.Type {
	case EventAttached:
		err = c.Save(ctx, ev.Info.Descriptor(), ev.Source)
	case EventDetached:
		err = c.Delete(ctx, ev.Info.Identity)
		if errors.Is(err, ErrNotCatalogued) {
			err = nil
		}
	default:
		return
	}

	if err != nil {
		c.logger.Error("catalogue update failed",
			"event", string(ev.Type),
			"identity", ev.Info.Identity,
			"error", err,
		)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*CatalogueEntry, error) {
	var (
		entry                CatalogueEntry
		permission           int
		source               string
		createdAt, updatedAt string
	)
	if err := row.Scan(&entry.Descriptor.Identity, &entry.Descriptor.Capacity, &permission,
		&source, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning descriptor: %w", err)
	}

	entry.Descriptor.Permission = device.Permission(permission) //nolint:gosec // CHECK constraint limits to 1..3
	entry.Source = Source(source)

	var err error
	if entry.CreatedAt, err = time.Parse(timestampFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	if entry.UpdatedAt, err = time.Parse(timestampFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at %q: %w", updatedAt, err)
	}
	return &entry, nil
}
