// Package database provides SQLite connectivity for pseudodevd.
//
// The database stores the descriptor catalogue (devices probed over the bus
// or the admin API, re-probed at start-up) and the audit trail. Device
// buffers are volatile and are never written here.
//
// This package manages:
//   - Connection setup with WAL mode, busy timeout and foreign keys
//   - Schema migrations embedded in the binary (see the migrations package)
//   - Lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: each file has an .up.sql and, where possible,
// a .down.sql counterpart.
package database
