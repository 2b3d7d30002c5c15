// Package api implements the admin HTTP API and event stream of pseudodevd.
//
// This package provides:
//   - Read-only endpoints for the registry: devices, counters, audit trail
//   - Operator endpoints that probe and remove devices through the
//     probe controller, guarded by JWT bearer tokens
//   - A WebSocket hub relaying device.attached, device.detached and
//     device.probe_failed events
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// No endpoint reads or writes device buffers. Buffer I/O happens only
// through the device package's open/read/write/seek contract.
//
// Routes (all under /api/v1):
//
//	GET    /health             liveness and occupancy
//	GET    /devices            attached devices (?permission=ro|wo|rw)
//	GET    /devices/{handle}   one device with its I/O counters
//	GET    /stats              registry occupancy and counters
//	GET    /audit              probe/remove history (?action, identity, source, limit, offset)
//	POST   /devices            probe (operator)
//	DELETE /devices/{handle}   remove (operator)
//	GET    /ws                 event stream (token via ?token=)
//
// Usage:
//
//	server, err := api.New(deps)
//	controller.AddListener(server.Hub())
//	server.Start(ctx)
//	defer server.Close()
package api
