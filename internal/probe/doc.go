// Package probe implements device enumeration for the pseudo-device registry.
//
// A Controller attaches a device when it is probed and detaches it when it
// is removed, the way a bus driver reacts to hot-plug. Requests can come
// from the static table in config.yaml, from the MQTT probe bus, from the
// admin API, or from the descriptor catalogue at start-up.
//
//	config.yaml ─┐
//	MQTT bus  ───┼──► Controller ──► device.Registry
//	admin API ───┤        │
//	catalogue ───┘        └──► Listeners (audit, catalogue, bus status, websocket)
//
// Every request carries an Origin in its context naming the source and,
// where known, the actor. Listeners receive the origin with each Event.
//
// # Usage
//
//	controller := probe.NewController(registry)
//	controller.AddListener(probe.NewCatalogue(db.DB))
//
//	ctx = probe.ContextWithOrigin(ctx, probe.Origin{Source: probe.SourceConfig})
//	handles, err := controller.ProbeAll(ctx, cfg.Devices)
//
//	// module exit
//	defer controller.Shutdown(context.Background())
//
// # Bus Messages
//
// Probe request on {prefix}/bus/probe:
//
//	{"identity": "PLFDEV0000", "capacity": 512, "permission": "rw"}
//
// Remove request on {prefix}/bus/remove:
//
//	{"identity": "PLFDEV0000"}   or   {"handle": 3}
//
// Each attach and detach is published retained on
// {prefix}/device/{identity}/status; failures go to {prefix}/bus/error.
package probe
