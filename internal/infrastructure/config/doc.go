// Package config handles loading and validating pseudodevd configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (PSEUDODEV_*)
//   - Validation of required fields and the static device table
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token, JWT secret) should be
//     set via environment variables
//   - The config file should have restricted permissions (0600)
//   - A JWT secret is only required when the admin API is enabled
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reg := device.NewRegistry(cfg.Registry.MaxDevices, cfg.Registry.MaxCapacity)
package config
