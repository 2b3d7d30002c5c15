// Package influxdb provides InfluxDB connectivity for pseudodevd.
//
// It wraps the official influxdb-client-go v2 library. The telemetry
// reporter uses it to store periodic samples of per-device I/O counters
// and registry occupancy.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoint("registry",
//	    map[string]string{"host": host},
//	    map[string]interface{}{"attached": int64(3), "size": int64(5)})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; asynchronous write
// errors are delivered to the SetOnError callback.
package influxdb
