package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePoint writes a single point stamped with the current time.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Failures surface through the SetOnError callback. Dropped silently when
// the client is closed.
//
// Example:
//
//	client.WritePoint("device_io",
//	    map[string]string{"identity": "PLFDEV0000", "permission": "rw"},
//	    map[string]interface{}{"reads": int64(12), "bytes_read": int64(4096)})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
