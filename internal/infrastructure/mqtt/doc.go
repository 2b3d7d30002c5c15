// Package mqtt provides MQTT client connectivity for pseudodevd.
//
// The broker carries the probe bus: enumeration requests that attach and
// detach pseudo-devices, plus retained status topics that let other
// processes see which devices are live.
//
//	enumerator ──► {prefix}/bus/probe   ──► pseudodevd ──► {prefix}/device/{id}/status
//	enumerator ──► {prefix}/bus/remove  ──►            ──► {prefix}/bus/error
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and a payload size cap
//   - Subscriptions that survive a reconnect
//   - Last Will on {prefix}/system/status for offline detection
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS) when the broker is not on localhost
//   - Anyone who can publish to the bus topics can attach devices; restrict
//     them with broker ACLs
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().BusProbe(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(payload)
//	    })
package mqtt
