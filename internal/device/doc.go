// Package device provides the in-memory pseudo-device registry.
//
// A Registry holds a fixed number of slots. Each occupied slot is a device:
// a zero-filled byte buffer of fixed capacity with an access permission
// (read-only, write-only or read-write) and an opaque identity label.
// Devices are attached and detached at runtime, usually by the probe
// controller, and callers reach them through the FileOperations contract.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                            Registry                              │
//	│   table lock (attach / detach / list)                            │
//	│                                                                  │
//	│   ┌────────┐ ┌────────┐ ┌────────┐ ┌────────┐ ┌────────┐         │
//	│   │ slot 0 │ │ slot 1 │ │ slot 2 │ │ slot 3 │ │ slot 4 │  ...    │
//	│   │ RWMutex│ │ RWMutex│ │ (free) │ │ RWMutex│ │ (free) │         │
//	│   │ gen 3  │ │ gen 1  │ │ gen 2  │ │ gen 1  │ │ gen 0  │         │
//	│   └───▲────┘ └───▲────┘ └────────┘ └───▲────┘ └────────┘         │
//	└───────│──────────│───────────────────────│───────────────────────┘
//	        │          │                       │
//	    Session     Session                 Session
//	   (cursor,    (cursor,                (cursor,
//	    mode, gen)  mode, gen)              mode, gen)
//
// # Key Types
//
//   - Registry: slot table, attach/detach, lookup and the FileOperations contract
//   - Session: cursor and access intent bound to one slot generation
//   - Descriptor: identity, capacity and permission needed to attach a device
//   - Info: copy of an occupied slot's metadata
//
// # Usage
//
//	reg := device.NewRegistry(5, 0)
//	h, err := reg.Attach(device.Descriptor{
//	    Identity:   "PLFDEV0000",
//	    Capacity:   512,
//	    Permission: device.ReadWrite,
//	})
//	if err != nil {
//	    return err
//	}
//
//	s, err := reg.Open(h, device.ModeReadWrite)
//	if err != nil {
//	    return err
//	}
//	defer reg.Release(s)
//
//	n, err := reg.Write(s, []byte("hello"))
//	_, err = reg.Seek(s, 0, device.SeekStart)
//	n, err = reg.Read(s, buf)
//
// # Thread Safety
//
// Every slot has its own RWMutex. Reads and seeks take the read lock,
// writes take the write lock, each for a single call. Detach takes the
// table lock and then the slot write lock, so it waits for in-flight I/O
// and no call can ever see a released buffer. Sessions capture the slot
// generation at open; a mismatch means the device they were opened on is
// gone and yields ErrDeviceGone.
package device
