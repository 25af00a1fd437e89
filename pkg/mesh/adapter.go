// Package mesh moves frames between devices. The radio network is a
// lossy broadcast medium: frames arrive duplicated, reordered, or not at
// all. Everything above the Adapter relies on event immutability, dedup
// and digests instead of transport guarantees.
package mesh

// Adapter is the transport boundary. Send broadcasts one frame to whoever
// is in range and OnReceive registers the single inbound handler. Adapters
// never retry, order, or interpret frames.
type Adapter interface {
	Send(frame []byte) error
	OnReceive(handler func(frame []byte))
}
