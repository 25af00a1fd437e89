package mesh

import "sync"

// Hub is an in-process broadcast medium: every frame sent through one port
// is delivered synchronously to every other online port. It stands in for
// the radio in tests and in single-machine demos.
type Hub struct {
	mu    sync.Mutex
	ports map[string]*Port
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{ports: make(map[string]*Port)}
}

// Join adds a named port to the hub. Joining twice replaces the old port.
func (h *Hub) Join(name string) *Port {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := &Port{hub: h, name: name, online: true}
	h.ports[name] = p
	return p
}

// SetOnline flips a port's reachability, simulating a device wandering out
// of radio range. Offline ports neither send nor receive.
func (h *Hub) SetOnline(name string, online bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.ports[name]; ok {
		p.mu.Lock()
		p.online = online
		p.mu.Unlock()
	}
}

func (h *Hub) fanOut(from string, frame []byte) {
	h.mu.Lock()
	targets := make([]*Port, 0, len(h.ports))
	for name, p := range h.ports {
		if name == from {
			continue
		}
		targets = append(targets, p)
	}
	h.mu.Unlock()

	for _, p := range targets {
		p.deliver(frame)
	}
}

// Port is one device's attachment to the hub.
type Port struct {
	hub     *Hub
	name    string
	mu      sync.Mutex
	online  bool
	handler func([]byte)
}

var _ Adapter = (*Port)(nil)

// Send broadcasts a frame to every other online port. Frames sent while
// offline vanish, like radio transmissions from a canyon.
func (p *Port) Send(frame []byte) error {
	p.mu.Lock()
	online := p.online
	p.mu.Unlock()
	if !online {
		return nil
	}
	p.hub.fanOut(p.name, frame)
	return nil
}

// OnReceive registers the inbound handler.
func (p *Port) OnReceive(handler func(frame []byte)) {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()
}

func (p *Port) deliver(frame []byte) {
	p.mu.Lock()
	handler := p.handler
	online := p.online
	p.mu.Unlock()
	if handler == nil || !online {
		return
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)
	handler(buf)
}
