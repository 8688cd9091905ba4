package virtio

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Registry tracks the virtio-9p devices discovered on a host, keyed by
// their mount tag, and enforces that at most one Session binds a given
// device at a time — mirroring the ancestor's bind_client/unbind_client
// EBUSY behaviour.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*entry
}

type entry struct {
	device Device
	bound  bool
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*entry)}
}

// Register makes a device available for Bind under its own mount tag.
// Registering a tag that already exists replaces the prior entry unless
// it is currently bound.
func (r *Registry) Register(d Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tag := d.MountTag()
	if e, ok := r.devices[tag]; ok && e.bound {
		return fmt.Errorf("virtio: register %q: %w", tag, unix.EBUSY)
	}
	r.devices[tag] = &entry{device: d}
	return nil
}

// Bind claims the device registered under tag and wraps it in a fresh
// Transport. It fails with EBUSY if the device is already bound to
// another Transport, and ENODEV if no device carries that tag.
func (r *Registry) Bind(tag string) (*Transport, error) {
	r.mu.Lock()
	e, ok := r.devices[tag]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("virtio: bind %q: %w", tag, unix.ENODEV)
	}
	if e.bound {
		r.mu.Unlock()
		return nil, fmt.Errorf("virtio: bind %q: %w", tag, unix.EBUSY)
	}
	e.bound = true
	r.mu.Unlock()

	t := newTransport(e.device.Queue(), e.device, func() {
		r.mu.Lock()
		e.bound = false
		r.mu.Unlock()
	})
	return t, nil
}

// Tags lists the mount tags currently registered.
func (r *Registry) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	tags := make([]string, 0, len(r.devices))
	for tag := range r.devices {
		tags = append(tags, tag)
	}
	return tags
}
