package virtio

// Device is the abstraction a Transport rides on: whatever sits on the
// other end of a virtqueue, whether that is a real PCI/MMIO virtio-9p
// device or, in this module's own tests, an in-process Loopback.
//
// Notify is the doorbell: it tells the device that new descriptor
// chains are waiting on the avail ring. Recv is the interrupt: it
// delivers a signal every time the device has placed one or more
// entries on the used ring, prompting the completion worker to drain
// them via Queue.DeliverAll. Close releases whatever the device holds.
type Device interface {
	Notify()
	Recv() <-chan struct{}
	Close() error
	// MountTag identifies which filesystem this device exposes, per
	// the VIRTIO_9P_F_MOUNT_TAG feature.
	MountTag() string
	// Queue returns the device's virtqueue. As with real virtio
	// devices, it is fixed for the device's lifetime, not allocated
	// per Transport bind.
	Queue() *Queue
}
