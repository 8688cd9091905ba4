package virtio

import "bytes"

// Handler answers one request PDU with a reply PDU, standing in for
// whatever a real 9P server would do with the bytes a virtio-9p device
// hands it.
type Handler func(request []byte) (reply []byte, err error)

// Loopback is an in-process Device: it drains its own Queue's avail
// ring directly rather than crossing into a hypervisor, which makes it
// suitable for exercising Transport and Session without any real
// virtio hardware. Production deployments would substitute a Device
// backed by the platform's actual PCI/MMIO transport; that binding is
// out of scope here.
type Loopback struct {
	tag     string
	queue   *Queue
	handler Handler

	notify  chan struct{}
	recv    chan struct{}
	done    chan struct{}
	runDone chan struct{}
}

// NewLoopback creates a Loopback device with its own queue, answering
// every request with handler. Like a real virtio device, its
// virtqueue is fixed at construction time, not handed to it at Bind
// time.
func NewLoopback(tag string, handler Handler) *Loopback {
	l := &Loopback{
		tag:     tag,
		queue:   NewQueue(QueueDepth),
		handler: handler,
		notify:  make(chan struct{}, 1),
		recv:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		runDone: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loopback) MountTag() string      { return l.tag }
func (l *Loopback) Recv() <-chan struct{} { return l.recv }
func (l *Loopback) Queue() *Queue         { return l.queue }

// Notify wakes the loopback's processing goroutine. Real hardware would
// instead see a doorbell MMIO write.
func (l *Loopback) Notify() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Close stops the processing goroutine and closes the interrupt
// channel once it has fully exited, so a Transport's completion loop
// sees Recv drained and closed rather than blocking forever.
func (l *Loopback) Close() error {
	close(l.done)
	<-l.runDone
	close(l.recv)
	return nil
}

func (l *Loopback) run() {
	defer close(l.runDone)
	for {
		select {
		case <-l.done:
			return
		case <-l.notify:
		}
		l.drain()
	}
}

func (l *Loopback) drain() {
	for {
		head, out, in, ok := l.queue.PopAvail()
		if !ok {
			return
		}
		req := bytes.Join(out, nil)
		reply, err := l.handler(req)

		var n uint32
		if err == nil {
			n = copyInto(in, reply)
		}
		l.queue.PushUsed(head, n, err)
		select {
		case l.recv <- struct{}{}:
		default:
		}
	}
}

// copyInto scatters src across the writable segments of a descriptor
// chain, in order, returning the number of bytes written.
func copyInto(segs [][]byte, src []byte) uint32 {
	var n int
	for _, seg := range segs {
		if len(src) == 0 {
			break
		}
		c := copy(seg, src)
		src = src[c:]
		n += c
	}
	return uint32(n)
}
