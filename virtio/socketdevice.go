package virtio

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"

	"github.com/hugelgupf/socketpair"
)

// SocketDevice is a Device whose backend runs on the far end of an
// OS-level socket pair instead of being called in-process like
// Loopback. Requests popped off the avail ring are framed with a
// 4-byte length prefix and shipped across the socket to a backend
// goroutine running handler; the framed reply comes back the same
// way. It exercises the doorbell/interrupt handshake against a real
// concurrently-scheduled peer rather than a synchronous function call.
type SocketDevice struct {
	tag   string
	queue *Queue
	conn  net.Conn

	notify  chan struct{}
	recv    chan struct{}
	done    chan struct{}
	runDone chan struct{}
}

// NewSocketDevice starts a backend goroutine bound to one half of a
// fresh socket pair and returns the Device bound to the other half.
func NewSocketDevice(mountTag string, handler Handler) (*SocketDevice, error) {
	backend, front, err := socketpair.TCPPair()
	if err != nil {
		return nil, err
	}

	d := &SocketDevice{
		tag:     mountTag,
		queue:   NewQueue(QueueDepth),
		conn:    front,
		notify:  make(chan struct{}, 1),
		recv:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		runDone: make(chan struct{}),
	}
	go serveFrames(backend, handler)
	go d.run()
	return d, nil
}

func (d *SocketDevice) MountTag() string      { return d.tag }
func (d *SocketDevice) Recv() <-chan struct{} { return d.recv }
func (d *SocketDevice) Queue() *Queue         { return d.queue }

// Notify wakes the device's processing goroutine, standing in for the
// doorbell MMIO write a real device would see.
func (d *SocketDevice) Notify() {
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Close stops the processing goroutine, closes the socket (unblocking
// the backend's pending read), and closes the interrupt channel once
// the processing goroutine has fully exited.
func (d *SocketDevice) Close() error {
	close(d.done)
	<-d.runDone
	err := d.conn.Close()
	close(d.recv)
	return err
}

func (d *SocketDevice) run() {
	defer close(d.runDone)
	for {
		select {
		case <-d.done:
			return
		case <-d.notify:
		}
		d.drain()
	}
}

func (d *SocketDevice) drain() {
	for {
		head, out, in, ok := d.queue.PopAvail()
		if !ok {
			return
		}
		req := bytes.Join(out, nil)

		var n uint32
		reply, err := roundTrip(d.conn, req)
		if err == nil {
			n = copyInto(in, reply)
		}
		d.queue.PushUsed(head, n, err)
		select {
		case d.recv <- struct{}{}:
		default:
		}
	}
}

func roundTrip(conn net.Conn, req []byte) ([]byte, error) {
	if err := writeFrame(conn, req); err != nil {
		return nil, err
	}
	return readFrame(conn)
}

// serveFrames answers framed requests on conn with handler until the
// connection is closed or a frame fails to decode.
func serveFrames(conn net.Conn, handler Handler) {
	defer conn.Close()
	for {
		req, err := readFrame(conn)
		if err != nil {
			return
		}
		reply, err := handler(req)
		if err != nil {
			return
		}
		if err := writeFrame(conn, reply); err != nil {
			return
		}
	}
}

func readFrame(conn net.Conn) ([]byte, error) {
	var size uint32
	if err := binary.Read(conn, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrame(conn net.Conn, data []byte) error {
	if err := binary.Write(conn, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := conn.Write(data)
	return err
}
