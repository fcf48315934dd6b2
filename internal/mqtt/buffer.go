package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that stores messages while the broker
// is unreachable. Oldest messages are dropped on overflow; motion events
// lose their value quickly, so a deep queue would only replay stale state.
// Not safe for concurrent use — RealPublisher synchronizes around it.
type ringBuffer struct {
	buf      []bufferedMsg
	tail     int // oldest message
	count    int
	overflow bool // true if any message was dropped since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{buf: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if r.count == len(r.buf) {
		if !r.overflow {
			log.Printf("mqtt: buffer full (%d messages), dropping oldest", len(r.buf))
			r.overflow = true
		}
		r.buf[r.tail] = msg
		r.tail = (r.tail + 1) % len(r.buf)
		return
	}
	r.buf[(r.tail+r.count)%len(r.buf)] = msg
	r.count++
}

func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}
	out := make([]bufferedMsg, r.count)
	for i := range out {
		out[i] = r.buf[(r.tail+i)%len(r.buf)]
	}
	r.tail = 0
	r.count = 0
	r.overflow = false
	return out
}

func (r *ringBuffer) len() int {
	return r.count
}
