package mqtt

import "log"

// queuedMsg stores a serialized MQTT message for replay after reconnection.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// msgBuffer is a fixed-capacity FIFO that holds messages while the broker is
// unreachable. When full, the oldest message is dropped. Not safe for
// concurrent use; the caller must synchronize.
type msgBuffer struct {
	msgs    []queuedMsg
	start   int // index of the oldest message
	count   int
	dropped bool // true if any message was dropped since the last drain
}

func newMsgBuffer(capacity int) *msgBuffer {
	return &msgBuffer{msgs: make([]queuedMsg, capacity)}
}

func (b *msgBuffer) push(m queuedMsg) {
	capacity := len(b.msgs)
	if b.count == capacity {
		if !b.dropped {
			log.Printf("mqtt: buffer full (%d messages), dropping oldest", capacity)
			b.dropped = true
		}
		b.msgs[b.start] = m
		b.start = (b.start + 1) % capacity
		return
	}
	b.msgs[(b.start+b.count)%capacity] = m
	b.count++
}

// drain returns the buffered messages oldest-first and empties the buffer.
func (b *msgBuffer) drain() []queuedMsg {
	if b.count == 0 {
		return nil
	}

	out := make([]queuedMsg, b.count)
	for i := range out {
		out[i] = b.msgs[(b.start+i)%len(b.msgs)]
	}

	b.start = 0
	b.count = 0
	b.dropped = false
	return out
}

func (b *msgBuffer) len() int {
	return b.count
}
