package mqtt

// bufferedMsg is a serialized message held while the broker is unreachable.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages queued while offline, oldest first, up to a fixed
// capacity. When full, the oldest message is discarded and counted.
// Callers synchronize access.
type outbox struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{capacity: capacity}
}

// add queues msg and reports whether an older message was discarded.
func (o *outbox) add(msg bufferedMsg) bool {
	if len(o.msgs) < o.capacity {
		o.msgs = append(o.msgs, msg)
		return false
	}
	copy(o.msgs, o.msgs[1:])
	o.msgs[len(o.msgs)-1] = msg
	o.dropped++
	return true
}

// take empties the outbox. It returns the queued messages and how many were
// discarded since the previous take.
func (o *outbox) take() ([]bufferedMsg, int) {
	msgs, dropped := o.msgs, o.dropped
	o.msgs = nil
	o.dropped = 0
	return msgs, dropped
}

// requeue puts msgs back ahead of anything queued since they were taken.
// If the result exceeds capacity the oldest entries go.
func (o *outbox) requeue(msgs []bufferedMsg) {
	all := append(append([]bufferedMsg(nil), msgs...), o.msgs...)
	if over := len(all) - o.capacity; over > 0 {
		all = all[over:]
		o.dropped += over
	}
	o.msgs = all
}

func (o *outbox) len() int {
	return len(o.msgs)
}
