package mqtt

import "testing"

func seqMsgs(from, to int) []bufferedMsg {
	var out []bufferedMsg
	for i := from; i < to; i++ {
		out = append(out, bufferedMsg{topic: Topic, payload: []byte{byte(i)}})
	}
	return out
}

func payloadBytes(ms []bufferedMsg) []byte {
	var out []byte
	for _, m := range ms {
		out = append(out, m.payload[0])
	}
	return out
}

func TestOutboxTakeEmpty(t *testing.T) {
	o := newOutbox(4)
	got, dropped := o.take()
	if len(got) != 0 || dropped != 0 {
		t.Errorf("expected nothing, got %d msgs and %d dropped", len(got), dropped)
	}
}

func TestOutboxKeepsNewest(t *testing.T) {
	tests := []struct {
		name        string
		capacity    int
		pushed      int
		want        []byte
		wantDropped int
	}{
		{"under capacity", 4, 3, []byte{0, 1, 2}, 0},
		{"at capacity", 4, 4, []byte{0, 1, 2, 3}, 0},
		{"overflow", 4, 7, []byte{3, 4, 5, 6}, 3},
		{"clamped capacity", 0, 2, []byte{1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOutbox(tt.capacity)
			for _, m := range seqMsgs(0, tt.pushed) {
				o.add(m)
			}
			got, dropped := o.take()
			if string(payloadBytes(got)) != string(tt.want) {
				t.Errorf("payloads: got %v, want %v", payloadBytes(got), tt.want)
			}
			if dropped != tt.wantDropped {
				t.Errorf("dropped: got %d, want %d", dropped, tt.wantDropped)
			}
			if o.len() != 0 {
				t.Errorf("expected empty after take, got %d", o.len())
			}
		})
	}
}

func TestOutboxAddReportsDiscard(t *testing.T) {
	o := newOutbox(1)
	if o.add(bufferedMsg{}) {
		t.Error("first add should not discard")
	}
	if !o.add(bufferedMsg{}) {
		t.Error("second add should discard the oldest")
	}
}

func TestOutboxRequeueGoesFirst(t *testing.T) {
	o := newOutbox(10)
	for _, m := range seqMsgs(0, 3) {
		o.add(m)
	}
	taken, _ := o.take()

	// A new event arrives while the replay is failing.
	o.add(seqMsgs(9, 10)[0])
	o.requeue(taken[1:])

	got, dropped := o.take()
	if string(payloadBytes(got)) != string([]byte{1, 2, 9}) {
		t.Errorf("got %v, want [1 2 9]", payloadBytes(got))
	}
	if dropped != 0 {
		t.Errorf("dropped: got %d, want 0", dropped)
	}
}

func TestOutboxRequeueTrimsOldest(t *testing.T) {
	o := newOutbox(3)
	o.add(seqMsgs(7, 8)[0])
	o.add(seqMsgs(8, 9)[0])
	o.requeue(seqMsgs(0, 3))

	got, dropped := o.take()
	if string(payloadBytes(got)) != string([]byte{2, 7, 8}) {
		t.Errorf("got %v, want [2 7 8]", payloadBytes(got))
	}
	if dropped != 2 {
		t.Errorf("dropped: got %d, want 2", dropped)
	}
}

func TestOutboxPreservesFields(t *testing.T) {
	o := newOutbox(2)
	o.add(bufferedMsg{topic: TopicSystem, payload: []byte(`{"system":{}}`), qos: 1, retained: true})

	got, _ := o.take()
	if len(got) != 1 {
		t.Fatalf("expected 1 msg, got %d", len(got))
	}
	m := got[0]
	if m.topic != TopicSystem || string(m.payload) != `{"system":{}}` || m.qos != 1 || !m.retained {
		t.Errorf("fields not preserved: %+v", m)
	}
}
