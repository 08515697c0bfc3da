package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeAcker struct {
	acked   []uint64
	nacked  []uint64
	requeue bool
}

func (f *fakeAcker) Ack(tag uint64, _ bool) error {
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcker) Nack(tag uint64, _ bool, requeue bool) error {
	f.nacked = append(f.nacked, tag)
	f.requeue = requeue
	return nil
}

func (f *fakeAcker) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func TestToMessage(t *testing.T) {
	acker := &fakeAcker{}
	d := amqp.Delivery{Acknowledger: acker, DeliveryTag: 7, Body: []byte(`{"jobId":"a"}`)}

	msg := toMessage(d)
	if string(msg.Body) != `{"jobId":"a"}` {
		t.Fatalf("unexpected body %q", msg.Body)
	}
	if err := msg.Ack(); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := msg.Nack(true); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if len(acker.acked) != 1 || acker.acked[0] != 7 {
		t.Fatalf("unexpected acks %v", acker.acked)
	}
	if len(acker.nacked) != 1 || !acker.requeue {
		t.Fatalf("unexpected nacks %v requeue=%v", acker.nacked, acker.requeue)
	}
}

func TestCloseAll_Nil(t *testing.T) {
	if err := closeAll(nil, nil); err != nil {
		t.Fatalf("closeAll(nil, nil) = %v", err)
	}
}
