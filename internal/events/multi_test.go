package events

import (
	"context"
	"errors"
	"testing"
)

type recordingPublisher struct {
	topics []string
	err    error
	closed bool
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	r.topics = append(r.topics, topic)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return r.err
}

func TestMultiPublisher(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingPublisher{err: boom}
	b := &recordingPublisher{}
	var pub Publisher = MultiPublisher{a, b}

	err := pub.Publish(context.Background(), TopicServiceRenewed, ServiceAction{Action: "renew"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(b.topics) != 1 || b.topics[0] != TopicServiceRenewed {
		t.Fatalf("second publisher skipped: %v", b.topics)
	}

	if err := pub.Close(); !errors.Is(err, boom) {
		t.Fatalf("expected boom from Close, got %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatal("not all publishers closed")
	}

	if err := (MultiPublisher{}).Publish(context.Background(), TopicServiceCreated, nil); err != nil {
		t.Fatalf("empty MultiPublisher: %v", err)
	}
}
