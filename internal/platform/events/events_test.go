package events

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

func TestBuildMessage(t *testing.T) {
	subject := uuid.New()
	at := time.Date(2024, 3, 1, 8, 10, 0, 0, time.UTC)
	evt := New(AllocationCreated, subject, at, map[string]string{"room": "OT-01"})

	msg, err := buildMessage(evt, "ot-server")
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	if msg.DeliveryMode != amqp.Persistent {
		t.Error("expected persistent delivery")
	}
	if msg.Type != AllocationCreated || msg.MessageId != evt.ID.String() {
		t.Errorf("unexpected routing fields %q %q", msg.Type, msg.MessageId)
	}
	if msg.Headers["subject"] != subject.String() {
		t.Errorf("unexpected subject header %v", msg.Headers["subject"])
	}

	var decoded Event
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if decoded.Subject != subject || decoded.Type != AllocationCreated {
		t.Errorf("unexpected decoded event %+v", decoded)
	}
}

func TestLogPublisher(t *testing.T) {
	var buf strings.Builder
	p := NewLogPublisher(zerolog.New(&buf))
	if err := p.Publish(context.Background(), New(AllocationDeleted, uuid.New(), time.Now(), nil)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !strings.Contains(buf.String(), AllocationDeleted) {
		t.Errorf("expected event type in log, got %s", buf.String())
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	_ = r.Publish(context.Background(), New(AllocationUpdated, uuid.New(), time.Now(), nil))
	if len(r.Events()) != 1 || r.Events()[0].Type != AllocationUpdated {
		t.Errorf("unexpected events %+v", r.Events())
	}
}
