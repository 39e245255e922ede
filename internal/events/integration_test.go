// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

//go:build integration && nats

package events

import (
	"context"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/punchsync/internal/models"
	"github.com/tomtom215/punchsync/internal/testinfra"

	"github.com/goccy/go-json"
)

// TestPublishRoundtrip_Integration publishes an attendance event through
// the real Watermill publisher against a containerized NATS server and
// reads it back off the stream.
func TestPublishRoundtrip_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testinfra.SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	nc, err := testinfra.NewNATSContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to create NATS container: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, nc.Container)

	conn, err := natsgo.Connect(nc.URL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	js, err := jetstream.New(conn)
	if err != nil {
		t.Fatalf("Failed to create JetStream context: %v", err)
	}

	streamCfg := DefaultStreamConfig()
	if err := NewStreamInitializer(js, streamCfg).EnsureStream(ctx); err != nil {
		t.Fatalf("EnsureStream() error = %v", err)
	}

	pub, err := NewPublisher(DefaultPublisherConfig(nc.URL))
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}

	rp := NewRunPublisher(pub, "")
	defer func() {
		if err := rp.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	rec := &models.AttendanceRecord{
		ID:               "rec-integration-1",
		WorkerID:         "worker-17",
		SourceWorkerCode: "1017",
		Timestamp:        time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC),
		Direction:        models.DirectionIn,
		DeviceLabel:      "lobby-terminal",
	}
	if err := rp.PublishCreated(ctx, "run-integration-1", rec); err != nil {
		t.Fatalf("PublishCreated() error = %v", err)
	}

	stream, err := js.Stream(ctx, streamCfg.Name)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	cons, err := stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: SubjectCreated,
	})
	if err != nil {
		t.Fatalf("CreateConsumer() error = %v", err)
	}

	batch, err := cons.Fetch(1, jetstream.FetchMaxWait(10*time.Second))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	var got *AttendanceCreated
	for msg := range batch.Messages() {
		var event AttendanceCreated
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			t.Fatalf("Unmarshal payload: %v", err)
		}
		got = &event
		if err := msg.Ack(); err != nil {
			t.Errorf("Ack() error = %v", err)
		}
	}
	if err := batch.Error(); err != nil {
		t.Fatalf("batch error: %v", err)
	}
	if got == nil {
		t.Fatal("no message received from stream")
	}

	if got.RunID != "run-integration-1" {
		t.Errorf("run_id = %q, want run-integration-1", got.RunID)
	}
	if got.RecordID != rec.ID {
		t.Errorf("record_id = %q, want %q", got.RecordID, rec.ID)
	}
	if got.WorkerID != rec.WorkerID {
		t.Errorf("worker_id = %q, want %q", got.WorkerID, rec.WorkerID)
	}
	if got.Direction != models.DirectionIn {
		t.Errorf("direction = %q, want IN", got.Direction)
	}
	if !got.Timestamp.Equal(rec.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, rec.Timestamp)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("received event invalid: %v", err)
	}
}
