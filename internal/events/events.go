// Package events emits NEP-171 token events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"leasetoken/internal/metrics"
	"leasetoken/internal/models"
	"leasetoken/internal/storage"
)

// LogPrefix starts every logged event line
const LogPrefix = "EVENT_JSON:"

// Sink receives token events. Emit is append-only.
type Sink interface {
	Emit(ctx context.Context, event *models.TokenEvent) error
}

// Format renders the NEP-297 log line for an event
func Format(event *models.TokenEvent) (string, error) {
	payload, err := json.Marshal(event.Envelope())
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}
	return LogPrefix + string(payload), nil
}

// LogSink writes events to the default logger
type LogSink struct{}

// Emit logs the event line
func (LogSink) Emit(ctx context.Context, event *models.TokenEvent) error {
	line, err := Format(event)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, line)
	return nil
}

// StoreSink persists events in the event repository
type StoreSink struct {
	repository storage.EventRepository
}

// NewStoreSink creates a sink backed by repository
func NewStoreSink(repository storage.EventRepository) *StoreSink {
	return &StoreSink{repository: repository}
}

// Emit saves the event
func (s *StoreSink) Emit(ctx context.Context, event *models.TokenEvent) error {
	return s.repository.SaveTokenEvent(ctx, event)
}

// Emitter stamps events and fans them out to every sink
type Emitter struct {
	sinks []Sink
	now   func() time.Time
}

// NewEmitter creates an Emitter writing to sinks in order
func NewEmitter(sinks ...Sink) *Emitter {
	return &Emitter{sinks: sinks, now: time.Now}
}

// Emit sends the event to all sinks. Every sink is tried; the first error is returned.
func (e *Emitter) Emit(ctx context.Context, event *models.TokenEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now().UTC()
	}

	var firstErr error
	for _, sink := range e.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			slog.Error("Failed to emit token event",
				"event", event.Event,
				"token_ids", event.TokenIDs,
				"error", err,
			)
			metrics.ErrorsTotal.WithLabelValues("events").Inc()
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	metrics.EventsEmitted.WithLabelValues(event.Event).Inc()
	return firstErr
}
