// Package ingest runs inbound events through the dedup gate into the audit store.
package ingest

import (
	"context"
	"errors"
	"log/slog"

	"audit-trail/internal/audit"
	"audit-trail/internal/metrics"
)

type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeRejected means the event can never succeed (unknown action type, bad input).
	OutcomeRejected Outcome = "rejected"
	// OutcomeFailed means a transient store failure; the event may be retried.
	OutcomeFailed Outcome = "failed"
)

// Recorder is the write side of audit.Service.
type Recorder interface {
	Create(ctx context.Context, in audit.CreateInput) (audit.Record, error)
}

// Deduplicator is the subset of dedup.Gate the processor needs.
type Deduplicator interface {
	IsDuplicate(ctx context.Context, eventID, sourceService string) bool
	MarkAsProcessed(ctx context.Context, eventID, sourceService string)
}

type Result struct {
	Outcome Outcome
	// Record is set only for OutcomeAccepted.
	Record *audit.Record
}

type Processor struct {
	records Recorder
	gate    Deduplicator
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewProcessor(records Recorder, gate Deduplicator, logger *slog.Logger, m *metrics.Metrics) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{records: records, gate: gate, logger: logger, metrics: m}
}

// Process applies dedup → create → mark. A duplicate returns OutcomeDuplicate
// with a nil error and writes nothing. The event is marked only after the
// record is stored, so a failed create can be redelivered.
func (p *Processor) Process(ctx context.Context, ev Event) (Result, error) {
	if p.gate.IsDuplicate(ctx, ev.EventID, ev.SourceService) {
		p.metrics.IncIngestOutcome(ev.source(), string(OutcomeDuplicate))
		return Result{Outcome: OutcomeDuplicate}, nil
	}

	rec, err := p.records.Create(ctx, ev.CreateInput)
	if err != nil {
		outcome := classify(err)
		p.metrics.IncIngestOutcome(ev.source(), string(outcome))
		p.logger.WarnContext(ctx, "audit event not recorded",
			"event_id", ev.EventID,
			"source_service", ev.SourceService,
			"outcome", outcome,
			"error", err,
		)
		return Result{Outcome: outcome}, err
	}

	p.gate.MarkAsProcessed(ctx, ev.EventID, ev.SourceService)
	p.metrics.IncIngestOutcome(ev.source(), string(OutcomeAccepted))
	p.metrics.IncRecordCreated(rec.ActionType.Code)
	return Result{Outcome: OutcomeAccepted, Record: &rec}, nil
}

func classify(err error) Outcome {
	if errors.Is(err, audit.ErrUnknownActionType) || errors.Is(err, audit.ErrValidation) {
		return OutcomeRejected
	}
	return OutcomeFailed
}
