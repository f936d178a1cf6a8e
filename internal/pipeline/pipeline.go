// Package pipeline implements the single validate/authenticate/decode/
// dispatch/respond/audit execution path shared by every transport.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scangate/gateway/internal/auth"
	"github.com/scangate/gateway/internal/inference"
	"github.com/scangate/gateway/internal/metrics"
	"github.com/scangate/gateway/internal/protocol"
)

// Verifier is the auth surface the pipeline needs.
type Verifier interface {
	Verify(tokenString string) (*auth.Claims, error)
}

// InferenceProcessor is the inference surface the pipeline needs; satisfied
// by *inference.Pool in production and a stub in tests.
type InferenceProcessor interface {
	ProcessFrame(ctx context.Context, frameBytes []byte, width, height, channels int32, format string) (*inference.ProcessFrameResult, error)
}

// AuditRecord is one best-effort scan-audit row.
type AuditRecord struct {
	UserID         int64
	DeviceID       string
	SessionID      string
	FrameSequence  uint64
	DetectionCount int
	Outcome        string
}

// AuditWriter persists AuditRecord rows out of band. Errors are logged,
// never surfaced to the client.
type AuditWriter interface {
	WriteAudit(ctx context.Context, rec AuditRecord) error
}

// Pipeline wires together auth, inference, and audit for one frame at a
// time. It holds no per-connection state.
type Pipeline struct {
	verifier  Verifier
	inference InferenceProcessor
	audit     AuditWriter
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func New(verifier Verifier, inference InferenceProcessor, audit AuditWriter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{verifier: verifier, inference: inference, audit: audit, logger: logger}
}

// SetMetrics wires Prometheus collectors into the pipeline. Optional: a
// Pipeline with no metrics set simply skips instrumentation.
func (p *Pipeline) SetMetrics(m *metrics.Metrics) {
	p.metrics = m
}

// HandleRaw decodes raw bytes into an envelope and runs the full pipeline.
// On a malformed envelope it responds with success=false rather than
// dropping, matching spec behavior for decode failures.
func (p *Pipeline) HandleRaw(ctx context.Context, raw []byte, responder Responder) {
	env, err := protocol.DecodeEnvelope(raw)
	if err != nil {
		p.logger.Debug("malformed envelope", "error", err)
		_ = responder.Respond(protocol.NewResponse(false, "malformed envelope", "", 0, 0, 0, nil))
		return
	}
	p.Handle(ctx, env, responder)
}

// Handle runs the authenticate -> validate -> dispatch -> respond -> audit
// steps for an already-decoded envelope.
func (p *Pipeline) Handle(ctx context.Context, env *protocol.Envelope, responder Responder) {
	claims, err := p.verifier.Verify(env.Token)
	if err != nil {
		p.logger.Debug("token verification failed", "session_id", env.SessionID, "error", err)
		_ = responder.Respond(protocol.NewResponse(false, fmt.Sprintf("Unauthorized: %v", err), "", env.FrameSeq, env.Width, env.Height, nil))
		if p.metrics != nil {
			p.metrics.AuthFailures.Inc()
		}
		// Per design decision, failed-auth frames are not audited: the
		// identity needed to attribute the audit row is exactly what
		// failed to verify.
		return
	}

	if env.Width <= 0 || env.Height <= 0 || len(env.ImageBytes) == 0 {
		p.logger.Debug("semantic validation failed, dropping silently", "session_id", env.SessionID)
		return
	}

	channels := channelsForFormat(env.Format)
	start := time.Now()
	result, err := p.inference.ProcessFrame(ctx, env.ImageBytes, env.Width, env.Height, channels, env.Format)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		p.logger.Warn("inference dispatch failed", "session_id", env.SessionID, "error", err)
		_ = responder.Respond(protocol.NewResponse(false, fmt.Sprintf("AI Error: %v", err), "", env.FrameSeq, env.Width, env.Height, nil))
		if p.metrics != nil {
			p.metrics.FramesProcessed.WithLabelValues("inference_error").Inc()
			p.metrics.InferenceDuration.WithLabelValues("inference_error").Observe(elapsed)
		}
		p.auditAsync(ctx, claims, env, 0, "error")
		return
	}

	resp := protocol.NewResponse(result.Success, result.Message, env.SessionID, env.FrameSeq, env.Width, env.Height, result.Detections)
	if err := responder.Respond(resp); err != nil {
		p.logger.Warn("respond failed", "session_id", env.SessionID, "error", err)
	}

	outcome := "success"
	if !result.Success {
		outcome = "degraded"
	}
	if p.metrics != nil {
		p.metrics.FramesProcessed.WithLabelValues(outcome).Inc()
		p.metrics.InferenceDuration.WithLabelValues(outcome).Observe(elapsed)
	}
	auditOutcome := "success"
	if !result.Success {
		auditOutcome = "error"
	}
	p.auditAsync(ctx, claims, env, len(result.Detections), auditOutcome)
}

func (p *Pipeline) auditAsync(ctx context.Context, claims *auth.Claims, env *protocol.Envelope, detectionCount int, outcome string) {
	if p.audit == nil {
		return
	}
	rec := AuditRecord{
		UserID:         claims.UserID,
		DeviceID:       claims.DeviceID,
		SessionID:      env.SessionID,
		FrameSequence:  env.FrameSeq,
		DetectionCount: detectionCount,
		Outcome:        outcome,
	}
	go func() {
		if err := p.audit.WriteAudit(context.WithoutCancel(ctx), rec); err != nil {
			p.logger.Warn("scan audit write failed", "session_id", rec.SessionID, "error", err)
		}
	}()
}

func channelsForFormat(format string) int32 {
	switch format {
	case "rgba":
		return 4
	case "grayscale":
		return 1
	default:
		return 3
	}
}
