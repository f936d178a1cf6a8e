package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scangate/gateway/internal/auth"
	"github.com/scangate/gateway/internal/inference"
	"github.com/scangate/gateway/internal/protocol"
)

type stubVerifier struct {
	claims *auth.Claims
	err    error
}

func (s *stubVerifier) Verify(token string) (*auth.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

type stubInference struct {
	result *inference.ProcessFrameResult
	err    error
}

func (s *stubInference) ProcessFrame(ctx context.Context, frameBytes []byte, width, height, channels int32, format string) (*inference.ProcessFrameResult, error) {
	return s.result, s.err
}

type recordingAudit struct {
	mu      sync.Mutex
	records []AuditRecord
}

func (r *recordingAudit) WriteAudit(ctx context.Context, rec AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recordingAudit) snapshot() []AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditRecord(nil), r.records...)
}

type capturingResponder struct {
	mu   sync.Mutex
	resp *protocol.Response
}

func (c *capturingResponder) Respond(resp *protocol.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resp = resp
	return nil
}

func (c *capturingResponder) get() *protocol.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resp
}

func validClaims() *auth.Claims {
	return &auth.Claims{UserID: 1, Username: "alice", DeviceID: "dev-1", PlanType: "pro"}
}

func TestHandleRejectsUnauthorized(t *testing.T) {
	p := New(&stubVerifier{err: auth.ErrUnauthorized}, &stubInference{}, nil, nil)
	responder := &capturingResponder{}
	env := &protocol.Envelope{Token: "bad", SessionID: "s1", Width: 10, Height: 10, ImageBytes: []byte{1}}

	p.Handle(context.Background(), env, responder)

	resp := responder.get()
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "Unauthorized")
}

func TestHandleDropsSilentlyOnSemanticValidationFailure(t *testing.T) {
	p := New(&stubVerifier{claims: validClaims()}, &stubInference{}, nil, nil)
	responder := &capturingResponder{}
	env := &protocol.Envelope{Token: "ok", SessionID: "s1", Width: 0, Height: 10, ImageBytes: []byte{1}}

	p.Handle(context.Background(), env, responder)

	assert.Nil(t, responder.get())
}

func TestHandleSuccessNeverOmitsEmptyDetections(t *testing.T) {
	p := New(&stubVerifier{claims: validClaims()}, &stubInference{result: &inference.ProcessFrameResult{Success: true, Message: "ok"}}, nil, nil)
	responder := &capturingResponder{}
	env := &protocol.Envelope{Token: "ok", SessionID: "s1", FrameSeq: 5, Width: 10, Height: 20, ImageBytes: []byte{1}}

	p.Handle(context.Background(), env, responder)

	resp := responder.get()
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.AIResults.Detections)
	assert.Equal(t, uint64(5), resp.FrameSequence)
}

func TestHandleInferenceErrorSurfacesAIError(t *testing.T) {
	p := New(&stubVerifier{claims: validClaims()}, &stubInference{err: errors.New("backend down")}, nil, nil)
	responder := &capturingResponder{}
	env := &protocol.Envelope{Token: "ok", SessionID: "s1", Width: 10, Height: 10, ImageBytes: []byte{1}}

	p.Handle(context.Background(), env, responder)

	resp := responder.get()
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "AI Error")
}

func TestHandleAuditsAsyncOnSuccessWithoutBlockingResponse(t *testing.T) {
	audit := &recordingAudit{}
	p := New(&stubVerifier{claims: validClaims()}, &stubInference{result: &inference.ProcessFrameResult{Success: true}}, audit, nil)
	responder := &capturingResponder{}
	env := &protocol.Envelope{Token: "ok", SessionID: "s1", FrameSeq: 9, Width: 10, Height: 10, ImageBytes: []byte{1}}

	p.Handle(context.Background(), env, responder)

	require.Eventually(t, func() bool {
		return len(audit.snapshot()) == 1
	}, time.Second, time.Millisecond)

	rec := audit.snapshot()[0]
	assert.Equal(t, int64(1), rec.UserID)
	assert.Equal(t, "success", rec.Outcome)
}

func TestHandleDoesNotAuditOnAuthFailure(t *testing.T) {
	audit := &recordingAudit{}
	p := New(&stubVerifier{err: auth.ErrUnauthorized}, &stubInference{}, audit, nil)
	responder := &capturingResponder{}
	env := &protocol.Envelope{Token: "bad", SessionID: "s1", Width: 10, Height: 10, ImageBytes: []byte{1}}

	p.Handle(context.Background(), env, responder)

	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, audit.snapshot())
}

func TestHandleRawRespondsMalformedOnBadEnvelope(t *testing.T) {
	p := New(&stubVerifier{claims: validClaims()}, &stubInference{}, nil, nil)
	responder := &capturingResponder{}

	p.HandleRaw(context.Background(), []byte{}, responder)

	resp := responder.get()
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "malformed envelope", resp.Message)
}

func TestChannelsForFormat(t *testing.T) {
	assert.Equal(t, int32(4), channelsForFormat("rgba"))
	assert.Equal(t, int32(1), channelsForFormat("grayscale"))
	assert.Equal(t, int32(3), channelsForFormat("jpeg"))
}
