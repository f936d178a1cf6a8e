package pipeline

import "github.com/scangate/gateway/internal/protocol"

// Responder abstracts the reply channel back to a client. The
// binary-over-connection transport and the UDP transport each supply their
// own implementation; the pipeline itself never knows which one it is
// talking to.
type Responder interface {
	Respond(resp *protocol.Response) error
}

// ResponderFunc lets a plain function satisfy Responder.
type ResponderFunc func(resp *protocol.Response) error

func (f ResponderFunc) Respond(resp *protocol.Response) error {
	return f(resp)
}
