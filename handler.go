package rsocket

import "context"

// Handler implements the application-visible responder side of a
// connection: the five callbacks a peer's request frames dispatch into,
// one per interaction pattern plus metadata-push. Shaped after the
// Responder interface other RSocket client implementations expose, but
// expressed with this module's own Payload/PayloadStream types and a
// context.Context per call for cancellation, matching the idiom the
// teacher uses for its own ConnMuxer/Handler seam (muxer.go's
// conn.Serve(mux.Handler)).
type Handler interface {
	// HandleFireAndForget is invoked for a REQUEST_FNF with no reply
	// expected; a returned error is logged but never sent to the peer.
	HandleFireAndForget(ctx context.Context, req Payload) error

	// HandleRequestResponse returns the single reply to a REQUEST_RESPONSE,
	// or an error to be sent back as an ERROR frame.
	HandleRequestResponse(ctx context.Context, req Payload) (Payload, error)

	// HandleRequestStream returns the stream of replies to a
	// REQUEST_STREAM. The returned PayloadStream must honor the credit
	// requested via its Request method only after Request has been
	// called; it must not emit before demand exists.
	HandleRequestStream(ctx context.Context, req Payload) (*PayloadStream, error)

	// HandleRequestChannel is invoked for a REQUEST_CHANNEL. req is the
	// first item of the requester's half of the channel; inbound delivers
	// the items after it, and its Request(n)
	// sends REQUEST_N back to the requester for more of it, symmetric
	// with the requester-side IncomingStream RequestStream/RequestChannel
	// return. The returned PayloadStream is this side's half, credit-gated
	// the same way HandleRequestStream's is.
	HandleRequestChannel(ctx context.Context, req Payload, inbound *IncomingStream) (*PayloadStream, error)

	// HandleMetadataPush is invoked for a METADATA_PUSH, which carries no
	// stream id and expects no reply.
	HandleMetadataPush(ctx context.Context, metadata []byte)
}

// BaseHandler rejects request/response, request/stream and request/channel
// with ErrorCodeRejected; fire-and-forget and metadata-push are accepted
// and ignored. Embed it
// in an application handler to implement only the patterns that matter,
// per the teacher's preference for small, composable defaults over one
// monolithic interface implementation (server.go's http.Handler chaining).
type BaseHandler struct{}

func (BaseHandler) HandleFireAndForget(ctx context.Context, req Payload) error {
	return nil
}

func (BaseHandler) HandleRequestResponse(ctx context.Context, req Payload) (Payload, error) {
	return Payload{}, NewError(ErrorCodeRejected, "request-response not supported")
}

func (BaseHandler) HandleRequestStream(ctx context.Context, req Payload) (*PayloadStream, error) {
	return nil, NewError(ErrorCodeRejected, "request-stream not supported")
}

func (BaseHandler) HandleRequestChannel(ctx context.Context, req Payload, inbound *IncomingStream) (*PayloadStream, error) {
	return nil, NewError(ErrorCodeRejected, "request-channel not supported")
}

func (BaseHandler) HandleMetadataPush(ctx context.Context, metadata []byte) {}
