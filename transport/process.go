package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/felixgeelhaar/wsrpc/protocol"
)

// Process turns one inbound text frame into at most one reply.
//
// Text that is not JSON yields a parse error with a null id. A frame that
// is JSON but not a valid request yields an invalid request error carrying
// the frame's id when one can be recovered. Valid requests go to h; the
// result is nil exactly when the frame is a valid notification.
func Process(ctx context.Context, h Handler, frame []byte) protocol.Reply {
	req, err := protocol.Parse(frame)
	if err != nil {
		rpcErr := asProtocolError(err, protocol.CodeParseError)
		var id json.RawMessage
		if rpcErr.Code != protocol.CodeParseError {
			id = protocol.ExtractID(frame)
		}
		return protocol.NewErrorResponse(id, rpcErr)
	}

	if err := req.Validate(); err != nil {
		return protocol.NewErrorResponse(protocol.ExtractID(frame), asProtocolError(err, protocol.CodeInvalidRequest))
	}

	return h.Dispatch(ctx, req)
}

// Encode serializes a reply. A result that cannot be encoded is replaced
// by an internal error carrying the same id.
func Encode(reply protocol.Reply) ([]byte, error) {
	data, err := marshal(reply)
	if err == nil {
		return data, nil
	}
	fallback := protocol.NewErrorResponse(reply.ReplyID(), protocol.NewInternalError("result could not be encoded"))
	return marshal(fallback)
}

// marshal encodes v without HTML escaping so echoed values keep their bytes.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func asProtocolError(err error, fallback int) *protocol.Error {
	var rpcErr *protocol.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return protocol.NewError(fallback, err.Error())
}

// isProtocolFailure reports whether reply rejects the frame itself
// rather than answering a dispatched call.
func isProtocolFailure(reply protocol.Reply) (*protocol.Error, bool) {
	e, ok := reply.(*protocol.ErrorResponse)
	if !ok || e.Error == nil {
		return nil, false
	}
	switch e.Error.Code {
	case protocol.CodeParseError, protocol.CodeInvalidRequest:
		return e.Error, true
	}
	return nil, false
}
