// Package protocol defines the JSON-RPC 2.0 message model used by wsrpc.
//
// # Requests
//
// A Request is decoded with Parse, which separates text that is not JSON
// at all (-32700) from JSON that is not a request object (-32600):
//
//	req, err := protocol.Parse(frame)
//	if err != nil {
//	    // err is a *protocol.Error
//	}
//	if err := req.Validate(); err != nil {
//	    // version, method name, params shape or id type is wrong
//	}
//
// A request without an id member is a notification. A request whose id is
// an explicit JSON null is an ordinary request and is answered with
// "id": null.
//
// # Replies
//
// Replies are either a *Response or an *ErrorResponse; both implement
// Reply. The result member of a Response and the id member of both are
// always emitted, so a null result or an unknown id is serialized as null.
//
// # Error Codes
//
//	CodeParseError     = -32700  // Invalid JSON
//	CodeInvalidRequest = -32600  // Invalid Request object
//	CodeMethodNotFound = -32601  // Method not found
//	CodeInvalidParams  = -32602  // Invalid method parameters
//	CodeInternalError  = -32603  // Internal server error
//	CodeServerError    = -32000  // Implementation-defined server error
//
// Helper functions create properly formatted errors:
//
//	err := protocol.NewMethodNotFound("method \"frobnicate\" not found")
//	err := protocol.NewInvalidParams("exactly two numbers required")
package protocol
