package protocol

// Built-in method names seeded into every server.
const (
	MethodPing          = "ping"
	MethodEcho          = "echo"
	MethodAdd           = "add"
	MethodGetServerInfo = "getServerInfo"
)
