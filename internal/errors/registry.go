package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E149)
	// ============================================

	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid port",
		Detail:   "Ports must be between 0 and 65535. Port 0 disables listening.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Unsupported URI scheme",
		Detail:   "Only ws, wss, http and https URIs can be opened. http and https are rewritten to ws and wss.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid buffer size",
		Detail:   "Buffer sizes must be greater than zero.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid framing",
		Detail:   "Host framing must be one of none, slip or size.",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Empty URI",
		Detail:   "A connection URI is required.",
	},
	"E140": {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "The rcpbridge.json file could not be found.",
	},
	"E141": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "The rcpbridge.json file contains invalid JSON.",
	},
	"E142": {
		Category: CategoryConfig,
		Message:  "Invalid log level",
		Detail:   "Log level must be one of debug, info, warn or error.",
	},
	"E143": {
		Category: CategoryConfig,
		Message:  "Invalid log format",
		Detail:   "Log format must be text or json.",
	},
	"E144": {
		Category: CategoryConfig,
		Message:  "Config write failed",
		Detail:   "The configuration could not be written to disk.",
	},

	// ============================================
	// Transport Errors (E200-E249)
	// ============================================

	"E201": {
		Category: CategoryTransport,
		Message:  "Bind failed",
		Detail:   "The server could not listen on the requested port. Another process may already use it.",
	},
	"E202": {
		Category: CategoryTransport,
		Message:  "Send failed",
		Detail:   "A frame could not be written to the connection.",
	},
	"E203": {
		Category: CategoryTransport,
		Message:  "Handshake failed",
		Detail:   "The websocket handshake was rejected or did not complete.",
	},
	"E204": {
		Category: CategoryTransport,
		Message:  "Not connected",
		Detail:   "The operation needs an open connection.",
	},

	// ============================================
	// Tunnel Errors (E250-E269)
	// ============================================

	"E250": {
		Category: CategoryProtocol,
		Message:  "No tunnel name provided",
		Detail:   "The tunnel endpoint answered 400 Bad Request.",
	},
	"E251": {
		Category: CategoryProtocol,
		Message:  "Tunnel name too short",
		Detail:   "The tunnel endpoint answered 412 Precondition Failed.",
	},
	"E252": {
		Category: CategoryProtocol,
		Message:  "Tunnel already in use",
		Detail:   "The tunnel endpoint answered 423 Locked: another server is connected to this tunnel.",
	},
	"E253": {
		Category: CategoryProtocol,
		Message:  "Public tunnel closed",
		Detail:   "Public tunnels are not reliable and close sessions after a while (close code 4500).",
	},

	// ============================================
	// Resource Errors (E300-E319)
	// ============================================

	"E300": {
		Category: CategoryResource,
		Message:  "Transporter not created",
		Detail:   "The transport could not be created; the rest of the system keeps running without it.",
	},
	"E301": {
		Category: CategoryResource,
		Message:  "Packet exceeds buffer",
		Detail:   "A decoded packet was larger than the configured buffer and was dropped.",
	},

	// ============================================
	// CLI Errors (E400-E419)
	// ============================================

	"E400": {
		Category: CategoryCLI,
		Message:  "Invalid argument",
		Detail:   "A command line argument could not be parsed.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
