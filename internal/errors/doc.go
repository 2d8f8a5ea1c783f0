// Package errors provides structured, coded errors for rcpbridge.
//
// Every diagnostic the bridge can raise synchronously has a registry code
// (e.g., "E101") that maps to a short message and a longer explanation.
// Transport code logs these through slog with LogArgs; the CLI prints them
// with Format.
//
// # Error Categories
//
//   - config: rejected configuration (bad port, unsupported scheme, zero buffer)
//   - transport: bind, send and handshake failures
//   - protocol: responses from a tunnel endpoint
//   - resource: transporters that could not be created, oversized packets
//   - cli: command line usage errors
//
// # Usage
//
//	err := errors.New("E101").
//	    WithField("port", 70000).
//	    WithSuggestion("Use a port between 1 and 65535, or 0 to stop listening")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E101: Invalid port
//	//
//	//   port: 70000
//	//
//	//   Ports must be between 0 and 65535. Port 0 disables listening.
//	//
//	//   Hint: Use a port between 1 and 65535, or 0 to stop listening
package errors
