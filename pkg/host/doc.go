// Package host exposes rcpbridge to a single-threaded host application.
//
// The host owns one goroutine, the Loop. Transports run on their own
// goroutines and never call host code directly: every notification is
// dispatched onto the Loop and reaches the host through its Outlet.
//
// Four objects are provided:
//
//	ParameterServer  rcp server side: websocket server, tunnel, raw pipe
//	ParameterClient  rcp client side: websocket client, raw pipe
//	WebsocketServer  plain websocket server for arbitrary bytes
//	WebsocketClient  plain websocket client for bytes and text
//
// Methods of these objects are meant to be called from the host goroutine.
package host
