// Package server provides the websocket server transport of rcpbridge.
//
// A Transport accepts any number of concurrent websocket clients and
// serializes everything they do into one ordered stream for the engine.
//
// # Architecture
//
// Each bound Transport runs:
//   - an accept goroutine: net.Listen plus http.Server.Serve on a chi router
//     that upgrades requests with gorilla/websocket
//   - one read goroutine per connection: reads frames and pushes Actions
//   - a processing goroutine: pops Actions in FIFO order, mutates the
//     ConnectionRegistry and invokes the Listener
//
// Listener callbacks are only ever invoked from the processing goroutine.
// Nothing on an I/O goroutine calls into the engine directly.
//
// # Action Flow
//
// When a client connects, sends, and leaves:
//  1. the upgrade handler pushes a Subscribe action
//  2. each binary frame is pushed as a Message action (text frames are dropped)
//  3. read failure pushes an Unsubscribe action
//  4. the processing goroutine adds to or removes from the registry and calls
//     Connected, Received or Disconnected
//
// # Teardown
//
// Unbind closes the listener and every live connection, stops and drains the
// queue, and waits for the goroutines above. It may be called from inside a
// Listener callback; in that case it does not wait for the processing
// goroutine, which returns as soon as the callback does.
package server
