// Package tunnel keeps an outbound websocket connection to a tunnel relay
// alive.
//
// A Controller wraps a client.Transport with a reconnect state machine:
//
//	Disconnected --Connect--> Connecting --open--> Connected
//	                              |                    |
//	                           failed              closed
//	                              v                    v
//	                           Backoff <---------------+
//	                              |
//	                        timer fires
//	                              v
//	                          Connecting
//
// Retries use a fixed interval. An interval <= 0 turns retrying off and
// drops the current connection. At most one retry timer is armed at any
// time.
package tunnel
