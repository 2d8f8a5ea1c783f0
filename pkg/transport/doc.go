// Package transport defines the contract between the rabbitcontrol engine and
// the network bindings that carry its packets.
//
// An engine talks to every binding through a Transporter: it can address a
// single connection, broadcast to every connection, or broadcast to every
// connection except one. Bindings hand inbound bytes back through a Receiver.
// Connections are named by an opaque Identity; the nil Identity stands for
// "no particular connection" and is what single-peer bindings (tunnel, client,
// host) report for everything they receive.
package transport
