package client

import "errors"

var (
	// ErrNotConnected is returned by Send when no connection is open.
	ErrNotConnected = errors.New("client: not connected")

	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("client: transport closed")
)
