package rcptest

import (
	"github.com/rabbitcontrol/rcpbridge/pkg/transport"
)

// ServerListener records server transport callbacks.
type ServerListener struct {
	Recorder
}

// NewServerListener creates a ServerListener.
func NewServerListener() *ServerListener {
	return &ServerListener{Recorder: newRecorder()}
}

func (l *ServerListener) Connected(id transport.Identity) {
	l.record(Event{Kind: EventConnected, ID: id})
}

func (l *ServerListener) Disconnected(id transport.Identity) {
	l.record(Event{Kind: EventDisconnected, ID: id})
}

func (l *ServerListener) Received(data []byte, id transport.Identity) {
	l.record(Event{Kind: EventReceived, ID: id, Data: data})
}

func (l *ServerListener) SocketError(err error) {
	l.record(Event{Kind: EventSocketError, Err: err})
}

// ClientListener records client transport callbacks.
type ClientListener struct {
	Recorder
}

// NewClientListener creates a ClientListener.
func NewClientListener() *ClientListener {
	return &ClientListener{Recorder: newRecorder()}
}

func (l *ClientListener) Connected() {
	l.record(Event{Kind: EventConnected})
}

func (l *ClientListener) Failed(code int) {
	l.record(Event{Kind: EventFailed, Code: code})
}

func (l *ClientListener) Disconnected(code int) {
	l.record(Event{Kind: EventDisconnected, Code: code})
}

func (l *ClientListener) Received(data []byte) {
	l.record(Event{Kind: EventReceived, Data: data})
}

func (l *ClientListener) ReceivedText(text string) {
	l.record(Event{Kind: EventReceivedText, Text: text})
}

// Engine records packets handed to the engine by transporters.
type Engine struct {
	Recorder
}

// NewEngine creates an Engine.
func NewEngine() *Engine {
	return &Engine{Recorder: newRecorder()}
}

// Received implements transport.Receiver.
func (e *Engine) Received(_ transport.Transporter, data []byte, id transport.Identity) {
	e.record(Event{Kind: EventReceived, ID: id, Data: data})
}

// Outlet records host output.
type Outlet struct {
	Recorder
}

// NewOutlet creates an Outlet.
func NewOutlet() *Outlet {
	return &Outlet{Recorder: newRecorder()}
}

func (o *Outlet) Data(data []byte) {
	o.record(Event{Kind: EventData, Data: data})
}

func (o *Outlet) Text(text string) {
	o.record(Event{Kind: EventReceivedText, Text: text})
}

func (o *Outlet) Connected(connected bool) {
	kind := EventDisconnected
	if connected {
		kind = EventConnected
	}
	o.record(Event{Kind: kind})
}

func (o *Outlet) Connections(n int) {
	o.record(Event{Kind: EventConnections, Code: n})
}

func (o *Outlet) Port(port int) {
	o.record(Event{Kind: EventPort, Code: port})
}

// Transporter is a recording transport.Transporter.
type Transporter struct {
	Recorder
	ListenPort uint16
	Listening  bool
}

// NewTransporter creates a Transporter that reports itself listening.
func NewTransporter() *Transporter {
	return &Transporter{Recorder: newRecorder(), Listening: true}
}

func (t *Transporter) SendToOne(id transport.Identity, data []byte) {
	t.record(Event{Kind: "send_one", ID: id, Data: data})
}

func (t *Transporter) SendToAllExcept(exclude transport.Identity, data []byte) {
	t.record(Event{Kind: "send_all", ID: exclude, Data: data})
}

func (t *Transporter) Bind(port uint16) error {
	t.ListenPort = port
	return nil
}

func (t *Transporter) Unbind()           {}
func (t *Transporter) Port() uint16      { return t.ListenPort }
func (t *Transporter) IsListening() bool { return t.Listening }

// PeerListener records the callbacks of a single-peer transport such as the
// tunnel.
type PeerListener struct {
	Recorder
}

// NewPeerListener creates a PeerListener.
func NewPeerListener() *PeerListener {
	return &PeerListener{Recorder: newRecorder()}
}

func (l *PeerListener) Connected() {
	l.record(Event{Kind: EventConnected})
}

func (l *PeerListener) Disconnected() {
	l.record(Event{Kind: EventDisconnected})
}

func (l *PeerListener) Received(data []byte) {
	l.record(Event{Kind: EventReceived, Data: data})
}
