// Package rcptest provides test doubles for rcpbridge transports.
//
// Listeners record every callback as an Event on a buffered channel so tests
// can wait for them with a timeout:
//
//	l := rcptest.NewServerListener()
//	srv := server.New(nil, l)
//	srv.Bind(0)
//	defer srv.Unbind()
//
//	ws := rcptest.Dial(t, rcptest.WSURL(srv.Port(), "/"))
//	l.Expect(t, rcptest.EventConnected)
//
// Engine records Received calls from transporters, Outlet records host
// output, and NewWSServer starts an httptest websocket endpoint for client
// side tests.
package rcptest
