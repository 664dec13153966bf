// Package pipenet is an in-process net.Listener built on net.Pipe. It lets
// provisioner clients and handlers talk over real HTTP in tests without
// opening sockets.
//
//	ln := pipenet.Listen()
//	srv := &http.Server{Handler: mux}
//	go srv.Serve(ln)
//	client := provision.NewClient(ln.Client(), pipenet.BaseURL)
package pipenet

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
)

// BaseURL is a placeholder URL for clients dialing a Listener. Any host works.
const BaseURL = "http://pipe"

// ErrClosed is returned by Accept and Dial once the listener is closed.
var ErrClosed = errors.New("pipenet: listener closed")

// Listener hands the server end of each dialed pipe to Accept.
type Listener struct {
	conns     chan net.Conn
	closeOnce sync.Once
	done      chan struct{}
}

// Listen creates a Listener.
func Listen() *Listener {
	return &Listener{
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}
}

// Accept implements net.Listener.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, ErrClosed
	}
}

// Close implements net.Listener. It is safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

// Addr implements net.Listener.
func (l *Listener) Addr() net.Addr {
	return pipeAddr{}
}

// Dial connects to the listener. Network and address are ignored so Dial can
// be used as http.Transport.DialContext.
func (l *Listener) Dial(ctx context.Context, _, _ string) (net.Conn, error) {
	server, client := net.Pipe()
	select {
	case l.conns <- server:
		return client, nil
	case <-l.done:
	case <-ctx.Done():
	}
	server.Close()
	client.Close()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrClosed
}

// Client returns an HTTP/1.1 client that dials through the listener.
func (l *Listener) Client() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext:       l.Dial,
			ForceAttemptHTTP2: false,
		},
	}
}

// Serve runs handler on a new Listener and returns a client for it together
// with a function that stops the server.
func Serve(handler http.Handler) (*http.Client, func()) {
	ln := Listen()
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)

	return ln.Client(), func() {
		srv.Shutdown(context.Background())
		ln.Close()
	}
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "pipe" }
