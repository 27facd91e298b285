// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/chilts/sid"
	"go.uber.org/zap"

	"github.com/lirios/radicle-httpd/internal/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second

	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Server serves a handler over TCP or a unix socket
type Server struct {
	address ListenAddress
	server  *http.Server

	// unix connections being served
	conns sync.WaitGroup
}

// NewServer creates a new Server
func NewServer(address ListenAddress, handler http.Handler) *Server {
	return &Server{
		address: address,
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			ConnContext:       connContext,
			ErrorLog:          zap.NewStdLog(logger.Logger()),
		},
	}
}

// Listen opens the listener, removing a stale socket file first
func (s *Server) Listen() (net.Listener, error) {
	if s.address.IsUnix() {
		if err := os.Remove(s.address.Address); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale socket %s: %w", s.address.Address, err)
		}
	}

	l, err := net.Listen(s.address.Network, s.address.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return l, nil
}

// Serve serves connections from l until ctx is cancelled, then shuts down
// gracefully. A nil error means a clean shutdown.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	logger.Actionf("Listening on %v", s.address)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			s.shutdown(l)
		case <-done:
		}
	}()

	var err error
	if s.address.IsUnix() {
		err = s.acceptLoop(ctx, l)
		if !errors.Is(err, net.ErrClosed) {
			s.server.Close()
		}
		s.conns.Wait()
	} else {
		err = s.server.Serve(l)
	}
	close(done)
	<-stopped

	if errors.Is(err, http.ErrServerClosed) || (ctx.Err() != nil && errors.Is(err, net.ErrClosed)) {
		return nil
	}
	return err
}

func (s *Server) shutdown(l net.Listener) {
	logger.Action("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	l.Close()
	if err := s.server.Shutdown(ctx); err != nil {
		logger.Warningf("Failed to shut down gracefully: %v", err)
		s.server.Close()
	}
	if s.address.IsUnix() {
		os.Remove(s.address.Address)
	}
}

// temporary reports whether an accept error is worth retrying
func temporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}

// acceptLoop drives each unix connection on its own goroutine
func (s *Server) acceptLoop(ctx context.Context, l net.Listener) error {
	backoff := time.Duration(0)

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return net.ErrClosed
			}
			if temporary(err) {
				if backoff == 0 {
					backoff = minAcceptBackoff
				} else if backoff *= 2; backoff > maxAcceptBackoff {
					backoff = maxAcceptBackoff
				}
				logger.Warningf("Failed to accept connection: %v; retrying in %v", err, backoff)
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}
		backoff = 0

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.serveConn(conn)
		}()
	}
}

// serveConn serves the requests of a single connection until it closes
func (s *Server) serveConn(conn net.Conn) {
	id := sid.IdBase64()

	defer func() {
		if rvr := recover(); rvr != nil {
			logger.Errorf("Connection %s panicked: %v\n%s", id, rvr, debug.Stack())
			conn.Close()
		}
	}()

	logger.Debugf("Connection %s opened", id)
	l := newConnListener(conn)
	if err := s.server.Serve(l); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		logger.Warningf("Connection %s failed: %v", id, err)
	}
	if !l.served() {
		// The server shut down before picking the connection up
		l.conn.Close()
	}
	<-l.closed
	logger.Debugf("Connection %s closed", id)
}

// connListener is a listener yielding a single connection
type connListener struct {
	conn   net.Conn
	accept chan net.Conn

	// closed once the connection is closed
	closed    chan struct{}
	closeConn sync.Once

	// closed once the listener is closed
	done      chan struct{}
	closeDone sync.Once
}

func newConnListener(conn net.Conn) *connListener {
	l := &connListener{
		accept: make(chan net.Conn, 1),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	l.conn = &trackedConn{Conn: conn, onClose: func() {
		l.closeConn.Do(func() { close(l.closed) })
	}}
	l.accept <- l.conn
	return l
}

func (l *connListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.accept:
		return conn, nil
	default:
	}

	select {
	case <-l.closed:
	case <-l.done:
	}
	return nil, net.ErrClosed
}

func (l *connListener) served() bool {
	return len(l.accept) == 0
}

// Close stops accepting; the connection itself stays with net/http
func (l *connListener) Close() error {
	l.closeDone.Do(func() { close(l.done) })
	return nil
}

func (l *connListener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// trackedConn reports when net/http is done with a connection
type trackedConn struct {
	net.Conn
	onClose func()
}

func (c *trackedConn) Close() error {
	err := c.Conn.Close()
	c.onClose()
	return err
}
