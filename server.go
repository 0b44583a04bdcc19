package asyncrt

import (
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// Server is a cooperative TCP listener (spec component H, "Server" in
// original_source/src/tcp.c): Listen and Accept each suspend the calling
// Task the same way Socket.Read/Write do.
type Server struct {
	ln net.Listener

	mu         sync.Mutex
	acceptBusy bool
	closed     bool
}

// Listen binds addr on network ("tcp", "tcp4", "tcp6") and suspends self
// until the bind succeeds or fails. Once bound, on a *net.TCPListener it
// best-effort sets SO_REUSEADDR via golang.org/x/sys/unix; the option is
// applied after the bind, so it does not affect this listener's own bind.
func Listen(self suspender, network, addr string) (*Server, error) {
	v, err := self.Await(func(op *Op) {
		go func() {
			ln, e := net.Listen(network, addr)
			if e != nil {
				op.Fail(&SocketError{Op: "listen", Addr: addr, Err: e})
				return
			}
			_ = tuneListener(ln)
			op.Resolve(ln)
		}()
	})
	if err != nil {
		return nil, err
	}
	return &Server{ln: v.(net.Listener)}, nil
}

func tuneListener(ln net.Listener) error {
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return nil
	}
	raw, err := tcpLn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}); err != nil {
		return err
	}
	return sockErr
}

// Addr returns the address the Server is bound to.
func (srv *Server) Addr() net.Addr { return srv.ln.Addr() }

// Accept suspends self until a connection arrives, the Server closes, or
// Context cancellation detaches the pending accept. At most one Accept may
// be in flight at a time.
func (srv *Server) Accept(self suspender) (*Socket, error) {
	srv.mu.Lock()
	if srv.closed {
		srv.mu.Unlock()
		return nil, ErrStreamClosed
	}
	if srv.acceptBusy {
		srv.mu.Unlock()
		return nil, ErrPendingRead
	}
	srv.acceptBusy = true
	srv.mu.Unlock()
	defer func() {
		srv.mu.Lock()
		srv.acceptBusy = false
		srv.mu.Unlock()
	}()

	v, err := self.Await(func(op *Op) {
		go func() {
			conn, e := srv.ln.Accept()
			if e != nil {
				op.Fail(&SocketError{Op: "accept", Err: e})
				return
			}
			op.Resolve(conn)
		}()
	})
	if err != nil {
		return nil, err
	}
	return NewSocket(v.(net.Conn)), nil
}

// AcceptEncrypted accepts a connection and immediately performs a server-side
// TLS handshake against it using enc, suspending self across both steps.
func (srv *Server) AcceptEncrypted(self suspender, enc *ServerEncryption) (*Socket, error) {
	sock, err := srv.Accept(self)
	if err != nil {
		return nil, err
	}
	if err := sock.encryptServer(self, enc); err != nil {
		_ = sock.Close()
		return nil, err
	}
	return sock, nil
}

// Close closes the Server idempotently.
func (srv *Server) Close() error {
	srv.mu.Lock()
	if srv.closed {
		srv.mu.Unlock()
		return nil
	}
	srv.closed = true
	srv.mu.Unlock()
	return srv.ln.Close()
}
