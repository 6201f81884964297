package net

import (
	"errors"
	"io"
	gonet "net"
	"sync"
	"sync/atomic"
	"time"

	"snake-arena/server/internal/net/proto"
	"snake-arena/server/internal/net/session"
	"snake-arena/server/internal/telemetry"
	"snake-arena/server/logging"
)

// TransportTCP names the raw line transport in events and diagnostics.
const TransportTCP = "tcp"

const readChunk = 4096

// TCPConfig configures the line-protocol listener.
type TCPConfig struct {
	Address   string
	Publisher logging.Publisher
	Logger    telemetry.Logger
}

// TCPServer accepts line-protocol clients and runs one session each.
type TCPServer struct {
	hub      session.Hub
	config   TCPConfig
	listener gonet.Listener

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	connsMu sync.Mutex
	conns   map[*tcpConn]struct{}
}

// ListenTCP binds cfg.Address. Call Serve to start accepting.
func ListenTCP(h session.Hub, cfg TCPConfig) (*TCPServer, error) {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.LoggerFunc(nil)
	}
	ln, err := gonet.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, err
	}
	s := &TCPServer{
		hub:      h,
		config:   cfg,
		listener: ln,
		stopCh:   make(chan struct{}),
		conns:    make(map[*tcpConn]struct{}),
	}
	s.running.Store(true)
	return s, nil
}

// Addr returns the bound address.
func (s *TCPServer) Addr() gonet.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until Close.
func (s *TCPServer) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return nil
			default:
			}
			if errors.Is(err, gonet.ErrClosed) {
				return nil
			}
			s.config.Logger.Printf("[tcp] accept failed: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		c := newTCPConn(conn)
		s.track(c, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(c, false)
			err := session.Serve(s.hub, c, session.Config{
				Transport: TransportTCP,
				Publisher: s.config.Publisher,
				Logger:    s.config.Logger,
			})
			if err != nil && !errors.Is(err, gonet.ErrClosed) {
				s.config.Logger.Printf("[tcp] session %s ended: %v", c.RemoteAddr(), err)
			}
			_ = c.Close()
		}()
	}
}

// Close stops accepting, drops every open connection and waits for the
// sessions to finish.
func (s *TCPServer) Close() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	close(s.stopCh)
	err := s.listener.Close()

	s.connsMu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return err
}

func (s *TCPServer) track(c *tcpConn, add bool) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// tcpConn adapts a stream socket to session.LineConn. Partial lines are held
// in a line buffer until their terminator arrives.
type tcpConn struct {
	conn  gonet.Conn
	lines *proto.LineBuffer
	ready [][]byte
	buf   []byte
}

func newTCPConn(conn gonet.Conn) *tcpConn {
	return &tcpConn{
		conn:  conn,
		lines: proto.NewLineBuffer(proto.DefaultMaxLine),
		buf:   make([]byte, readChunk),
	}
}

func (c *tcpConn) ReadLine() ([]byte, error) {
	for len(c.ready) == 0 {
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			c.ready = append(c.ready, c.lines.Feed(c.buf[:n])...)
		}
		if err != nil {
			if len(c.ready) > 0 {
				break
			}
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
	}
	line := c.ready[0]
	c.ready = c.ready[1:]
	return line, nil
}

func (c *tcpConn) Write(data []byte) error {
	_, err := c.conn.Write(data)
	return err
}

func (c *tcpConn) SetWriteDeadline(deadline time.Time) error {
	return c.conn.SetWriteDeadline(deadline)
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
