package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cezmen/chronos/internal/audit"
	"github.com/cezmen/chronos/internal/frame"
	"github.com/cezmen/chronos/internal/metrics"
	"github.com/cezmen/chronos/internal/ringbuf"
)

// Defaults applied to zero Config fields.
const (
	DefaultFIFOSize    = 16384
	DefaultRxBufferLen = 1024
	DefaultTxChunkLen  = 1024
	DefaultTick        = 100 * time.Millisecond
)

// KeepAlive holds TCP keep-alive probing parameters.
type KeepAlive struct {
	Enabled  bool
	Idle     time.Duration
	Interval time.Duration
	Count    int
}

// Config configures a Server.
type Config struct {
	Addr          string
	AllowedCIDRs  []string
	RxBufferLen   int
	TxChunkLen    int
	FIFOSize      int
	FrameCapacity int
	KeepAlive     KeepAlive
	Tick          time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithAuditLogger records session events in a.
func WithAuditLogger(a AuditLogger) Option {
	return func(s *Server) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithRecorder reports traffic to r.
func WithRecorder(r Recorder) Option {
	return func(s *Server) {
		if r != nil {
			s.recorder = r
		}
	}
}

// Server is the single-connection command console.
type Server struct {
	cfg        Config
	allowed    []*net.IPNet
	dispatcher Dispatcher
	logger     *zap.Logger
	audit      AuditLogger
	recorder   Recorder

	// mu guards both ring buffers and conn.
	mu   sync.Mutex
	in   *ringbuf.Buffer
	out  *ringbuf.Buffer
	conn net.Conn

	// asm is owned by the input goroutine.
	asm         *frame.Assembler
	lastDropped uint64

	lnMu     sync.Mutex
	listener net.Listener

	stopChan  chan struct{}
	closeOnce sync.Once

	overflowLog rate.Sometimes
}

// NewServer creates a console server that hands frames to dispatcher.
func NewServer(cfg Config, dispatcher Dispatcher, logger *zap.Logger, opts ...Option) (*Server, error) {
	if cfg.FIFOSize == 0 {
		cfg.FIFOSize = DefaultFIFOSize
	}
	if cfg.RxBufferLen == 0 {
		cfg.RxBufferLen = DefaultRxBufferLen
	}
	if cfg.TxChunkLen == 0 {
		cfg.TxChunkLen = DefaultTxChunkLen
	}
	if cfg.FrameCapacity == 0 {
		cfg.FrameCapacity = frame.DefaultCapacity
	}
	if cfg.Tick == 0 {
		cfg.Tick = DefaultTick
	}

	var allowed []*net.IPNet
	for _, cidr := range cfg.AllowedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed CIDR %q: %w", cidr, err)
		}
		allowed = append(allowed, network)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:         cfg,
		allowed:     allowed,
		dispatcher:  dispatcher,
		logger:      logger.Named("console"),
		audit:       nopAudit{},
		recorder:    nopRecorder{},
		in:          ringbuf.New(cfg.FIFOSize),
		out:         ringbuf.New(cfg.FIFOSize),
		asm:         frame.NewAssembler(cfg.FrameCapacity),
		stopChan:    make(chan struct{}),
		overflowLog: rate.Sometimes{Interval: time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Listen binds the listening socket. Serve calls it when needed.
func (s *Server) Listen() error {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()

	select {
	case <-s.stopChan:
		return net.ErrClosed
	default:
	}
	if s.listener != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = listener
	s.logger.Info("console listening", zap.Stringer("addr", listener.Addr()))
	return nil
}

// Addr returns the listener address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the output pump and accepts one connection at a time until ctx
// is done or Close is called. An in-flight command is cancelled on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.lnMu.Lock()
	listener := s.listener
	s.lnMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.stopChan:
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		s.runOutput(ctx)
	}()
	defer func() {
		_ = s.Close()
		cancel()
		wg.Wait()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.closing() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("failed to accept connection", zap.Error(err))
			select {
			case <-time.After(100 * time.Millisecond):
			case <-s.stopChan:
				return nil
			}
			continue
		}

		if !s.isAllowedConnection(conn) {
			s.logger.Warn("rejected connection outside allowed CIDRs", zap.Stringer("remote", conn.RemoteAddr()))
			s.recorder.SessionRejected()
			_ = conn.Close()
			continue
		}

		s.serveConn(ctx, conn)
	}
}

// Close stops both pumps and closes the listener and the active connection.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)

		s.lnMu.Lock()
		if s.listener != nil {
			if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
				err = cerr
			}
		}
		s.lnMu.Unlock()

		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.mu.Unlock()
	})
	return err
}

func (s *Server) closing() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

// serveConn runs one session on the calling goroutine.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	id := uuid.NewString()
	ctx = audit.WithRemote(audit.WithSession(ctx, id), conn.RemoteAddr().String())
	logger := s.logger.With(zap.String("session", id), zap.Stringer("remote", conn.RemoteAddr()))

	s.setKeepAlive(conn, logger)

	s.mu.Lock()
	s.asm.Reset()
	s.conn = conn
	s.mu.Unlock()

	if s.closing() {
		_ = conn.Close()
		return
	}

	logger.Info("client connected")
	s.recorder.SessionOpened()
	s.audit.LogSession(ctx, "connect")

	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.mu.Unlock()
		_ = conn.Close()

		s.recorder.SessionClosed()
		s.audit.LogSession(ctx, "disconnect")
		logger.Info("client disconnected")
	}()

	rx := make([]byte, s.cfg.RxBufferLen)
	for {
		n, err := conn.Read(rx)
		if n > 0 {
			s.recorder.BytesReceived(n)

			s.mu.Lock()
			accepted := s.in.Write(rx[:n])
			s.mu.Unlock()
			if dropped := n - accepted; dropped > 0 {
				s.dropped(logger, metrics.Inbound, dropped)
			}

			s.drainInbound(ctx, logger)
		}

		switch {
		case err == nil && n > 0:
			continue
		case err == nil, errors.Is(err, io.EOF):
			logger.Debug("client closed connection")
		case s.closing():
			logger.Debug("connection closed on shutdown")
		default:
			logger.Warn("receive failed", zap.Error(err))
		}
		return
	}
}

// drainInbound feeds every queued inbound byte through the assembler and
// dispatches completed frames. The lock is released while a frame is
// dispatched so the output pump and the sink can make progress.
func (s *Server) drainInbound(ctx context.Context, logger *zap.Logger) {
	for {
		s.mu.Lock()
		var (
			f  frame.Frame
			ok bool
		)
		for !ok {
			c, more := s.in.Get()
			if !more {
				break
			}
			f, ok = s.asm.Feed(c)
		}
		s.mu.Unlock()

		if !ok {
			return
		}

		s.recorder.FrameAssembled(f.Truncated)
		if f.Truncated {
			total := s.asm.Dropped()
			dropped := int(total - s.lastDropped)
			s.lastDropped = total
			logger.Warn("frame exceeded capacity and was truncated",
				zap.Int("kept", len(f.Payload)), zap.Int("dropped", dropped))
			s.recorder.BytesDropped(metrics.Frame, dropped)
		}

		if err := s.dispatcher.Dispatch(ctx, f.Payload, s); err != nil {
			logger.Debug("frame not completed", zap.Error(err))
		}
	}
}

// Append queues p for the client. Bytes that do not fit are dropped.
func (s *Server) Append(p []byte) {
	s.mu.Lock()
	accepted := s.out.Write(p)
	s.mu.Unlock()

	if dropped := len(p) - accepted; dropped > 0 {
		s.dropped(s.logger, metrics.Outbound, dropped)
	}
}

func (s *Server) dropped(logger *zap.Logger, direction string, n int) {
	s.recorder.BytesDropped(direction, n)
	s.overflowLog.Do(func() {
		logger.Warn("buffer full, dropping bytes", zap.String("direction", direction), zap.Int("bytes", n))
	})
}

// runOutput drains the outbound buffer every tick.
func (s *Server) runOutput(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	chunk := make([]byte, s.cfg.TxChunkLen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.flush(chunk)
		}
	}
}

// flush sends what was queued at the start of the call, one chunk at a
// time. The buffer is drained under the lock and written without it.
// Without a connection the drained bytes are discarded.
func (s *Server) flush(chunk []byte) {
	s.mu.Lock()
	pending := s.out.Len()
	s.mu.Unlock()

	s.recorder.OutboundBacklog(pending)

	var failed net.Conn
	for pending > 0 {
		s.mu.Lock()
		n := s.out.Read(chunk[:min(len(chunk), pending)])
		conn := s.conn
		s.mu.Unlock()

		if n == 0 {
			return
		}
		pending -= n

		if conn == nil || conn == failed {
			continue
		}
		written, err := writeFull(conn, chunk[:n])
		s.recorder.BytesSent(written)
		if err != nil {
			s.logger.Debug("send failed, discarding queued output", zap.Error(err))
			failed = conn
		}
	}
}

// writeFull writes p, retrying partial writes until all of p is sent.
func writeFull(w io.Writer, p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n, err := w.Write(p)
		total += n
		p = p[n:]
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

func (s *Server) setKeepAlive(conn net.Conn, logger *zap.Logger) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	ka := s.cfg.KeepAlive
	if err := tcp.SetKeepAliveConfig(net.KeepAliveConfig{
		Enable:   ka.Enabled,
		Idle:     ka.Idle,
		Interval: ka.Interval,
		Count:    ka.Count,
	}); err != nil {
		logger.Warn("failed to set keep-alive", zap.Error(err))
	}
}

// isAllowedConnection checks the peer against the allow-list. An empty
// list allows every peer.
func (s *Server) isAllowedConnection(conn net.Conn) bool {
	if len(s.allowed) == 0 {
		return true
	}

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return false
	}
	clientIP := net.ParseIP(host)
	if clientIP == nil {
		return false
	}

	for _, network := range s.allowed {
		if network.Contains(clientIP) {
			return true
		}
	}
	return false
}
