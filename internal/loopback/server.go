// Package loopback provides a single-use HTTP(S) server bound to an
// ephemeral local port. It accepts exactly one connection, performs at most
// one TLS handshake restricted to a configured protocol set, answers one
// request and shuts down.
package loopback

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sufield/tlsprobe/internal/adapters/logging"
	"github.com/sufield/tlsprobe/internal/certs"
	"github.com/sufield/tlsprobe/internal/core/domain"
	coreErrors "github.com/sufield/tlsprobe/internal/core/errors"
	"github.com/sufield/tlsprobe/internal/core/ports"
)

const (
	// DefaultTimeout bounds the whole exchange when Options.Timeout is zero.
	DefaultTimeout = 30 * time.Second
	// DefaultBody is returned when Options.Body is empty.
	DefaultBody = "ok"
	// DefaultAddress binds an ephemeral loopback port.
	DefaultAddress = "127.0.0.1:0"
)

// Options configures one server. The server copies it on Listen; later
// changes by the caller have no effect.
type Options struct {
	Address     string `validate:"omitempty,listen_addr"`
	UseTLS      bool
	Protocols   domain.ProtocolSet `validate:"protocols"`
	Certificate *tls.Certificate   `validate:"-"`
	StatusCode  int                `validate:"omitempty,min=100,max=599"`
	Body        string
	Headers     map[string]string
	Timeout     time.Duration         `validate:"duration"`
	Logger      *slog.Logger          `validate:"-"`
	Metrics     ports.MetricsReporter `validate:"-"`
}

// Server is a loopback peer for exactly one client connection.
type Server struct {
	opts      Options
	listener  net.Listener
	tlsConfig *tls.Config
	url       string
	logger    *slog.Logger
	metrics   ports.MetricsReporter

	used atomic.Bool
	done chan struct{}

	mu        sync.Mutex
	handshake *domain.HandshakeResult
	err       error
}

// Listen validates opts and binds the listener. The returned server's URL is
// connectable immediately; nothing is accepted until ServeOnce runs.
func Listen(opts Options) (*Server, error) {
	if err := domain.ValidateStruct(opts); err != nil {
		return nil, coreErrors.NewDomainError(coreErrors.ErrInvalidOptions, err)
	}

	s := &Server{
		opts:    opts,
		logger:  logging.OrDefault(opts.Logger).With("component", "loopback"),
		metrics: ports.OrNoOp(opts.Metrics),
		done:    make(chan struct{}),
	}
	if opts.Headers != nil {
		s.opts.Headers = make(map[string]string, len(opts.Headers))
		for k, v := range opts.Headers {
			s.opts.Headers[k] = v
		}
	}

	scheme := "http"
	if opts.UseTLS {
		cfg, err := serverTLSConfig(opts)
		if err != nil {
			return nil, err
		}
		s.tlsConfig = cfg
		scheme = "https"
	}

	address := opts.Address
	if address == "" {
		address = DefaultAddress
	}
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, coreErrors.NewDomainError(coreErrors.ErrBindFailed, err)
	}
	s.listener = listener
	s.url = fmt.Sprintf("%s://%s/", scheme, listener.Addr().String())

	s.logger.Debug("Loopback server listening",
		"url", s.url,
		"tls", opts.UseTLS,
		"protocols", opts.Protocols.String())

	return s, nil
}

func serverTLSConfig(opts Options) (*tls.Config, error) {
	cert := opts.Certificate
	if cert == nil {
		id, err := certs.Generate(certs.KindSelfSigned, certs.Options{})
		if err != nil {
			return nil, fmt.Errorf("generate loopback certificate: %w", err)
		}
		cert = &id.Certificate
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{*cert},
	}
	if err := opts.Protocols.Apply(cfg); err != nil {
		return nil, coreErrors.NewDomainError(coreErrors.ErrInvalidOptions, err)
	}
	if opts.Protocols.IsNone() {
		// Unrestricted accepts anything the client offers, down to TLS 1.0.
		cfg.MinVersion = tls.VersionTLS10
	}
	return cfg, nil
}

// Start binds a server and serves its one connection in the background.
// Wait observes the result.
func Start(ctx context.Context, opts Options) (*Server, error) {
	s, err := Listen(opts)
	if err != nil {
		return nil, err
	}
	go func() {
		_ = s.ServeOnce(ctx)
	}()
	return s, nil
}

// URL returns the address clients should request.
func (s *Server) URL() string {
	return s.url
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Handshake returns the negotiated session once a TLS exchange succeeded.
func (s *Server) Handshake() (domain.HandshakeResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handshake == nil {
		return domain.HandshakeResult{}, false
	}
	return *s.handshake, true
}

// Done is closed when ServeOnce returns.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until ServeOnce finishes or ctx ends, and returns its result.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the listener. It is safe to call at any time.
func (s *Server) Close() error {
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close loopback listener: %w", err)
	}
	return nil
}

// ServeOnce accepts one connection, optionally performs the TLS handshake,
// reads one request and writes one response. The listener is closed as soon
// as the connection is accepted, so a second client is refused. Calling it
// again returns ErrServerUsed.
func (s *Server) ServeOnce(ctx context.Context) error {
	if !s.used.CompareAndSwap(false, true) {
		return coreErrors.NewDomainError(coreErrors.ErrServerUsed, nil)
	}

	err := s.serve(ctx)

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)

	if err != nil {
		s.logger.Debug("Loopback exchange failed", "error", err)
	}
	return err
}

func (s *Server) serve(ctx context.Context) error {
	timeout := s.opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stopListener := context.AfterFunc(ctx, func() { _ = s.listener.Close() })
	defer stopListener()

	conn, err := s.listener.Accept()
	_ = s.Close()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return coreErrors.NewDomainError(coreErrors.ErrConnectionFailed, fmt.Errorf("accept: %w", err))
	}
	defer conn.Close()

	stopConn := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopConn()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	var rw net.Conn = conn
	if s.opts.UseTLS {
		tlsConn, err := s.handshakeTLS(ctx, conn)
		if err != nil {
			return err
		}
		defer tlsConn.Close()
		rw = tlsConn
	}

	return s.exchange(rw)
}

func (s *Server) handshakeTLS(ctx context.Context, conn net.Conn) (*tls.Conn, error) {
	tlsConn := tls.Server(conn, s.tlsConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		s.metrics.RecordHandshake(ports.SideServer, "none", false)
		if domain.IsPeerCertificateRejection(err) {
			return nil, coreErrors.NewDomainError(coreErrors.ErrCertificateRejected, fmt.Errorf("peer rejected server certificate: %w", err))
		}
		return nil, coreErrors.NewDomainError(coreErrors.ErrHandshakeFailed, err)
	}

	result := domain.NewHandshakeResult(tlsConn.ConnectionState())
	s.mu.Lock()
	s.handshake = &result
	s.mu.Unlock()

	s.metrics.RecordHandshake(ports.SideServer, result.Version.String(), true)
	s.logger.Debug("Loopback handshake complete",
		"version", result.Version.String(),
		"cipher_suite", result.CipherSuite)
	return tlsConn, nil
}

func (s *Server) exchange(conn net.Conn) error {
	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		return coreErrors.NewDomainError(coreErrors.ErrProtocol, fmt.Errorf("read request: %w", err))
	}
	if _, err := io.Copy(io.Discard, req.Body); err != nil {
		return coreErrors.NewDomainError(coreErrors.ErrProtocol, fmt.Errorf("read request body: %w", err))
	}
	_ = req.Body.Close()

	status := s.opts.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	body := s.opts.Body
	if body == "" {
		body = DefaultBody
	}

	resp := &http.Response{
		StatusCode:    status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		ContentLength: int64(len(body)),
		Body:          io.NopCloser(strings.NewReader(body)),
		Close:         true,
		Request:       req,
	}
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	for k, v := range s.opts.Headers {
		resp.Header.Set(k, v)
	}

	if err := resp.Write(conn); err != nil {
		return coreErrors.NewDomainError(coreErrors.ErrConnectionFailed, fmt.Errorf("write response: %w", err))
	}

	s.logger.Debug("Loopback request served",
		"method", req.Method,
		"path", req.URL.Path,
		"status", status)
	return nil
}
