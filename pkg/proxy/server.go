// Package proxy is a transparent TCP proxy for SSH that fingerprints each
// client's KEXINIT on the way through and drops blocked clients.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"sshwire/pkg/filter"
	"sshwire/pkg/kexinit"
	"sshwire/pkg/storage"
)

// Store is the persistence the proxy needs. *storage.Repository satisfies it.
type Store interface {
	LoadBlockedHashes() ([]string, error)
	RecordHandshake(storage.HandshakeRecord) error
}

// Options configure a Server.
type Options struct {
	ListenAddr string
	TargetAddr string
	Hash       kexinit.HashAlgorithm

	// ProxyProtocol prefixes every upstream connection with a PROXY v2 header
	ProxyProtocol bool

	DialTimeout time.Duration

	// Events is optional
	Events EventLog
	Logger *log.Logger
}

// Server is a transparent SSH proxy with HASSH fingerprinting
type Server struct {
	opts        Options
	store       Store
	blocklist   *filter.Blocklist
	logger      *log.Logger
	connCounter atomic.Uint64
	wg          sync.WaitGroup
}

// NewServer creates a proxy server and loads the blocklist.
func NewServer(opts Options, store Store) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}

	s := &Server{
		opts:      opts,
		store:     store,
		blocklist: filter.New(0, filter.DefaultFalsePositiveRate),
		logger:    opts.Logger,
	}

	if err := s.Reload(); err != nil {
		return nil, fmt.Errorf("failed to load initial blocklist: %w", err)
	}
	return s, nil
}

// Reload loads blocked fingerprints from the store into the filter.
func (s *Server) Reload() error {
	hashes, err := s.store.LoadBlockedHashes()
	if err != nil {
		return err
	}

	s.blocklist.Reload(hashes)
	s.logger.Printf("Blocklist loaded: %d unique HASSH fingerprints", s.blocklist.Count())
	return nil
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Printf("SSH proxy listening on %s -> %s", listener.Addr(), s.opts.TargetAddr)

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)
	go s.handleReloads(ctx, reload)

	return s.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is done, then waits for
// open connections to finish.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()
	defer s.wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Printf("Accept error: %v", err)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleReloads(ctx context.Context, reload <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-reload:
			s.logger.Println("Received SIGHUP, reloading blocklist...")
			if err := s.Reload(); err != nil {
				s.logger.Printf("Failed to reload blocklist: %v", err)
			}
		}
	}
}

// onHandshake decides and records one captured client handshake.
func (s *Server) onHandshake(connID uint64, c *Capture) bool {
	blocked := s.blocklist.Contains(c.Fingerprint)
	client := c.RemoteAddr

	if s.opts.Events != nil {
		_ = s.opts.Events.LogHandshake(connID, client, c)
		_ = s.opts.Events.LogConnection(connID, client, s.opts.TargetAddr, blocked)
	}

	// recording must not hold up the client stream
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.store.RecordHandshake(storage.HandshakeRecord{
			SessionID:   uuid.New(),
			RemoteAddr:  client,
			Fingerprint: c.Fingerprint,
			Banner:      c.Version,
			KexInit:     c.KexInit,
			Blocked:     blocked,
		})
		if err != nil {
			s.logger.Printf("[conn:%d] Failed to record handshake: %v", connID, err)
		}
	}()

	status := "ALLOWED"
	if blocked {
		status = "BLOCKED"
	}
	s.logger.Printf("[conn:%d] %s: %s (HASSH: %s, Banner: %s)",
		connID, status, client, c.Fingerprint, c.Version.Line())
	return blocked
}

// handleConnection processes a single SSH connection
func (s *Server) handleConnection(ctx context.Context, clientConn net.Conn) {
	defer clientConn.Close()

	connID := s.connCounter.Add(1)
	client := clientConn.RemoteAddr().String()

	wrapped := NewSSHConn(clientConn, s.opts.Hash, func(c *Capture) bool {
		return s.onHandshake(connID, c)
	})
	wrapped.OnMalformed(func(err error) {
		s.logger.Printf("[conn:%d] Could not fingerprint %s: %v", connID, client, err)
		if s.opts.Events != nil {
			_ = s.opts.Events.LogMalformed(connID, client, err)
		}
	})

	dialer := net.Dialer{Timeout: s.opts.DialTimeout}
	upstream, err := dialer.DialContext(ctx, "tcp", s.opts.TargetAddr)
	if err != nil {
		s.logger.Printf("[conn:%d] Failed to connect to upstream: %v", connID, err)
		return
	}
	defer upstream.Close()

	if s.opts.ProxyProtocol {
		header, err := buildProxyProtocolV2Header(clientConn.RemoteAddr(), clientConn.LocalAddr())
		if err != nil {
			s.logger.Printf("[conn:%d] PROXY header: %v", connID, err)
			return
		}
		if _, err := upstream.Write(header); err != nil {
			s.logger.Printf("[conn:%d] Failed to send PROXY header: %v", connID, err)
			return
		}
	}

	s.logger.Printf("[conn:%d] Proxying %s -> %s", connID, client, s.opts.TargetAddr)

	errChan := make(chan error, 2)
	go func() {
		_, err := io.Copy(upstream, wrapped)
		errChan <- err
	}()
	go func() {
		_, err := io.Copy(clientConn, upstream)
		errChan <- err
	}()

	// either direction finishing tears down both
	select {
	case err = <-errChan:
	case <-ctx.Done():
	}
	clientConn.Close()
	upstream.Close()

	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		s.logger.Printf("[conn:%d] Proxy error: %v", connID, err)
	}
	if s.opts.Events != nil {
		_ = s.opts.Events.LogDisconnect(connID, client)
	}
}
