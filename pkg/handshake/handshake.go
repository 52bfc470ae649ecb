// Package handshake drives the plaintext start of an SSH connection: the
// identification exchange followed by the KEXINIT exchange. It stops before
// any key exchange math and reports what each side offered.
package handshake

import (
	"bufio"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/google/uuid"

	"sshwire/pkg/bpp"
	"sshwire/pkg/ident"
	"sshwire/pkg/kexinit"
	"sshwire/pkg/sshproto"
)

const (
	// DefaultTimeout bounds a whole handshake
	DefaultTimeout = 10 * time.Second

	// DefaultMaxPreambleLines caps the text a server may send before its identification
	DefaultMaxPreambleLines = 16

	// maxPackets caps the IGNORE/DEBUG packets tolerated before KEXINIT
	maxPackets = 32

	// blockSize pads outgoing packets as the unencrypted transport requires
	blockSize = 8
)

// ErrUnexpectedMessage is returned when the peer sends something other than
// KEXINIT, IGNORE or DEBUG before its KEXINIT.
var ErrUnexpectedMessage = errors.New("unexpected message before KEXINIT")

// Role decides which KEXINIT is the client's during negotiation.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}

// Config controls a handshake.
type Config struct {
	Version          ident.Version
	KexInit          *kexinit.KexInit
	Role             Role
	Timeout          time.Duration
	MaxPreambleLines int
	Hash             kexinit.HashAlgorithm

	// Rand supplies packet padding; crypto/rand when nil
	Rand io.Reader

	// Logger is optional
	Logger *log.Logger
}

// DefaultConfig returns a client configuration offering the default algorithms.
func DefaultConfig() (Config, error) {
	version, err := ident.New("2.0", "sshwire_1.0", "")
	if err != nil {
		return Config{}, err
	}

	k, err := kexinit.New(rand.Reader, kexinit.DefaultPreferences())
	if err != nil {
		return Config{}, err
	}

	return Config{
		Version:          version,
		KexInit:          k,
		Role:             RoleClient,
		Timeout:          DefaultTimeout,
		MaxPreambleLines: DefaultMaxPreambleLines,
		Hash:             kexinit.HashMD5,
	}, nil
}

// Result describes one completed KEXINIT exchange.
type Result struct {
	SessionID uuid.UUID
	Role      Role

	LocalVersion  ident.Version
	RemoteVersion ident.Version
	RemoteLine    string

	// Local and Remote are copies owned by the result
	Local  *kexinit.KexInit
	Remote *kexinit.KexInit

	// Algorithms is nil when negotiation failed; NegotiationErr says why
	Algorithms     *kexinit.Algorithms
	NegotiationErr error

	ClientHASSH string
	ServerHASSH string

	IgnoredPackets int
	Duration       time.Duration
}

// Client returns the KEXINIT sent by the client side.
func (r *Result) Client() *kexinit.KexInit {
	if r.Role == RoleServer {
		return r.Remote
	}
	return r.Local
}

// Server returns the KEXINIT sent by the server side.
func (r *Result) Server() *kexinit.KexInit {
	if r.Role == RoleServer {
		return r.Local
	}
	return r.Remote
}

func (cfg *Config) logf(format string, args ...any) {
	if cfg.Logger != nil {
		cfg.Logger.Printf(format, args...)
	}
}

// Run performs the exchange over conn. The whole exchange shares one deadline
// of cfg.Timeout; conn is left open and its deadline cleared on return.
func Run(conn net.Conn, cfg Config) (*Result, error) {
	if cfg.KexInit == nil {
		return nil, errors.New("handshake: no local KEXINIT configured")
	}
	if err := cfg.Version.Validate(); err != nil {
		return nil, fmt.Errorf("handshake: local identification: %w", err)
	}

	start := time.Now()
	result := &Result{
		SessionID:    uuid.New(),
		Role:         cfg.Role,
		LocalVersion: cfg.Version,
		Local:        cfg.KexInit.Clone(),
	}

	if cfg.Timeout > 0 {
		if err := conn.SetDeadline(start.Add(cfg.Timeout)); err != nil {
			return nil, fmt.Errorf("handshake: setting deadline: %w", err)
		}
		defer conn.SetDeadline(time.Time{})
	}

	cfg.logf("[session:%s] %s handshake with %s", result.SessionID, cfg.Role, conn.RemoteAddr())

	payload := result.Local.Encode()
	packet, err := bpp.NewPadded(payload, nil, blockSize)
	if err != nil {
		return nil, fmt.Errorf("handshake: framing KEXINIT: %w", err)
	}

	// Sending does not wait on the peer, so both directions run at once
	writeErr := make(chan error, 1)
	go func() {
		if _, err := io.WriteString(conn, cfg.Version.String()); err != nil {
			writeErr <- fmt.Errorf("%w: writing identification: %w", sshproto.ErrStreamIO, err)
			return
		}
		writeErr <- bpp.Write(conn, packet, cfg.Rand)
	}()

	remote, err := readRemote(bufio.NewReader(conn), &cfg, result)
	if err != nil {
		cfg.logf("[session:%s] handshake failed: %v", result.SessionID, err)
		// unblock a writer stuck on a peer that does not read
		conn.SetWriteDeadline(time.Now())
		<-writeErr
		return nil, err
	}

	if err := <-writeErr; err != nil {
		cfg.logf("[session:%s] sending failed: %v", result.SessionID, err)
		return nil, fmt.Errorf("handshake: %w", err)
	}

	result.Remote = remote

	client, server := result.Client(), result.Server()
	result.ClientHASSH = client.ClientFingerprint(cfg.Hash)
	result.ServerHASSH = server.ServerFingerprint(cfg.Hash)
	result.Algorithms, result.NegotiationErr = kexinit.Negotiate(client, server)
	result.Duration = time.Since(start)

	if result.NegotiationErr != nil {
		cfg.logf("[session:%s] negotiation failed: %v", result.SessionID, result.NegotiationErr)
	}
	cfg.logf("[session:%s] peer %q HASSH=%s HASSHServer=%s (%s)",
		result.SessionID, result.RemoteLine, result.ClientHASSH, result.ServerHASSH, result.Duration)

	return result, nil
}

// readRemote reads the peer identification and packets up to its KEXINIT.
func readRemote(r *bufio.Reader, cfg *Config, result *Result) (*kexinit.KexInit, error) {
	maxLines := cfg.MaxPreambleLines
	if maxLines <= 0 {
		maxLines = DefaultMaxPreambleLines
	}

	version, line, err := ident.ReadVersion(r, maxLines)
	if err != nil {
		return nil, fmt.Errorf("handshake: reading identification: %w", err)
	}
	result.RemoteVersion = version
	result.RemoteLine = version.Line()
	cfg.logf("[session:%s] remote identification %q", result.SessionID, line)

	for i := 0; i < maxPackets; i++ {
		p, err := bpp.Decode(r, 0)
		if err != nil {
			return nil, fmt.Errorf("handshake: reading packet: %w", err)
		}

		switch p.MessageID() {
		case sshproto.MsgKexInit:
			k, err := kexinit.Decode(p.Payload())
			if err != nil {
				return nil, fmt.Errorf("handshake: %w", err)
			}
			return k, nil
		case sshproto.MsgIgnore, sshproto.MsgDebug:
			result.IgnoredPackets++
		default:
			return nil, fmt.Errorf("handshake: %w: %s", ErrUnexpectedMessage, p.MessageID())
		}
	}

	return nil, fmt.Errorf("handshake: %w: more than %d packets without KEXINIT", ErrUnexpectedMessage, maxPackets)
}

// Probe dials addr and runs a client handshake against it. Cancelling ctx
// aborts the exchange.
func Probe(ctx context.Context, addr string, cfg Config) (*Result, error) {
	dialer := net.Dialer{Timeout: cfg.Timeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("handshake: dialing %s: %w", addr, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	result, err := Run(conn, cfg)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("handshake: %w", ctx.Err())
	}
	return result, err
}
