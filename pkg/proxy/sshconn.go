package proxy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"sshwire/pkg/bpp"
	"sshwire/pkg/ident"
	"sshwire/pkg/kexinit"
	"sshwire/pkg/sshproto"
)

const (
	// maxBuffered bounds how much of the client stream is held for inspection
	maxBuffered = 35000

	// maxPackets caps the IGNORE/DEBUG packets skipped before KEXINIT
	maxPackets = 8
)

var errUnexpectedMessage = errors.New("client sent no KEXINIT")

// Capture is what SSHConn extracted from the start of a client stream.
type Capture struct {
	RemoteAddr  string
	Version     ident.Version
	KexInit     *kexinit.KexInit
	Fingerprint string
}

// SSHConn wraps a client connection and watches the bytes read from it until
// the client's KEXINIT has been seen. Data passes through unchanged.
type SSHConn struct {
	net.Conn
	hash        kexinit.HashAlgorithm
	onHandshake func(*Capture) bool
	onMalformed func(error)
	buf         []byte
	done        bool
}

// NewSSHConn creates a wrapped connection with a handshake callback.
// The callback returns true to block the connection.
func NewSSHConn(conn net.Conn, hash kexinit.HashAlgorithm, onHandshake func(*Capture) bool) *SSHConn {
	return &SSHConn{
		Conn:        conn,
		hash:        hash,
		onHandshake: onHandshake,
		buf:         make([]byte, 0, 4096),
	}
}

// OnMalformed registers a callback for streams that stop inspection early.
func (c *SSHConn) OnMalformed(fn func(error)) {
	c.onMalformed = fn
}

// Captured reports whether inspection has finished, successfully or not.
func (c *SSHConn) Captured() bool {
	return c.done
}

func (c *SSHConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)

	if n > 0 && !c.done {
		c.buf = append(c.buf, b[:n]...)
		if c.inspect() {
			return 0, io.EOF
		}
	}

	return n, err
}

// inspect returns true when the connection must be dropped.
func (c *SSHConn) inspect() bool {
	capture, err := c.parse()
	switch {
	case err != nil:
		c.stop()
		if c.onMalformed != nil {
			c.onMalformed(err)
		}
		return false
	case capture == nil:
		if len(c.buf) > maxBuffered {
			c.stop()
		}
		return false
	}

	c.stop()
	if c.onHandshake != nil {
		return c.onHandshake(capture)
	}
	return false
}

func (c *SSHConn) stop() {
	c.done = true
	c.buf = nil
}

// parse returns a nil capture and nil error while more data is needed.
func (c *SSHConn) parse() (*Capture, error) {
	if !bytes.Contains(c.buf, []byte("\r\n")) && len(c.buf) < ident.MaxHeaderSize {
		return nil, nil
	}

	r := bytes.NewReader(c.buf)
	version, _, err := ident.ReadVersion(r, 1)
	if err != nil {
		return nil, err
	}

	for i := 0; i < maxPackets; i++ {
		rest := c.buf[len(c.buf)-r.Len():]
		if len(rest) < 4 {
			return nil, nil
		}
		packetLength := binary.BigEndian.Uint32(rest)
		if packetLength > maxBuffered {
			return nil, fmt.Errorf("%w: %d bytes", sshproto.ErrPacketLength, packetLength)
		}
		if len(rest)-4 < int(packetLength) {
			return nil, nil
		}

		p, err := bpp.Decode(r, 0)
		if err != nil {
			return nil, err
		}

		switch p.MessageID() {
		case sshproto.MsgIgnore, sshproto.MsgDebug:
			continue
		case sshproto.MsgKexInit:
		default:
			return nil, fmt.Errorf("%w: %s", errUnexpectedMessage, p.MessageID())
		}

		k, err := kexinit.Decode(p.Payload())
		if err != nil {
			return nil, err
		}
		return &Capture{
			RemoteAddr:  c.Conn.RemoteAddr().String(),
			Version:     version,
			KexInit:     k,
			Fingerprint: k.ClientFingerprint(c.hash),
		}, nil
	}

	return nil, fmt.Errorf("%w: more than %d packets", errUnexpectedMessage, maxPackets)
}
