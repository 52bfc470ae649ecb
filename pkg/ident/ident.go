// Package ident builds, parses and reads SSH identification strings
// (RFC 4253 §4.2):
//
//	SSH-protoversion-softwareversion SP comments CR LF
package ident

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"sshwire/pkg/sshproto"
)

const (
	// MaxHeaderSize bounds a single ReadHeader call, CR LF included
	MaxHeaderSize = 51

	// maxFieldLength applies to the software version and to the comments
	maxFieldLength = 255

	prefix = "SSH-"
	crlf   = "\r\n"
)

// Version is a parsed or locally built identification string.
// An empty Comments field means the line carries no comments, so a received
// line ending in a bare SP re-serializes without it.
type Version struct {
	ProtoVersion    string
	SoftwareVersion string
	Comments        string
}

// New builds a validated identification string.
func New(protoVersion, softwareVersion, comments string) (Version, error) {
	v := Version{
		ProtoVersion:    protoVersion,
		SoftwareVersion: softwareVersion,
		Comments:        comments,
	}
	if err := v.Validate(); err != nil {
		return Version{}, err
	}
	return v, nil
}

// Validate checks the protocol version allow-list and the field lengths.
// The software version may not contain SP, which separates it from the comments.
func (v Version) Validate() error {
	if v.ProtoVersion != "1.0" && v.ProtoVersion != "2.0" {
		return fmt.Errorf("%w: %q (correct versions: '1.0' or '2.0')", sshproto.ErrInvalidProtoVersion, v.ProtoVersion)
	}
	if strings.ContainsRune(v.SoftwareVersion, ' ') {
		return fmt.Errorf("%w: software version %q contains a space", sshproto.ErrMalformedIdent, v.SoftwareVersion)
	}
	if len(v.SoftwareVersion) > maxFieldLength {
		return fmt.Errorf("%w: software version is %d bytes (max: %d)", sshproto.ErrStringTooLong, len(v.SoftwareVersion), maxFieldLength)
	}
	if len(v.Comments) > maxFieldLength {
		return fmt.Errorf("%w: comments are %d bytes (max: %d)", sshproto.ErrStringTooLong, len(v.Comments), maxFieldLength)
	}
	return nil
}

// Parse decodes a received identification line. The trailing CR LF is optional.
// Parse does not apply the allow-list; call Validate for that.
func Parse(line string) (Version, error) {
	if !strings.HasPrefix(line, prefix) {
		return Version{}, fmt.Errorf("%w: missing 'SSH-' part", sshproto.ErrMalformedIdent)
	}

	rest := strings.TrimSuffix(line, crlf)[len(prefix):]

	proto, rest, ok := strings.Cut(rest, "-")
	if !ok {
		return Version{}, fmt.Errorf("%w: missing '-' after protocol version in %q", sshproto.ErrMalformedIdent, line)
	}

	software, comments, _ := strings.Cut(rest, " ")

	return Version{
		ProtoVersion:    proto,
		SoftwareVersion: software,
		Comments:        comments,
	}, nil
}

// Line is the identification string without the CR LF terminator.
// This is the form that goes into the exchange hash and into logs.
func (v Version) Line() string {
	var b strings.Builder
	b.Grow(len(prefix) + len(v.ProtoVersion) + 1 + len(v.SoftwareVersion) + 1 + len(v.Comments))

	b.WriteString(prefix)
	b.WriteString(v.ProtoVersion)
	b.WriteByte('-')
	b.WriteString(v.SoftwareVersion)
	if v.Comments != "" {
		b.WriteByte(' ')
		b.WriteString(v.Comments)
	}
	return b.String()
}

// String returns the wire form, CR LF included.
func (v Version) String() string {
	return v.Line() + crlf
}

// ReadHeader reads from r one byte at a time until it has seen CR LF, and
// returns everything read including the terminator. It never reads more than
// MaxHeaderSize bytes, and never past the terminator, so r can be handed to the
// packet decoder afterwards.
func ReadHeader(r io.Reader) ([]byte, error) {
	header := make([]byte, 0, MaxHeaderSize)
	var b [1]byte

	for len(header) < MaxHeaderSize {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: stream ended after %d bytes without CRLF", sshproto.ErrStreamExhausted, len(header))
			}
			return nil, fmt.Errorf("%w: reading identification: %w", sshproto.ErrStreamIO, err)
		}

		header = append(header, b[0])
		n := len(header)
		if n >= 2 && header[n-2] == '\r' && header[n-1] == '\n' {
			return header, nil
		}
	}

	return nil, fmt.Errorf("%w: not found CRLF in the first %d bytes", sshproto.ErrStreamExhausted, MaxHeaderSize)
}

// ReadVersion reads lines until one starts with "SSH-" and parses it.
// Servers may send other lines of text first; at most maxLines lines are
// consumed in total. The raw identification line is returned alongside.
func ReadVersion(r io.Reader, maxLines int) (Version, []byte, error) {
	if maxLines < 1 {
		maxLines = 1
	}

	for i := 0; i < maxLines; i++ {
		line, err := ReadHeader(r)
		if err != nil {
			return Version{}, nil, err
		}

		if !strings.HasPrefix(string(line), prefix) {
			continue
		}

		v, err := Parse(string(line))
		if err != nil {
			return Version{}, line, err
		}
		return v, line, nil
	}

	return Version{}, nil, fmt.Errorf("%w: no identification line within %d lines", sshproto.ErrStreamExhausted, maxLines)
}
