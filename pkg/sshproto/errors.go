// Package sshproto holds the pieces shared by every layer of the transport
// preamble: the error kinds surfaced by the codecs and the SSH message numbers.
package sshproto

import "errors"

// Identification exchange errors.
var (
	// ErrInvalidProtoVersion is returned when the protocol version is not 1.0 or 2.0
	ErrInvalidProtoVersion = errors.New("invalid protocol version")

	// ErrStringTooLong is returned when a software version or comment exceeds 255 bytes
	ErrStringTooLong = errors.New("string too long")

	// ErrMalformedIdent is returned when the identification line lacks "SSH-" or its separator
	ErrMalformedIdent = errors.New("malformed identification string")

	// ErrStreamExhausted is returned when no CRLF arrives within the header cap
	ErrStreamExhausted = errors.New("stream exhausted")
)

// Binary packet errors.
var (
	ErrPayloadTooLong   = errors.New("payload too long")
	ErrPaddingTooShort  = errors.New("padding too short")
	ErrUnknownMessageID = errors.New("unknown message id")

	// ErrPacketLength is returned when packet_length cannot hold the padding it declares
	ErrPacketLength = errors.New("invalid packet length")

	// ErrEncodingLength is returned when the encoded packet size disagrees with
	// EncodedLen, or a MAC does not fit its one-byte length
	ErrEncodingLength = errors.New("encoded length mismatch")

	// ErrStreamIO wraps a failure of the underlying reader or writer
	ErrStreamIO = errors.New("stream i/o failure")
)

// KEXINIT errors.
var (
	// ErrOffsetOutOfRange is returned when a length prefix cannot be read
	ErrOffsetOutOfRange = errors.New("offset out of range")

	// ErrSectionBounds is returned when a declared name-list length overruns the buffer
	ErrSectionBounds = errors.New("section length exceeds buffer")

	// ErrInvalidString is returned for non UTF-8 or otherwise unusable algorithm names
	ErrInvalidString = errors.New("invalid string")

	// ErrNoCommonAlgorithm is returned when negotiation finds no shared algorithm
	ErrNoCommonAlgorithm = errors.New("no common algorithm")
)

// ErrBlockSize is returned by block ciphers handed a block of the wrong size.
var ErrBlockSize = errors.New("incorrect block size")
