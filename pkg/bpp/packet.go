// Package bpp frames and unframes SSH binary packets (RFC 4253 §6):
//
//	uint32    packet_length
//	byte      padding_length
//	byte[n1]  payload; n1 = packet_length - padding_length - 1
//	byte[n2]  random padding; n2 = padding_length
//	byte[m]   mac (Message Authentication Code - MAC); m = mac_length
//
// The codec only frames. Applying a cipher or computing the MAC belongs to a
// caller that already holds negotiated keys.
package bpp

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"sshwire/pkg/sshproto"
)

const (
	// MaxPayloadSize is the largest uncompressed payload every implementation must accept
	MaxPayloadSize = 32768

	// MinPaddingSize is the RFC minimum for random padding
	MinPaddingSize = 4

	// headerSize covers packet_length and padding_length
	headerSize = 4 + 1

	minBlockSize = 8
)

// Packet is a single binary packet. It owns its payload and MAC buffers.
type Packet struct {
	messageID     sshproto.MessageID
	packetLength  uint32
	paddingLength uint8
	macLength     uint8
	payload       []byte
	mac           []byte
	consumed      bool
}

// New validates the parts of a packet and computes the derived lengths.
// Checks run in a fixed order: payload size, padding size, message id.
func New(paddingLength uint8, payload, mac []byte) (*Packet, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", sshproto.ErrPayloadTooLong, len(payload), MaxPayloadSize)
	}

	if paddingLength < MinPaddingSize {
		return nil, fmt.Errorf("%w: %d bytes (min: %d)", sshproto.ErrPaddingTooShort, paddingLength, MinPaddingSize)
	}

	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload carries no message id", sshproto.ErrUnknownMessageID)
	}

	id := sshproto.MessageID(payload[0])
	if !id.Known() {
		return nil, fmt.Errorf("%w: %d", sshproto.ErrUnknownMessageID, payload[0])
	}

	if len(mac) > 255 {
		return nil, fmt.Errorf("%w: mac is %d bytes (max: 255)", sshproto.ErrEncodingLength, len(mac))
	}

	return &Packet{
		messageID:     id,
		packetLength:  uint32(len(payload)) + uint32(paddingLength) + 1,
		paddingLength: paddingLength,
		macLength:     uint8(len(mac)),
		payload:       payload,
		mac:           mac,
	}, nil
}

// NewPadded picks the smallest padding that keeps the unencrypted header,
// payload and padding a multiple of max(8, blockSize).
func NewPadded(payload, mac []byte, blockSize int) (*Packet, error) {
	return New(PaddingFor(len(payload), blockSize), payload, mac)
}

// PaddingFor returns the padding length for a payload of payloadLen bytes.
func PaddingFor(payloadLen, blockSize int) uint8 {
	if blockSize < minBlockSize {
		blockSize = minBlockSize
	}

	padding := blockSize - (headerSize+payloadLen)%blockSize
	if padding < MinPaddingSize {
		padding += blockSize
	}
	return uint8(padding)
}

func (p *Packet) MessageID() sshproto.MessageID { return p.messageID }
func (p *Packet) PacketLength() uint32          { return p.packetLength }
func (p *Packet) PaddingLength() uint8          { return p.paddingLength }
func (p *Packet) MACLength() uint8              { return p.macLength }

// Payload returns the packet payload, message id byte included.
func (p *Packet) Payload() []byte { return p.payload }

func (p *Packet) MAC() []byte { return p.mac }

// EncodedLen is the size of the packet on the wire.
func (p *Packet) EncodedLen() int {
	return 4 + int(p.packetLength) + int(p.macLength)
}

// Encode serializes the packet, drawing padding bytes from rand
// (crypto/rand when nil). The packet gives up its payload and MAC buffers, so
// it cannot be encoded twice.
func (p *Packet) Encode(rand io.Reader) ([]byte, error) {
	if p.consumed {
		return nil, fmt.Errorf("%w: packet already encoded", sshproto.ErrEncodingLength)
	}
	if rand == nil {
		rand = defaultRand
	}

	expected := p.EncodedLen()
	buf := make([]byte, 0, expected)

	buf = binary.BigEndian.AppendUint32(buf, p.packetLength)
	buf = append(buf, p.paddingLength)
	buf = append(buf, p.payload...)

	padStart := len(buf)
	buf = buf[:padStart+int(p.paddingLength)]
	if _, err := io.ReadFull(rand, buf[padStart:]); err != nil {
		return nil, fmt.Errorf("%w: generating padding: %w", sshproto.ErrStreamIO, err)
	}

	buf = append(buf, p.mac...)

	p.payload, p.mac, p.consumed = nil, nil, true

	if len(buf) != expected {
		return nil, fmt.Errorf("%w: wrote %d bytes, expected %d", sshproto.ErrEncodingLength, len(buf), expected)
	}

	return buf, nil
}

// Write encodes p and writes it to w in full.
func Write(w io.Writer, p *Packet, rand io.Reader) error {
	data, err := p.Encode(rand)
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: writing packet: %w", sshproto.ErrStreamIO, err)
	}
	return nil
}

// Decode reads one packet from r. The MAC length comes from the negotiated
// algorithm and is zero before the first NEWKEYS. On any short read no packet
// is returned.
func Decode(r io.Reader, macLength uint8) (*Packet, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:4]); err != nil {
		return nil, readError("packet_length", err)
	}
	if _, err := io.ReadFull(r, header[4:]); err != nil {
		return nil, readError("padding_length", err)
	}

	packetLength := binary.BigEndian.Uint32(header[:4])
	paddingLength := header[4]

	if uint64(packetLength) < uint64(paddingLength)+1 {
		return nil, fmt.Errorf("%w: packet_length %d cannot hold padding_length %d", sshproto.ErrPacketLength, packetLength, paddingLength)
	}

	payloadLength := uint64(packetLength) - uint64(paddingLength) - 1
	if payloadLength > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", sshproto.ErrPayloadTooLong, payloadLength, MaxPayloadSize)
	}

	payload := make([]byte, payloadLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, readError("payload", err)
	}

	if n, err := io.CopyN(io.Discard, r, int64(paddingLength)); err != nil {
		if errors.Is(err, io.EOF) && n > 0 {
			err = io.ErrUnexpectedEOF
		}
		return nil, readError("padding", err)
	}

	var mac []byte
	if macLength > 0 {
		mac = make([]byte, macLength)
		if _, err := io.ReadFull(r, mac); err != nil {
			return nil, readError("mac", err)
		}
	}

	return New(paddingLength, payload, mac)
}

func readError(field string, err error) error {
	return fmt.Errorf("%w: reading %s: %w", sshproto.ErrStreamIO, field, err)
}

var defaultRand io.Reader = rand.Reader
