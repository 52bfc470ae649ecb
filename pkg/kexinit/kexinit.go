// Package kexinit encodes and decodes SSH_MSG_KEXINIT (RFC 4253 §7.1):
//
//	byte         SSH_MSG_KEXINIT (20)
//	byte[16]     cookie (random bytes)
//	name-list    kex_algorithms
//	name-list    server_host_key_algorithms
//	name-list    encryption_algorithms_client_to_server
//	name-list    encryption_algorithms_server_to_client
//	name-list    mac_algorithms_client_to_server
//	name-list    mac_algorithms_server_to_client
//	name-list    compression_algorithms_client_to_server
//	name-list    compression_algorithms_server_to_client
//	name-list    languages_client_to_server
//	name-list    languages_server_to_client
//	boolean      first_kex_packet_follows
//	uint32       0 (reserved for future extension)
//
// It also negotiates algorithms between two KEXINIT messages and computes
// HASSH fingerprints from them.
package kexinit

import (
	"encoding/binary"
	"fmt"
	"io"
	"slices"
	"unicode/utf8"

	"sshwire/pkg/sshproto"
)

const (
	// CookieSize is the length of the random cookie
	CookieSize = 16

	// cookieOffset and listsOffset index into the payload
	cookieOffset = 1
	listsOffset  = cookieOffset + CookieSize

	// trailerSize covers first_kex_packet_follows and reserved
	trailerSize = 1 + 4

	// maxAlgorithmNameLength is the RFC 4251 §6 limit for algorithm names
	maxAlgorithmNameLength = 64
)

// KexInit is a decoded or locally built SSH_MSG_KEXINIT.
type KexInit struct {
	Cookie [CookieSize]byte

	KexAlgorithms           []string
	ServerHostKeyAlgorithms []string
	CiphersClientServer     []string
	CiphersServerClient     []string
	MACsClientServer        []string
	MACsServerClient        []string
	CompressionClientServer []string
	CompressionServerClient []string
	LanguagesClientServer   []string
	LanguagesServerClient   []string

	FirstKexFollows bool
	Reserved        uint32
}

type nameListField struct {
	name string
	list *[]string
}

// fields returns the ten name-lists in wire order.
func (k *KexInit) fields() []nameListField {
	return []nameListField{
		{"kex_algorithms", &k.KexAlgorithms},
		{"server_host_key_algorithms", &k.ServerHostKeyAlgorithms},
		{"encryption_algorithms_client_to_server", &k.CiphersClientServer},
		{"encryption_algorithms_server_to_client", &k.CiphersServerClient},
		{"mac_algorithms_client_to_server", &k.MACsClientServer},
		{"mac_algorithms_server_to_client", &k.MACsServerClient},
		{"compression_algorithms_client_to_server", &k.CompressionClientServer},
		{"compression_algorithms_server_to_client", &k.CompressionServerClient},
		{"languages_client_to_server", &k.LanguagesClientServer},
		{"languages_server_to_client", &k.LanguagesServerClient},
	}
}

// MessageID is always SSH_MSG_KEXINIT.
func (k *KexInit) MessageID() sshproto.MessageID { return sshproto.MsgKexInit }

// NewCookie draws a fresh cookie from rand.
func NewCookie(rand io.Reader) ([CookieSize]byte, error) {
	var cookie [CookieSize]byte
	if _, err := io.ReadFull(rand, cookie[:]); err != nil {
		return cookie, fmt.Errorf("%w: generating cookie: %w", sshproto.ErrStreamIO, err)
	}
	return cookie, nil
}

// Decode parses a KEXINIT payload, message id byte included.
//
// first_kex_packet_follows and reserved are read when the payload carries them.
// A payload that ends right after the last name-list decodes with both left at
// their zero values; a partial trailer is an error. Anything past reserved is
// ignored. Empty name-lists decode to nil, so a value built with []string{}
// compares equal to its decoded form only by length.
func Decode(payload []byte) (*KexInit, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", sshproto.ErrUnknownMessageID)
	}
	if id := sshproto.MessageID(payload[0]); id != sshproto.MsgKexInit {
		return nil, fmt.Errorf("%w: got %s, expected %s", sshproto.ErrUnknownMessageID, id, sshproto.MsgKexInit)
	}
	if len(payload) < listsOffset {
		return nil, fmt.Errorf("%w: cookie needs %d bytes, have %d", sshproto.ErrOffsetOutOfRange, CookieSize, len(payload)-cookieOffset)
	}

	k := &KexInit{}
	copy(k.Cookie[:], payload[cookieOffset:listsOffset])

	offset := listsOffset
	for _, f := range k.fields() {
		names, err := parseNameList(payload, &offset)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f.name, err)
		}
		*f.list = names
	}

	switch rest := len(payload) - offset; {
	case rest == 0:
	case rest < trailerSize:
		return nil, fmt.Errorf("%w: %d trailing bytes, expected %d", sshproto.ErrOffsetOutOfRange, rest, trailerSize)
	default:
		k.FirstKexFollows = payload[offset] != 0
		k.Reserved = binary.BigEndian.Uint32(payload[offset+1:])
	}

	return k, nil
}

// parseNameList reads one name-list at *offset and advances it past the
// section. Empty names between commas are dropped.
func parseNameList(data []byte, offset *int) ([]string, error) {
	start := *offset
	if start < 0 || start > len(data) || len(data)-start < 4 {
		return nil, fmt.Errorf("%w: cannot read name-list length at offset %d (buffer is %d bytes)", sshproto.ErrOffsetOutOfRange, start, len(data))
	}

	length := binary.BigEndian.Uint32(data[start:])
	start += 4

	if uint64(length) > uint64(len(data)-start) {
		return nil, fmt.Errorf("%w: need %d bytes for name-list, have %d", sshproto.ErrSectionBounds, length, len(data)-start)
	}
	end := start + int(length)

	var names []string
	tokenStart := start
	for i := start; i <= end; i++ {
		if i < end && data[i] != ',' {
			continue
		}

		token := data[tokenStart:i]
		tokenStart = i + 1
		if len(token) == 0 {
			continue
		}
		if !utf8.Valid(token) {
			return nil, fmt.Errorf("%w: name-list entry is not valid UTF-8", sshproto.ErrInvalidString)
		}
		names = append(names, string(token))
	}

	*offset = end
	return names, nil
}

// Encode serializes k. The result is exactly the KEXINIT payload, with no
// bytes after reserved.
func (k *KexInit) Encode() []byte {
	size := listsOffset + trailerSize
	fields := k.fields()
	for _, f := range fields {
		size += nameListLen(*f.list)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, byte(sshproto.MsgKexInit))
	buf = append(buf, k.Cookie[:]...)
	for _, f := range fields {
		buf = appendNameList(buf, *f.list)
	}

	if k.FirstKexFollows {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return binary.BigEndian.AppendUint32(buf, k.Reserved)
}

// appendNameList writes the length prefix and the comma-joined names.
// An empty list is four zero bytes.
func appendNameList(dst []byte, names []string) []byte {
	length := nameListLen(names) - 4
	dst = binary.BigEndian.AppendUint32(dst, uint32(length))
	for i, name := range names {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, name...)
	}
	return dst
}

// nameListLen is the encoded size of names, length prefix included.
func nameListLen(names []string) int {
	n := 4
	for i, name := range names {
		if i > 0 {
			n++
		}
		n += len(name)
	}
	return n
}

// Clone returns a deep copy of k.
func (k *KexInit) Clone() *KexInit {
	if k == nil {
		return nil
	}

	c := *k
	src := k.fields()
	for i, f := range c.fields() {
		*f.list = slices.Clone(*src[i].list)
	}
	return &c
}

// Validate checks that every name survives a round trip: non-empty, at most
// 64 bytes, printable ASCII and free of commas.
func (k *KexInit) Validate() error {
	for _, f := range k.fields() {
		for _, name := range *f.list {
			if !isValidAlgorithmName(name) {
				return fmt.Errorf("%w: %q in %s", sshproto.ErrInvalidString, name, f.name)
			}
		}
	}
	return nil
}

// isValidAlgorithmName checks all bytes of name regardless of where the
// first bad one sits.
func isValidAlgorithmName(name string) bool {
	if len(name) == 0 || len(name) > maxAlgorithmNameLength {
		return false
	}

	valid := true
	for i := 0; i < len(name); i++ {
		c := name[i]
		// ASCII printable (33-126), excluding comma (44)
		if c < 33 || c > 126 || c == 44 {
			valid = false
		}
	}
	return valid
}
