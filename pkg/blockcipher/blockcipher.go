// Package blockcipher provides the single-block cipher capability that a
// transport layer applies to packets once keys are negotiated. The packet
// codecs never call it.
package blockcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/twofish"

	"sshwire/pkg/sshproto"
)

// BlockSize is the block length of every cipher in this package
const BlockSize = 16

// Block encrypts and decrypts exactly one block in place.
type Block interface {
	Encrypt(block []byte) error
	Decrypt(block []byte) error
	Name() string
}

type blockCipher struct {
	name string
	b    cipher.Block
}

// NewAES returns AES-128, AES-192 or AES-256 depending on the key length.
func NewAES(key []byte) (Block, error) {
	b, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	return &blockCipher{name: fmt.Sprintf("aes%d", len(key)*8), b: b}, nil
}

// NewTwofish accepts 16, 24 or 32 byte keys.
func NewTwofish(key []byte) (Block, error) {
	b, err := twofish.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("twofish: %w", err)
	}
	return &blockCipher{name: fmt.Sprintf("twofish%d", len(key)*8), b: b}, nil
}

func (c *blockCipher) Name() string { return c.name }

func (c *blockCipher) Encrypt(block []byte) error {
	if len(block) != BlockSize {
		return fmt.Errorf("%w: %s encrypt got %d bytes, expected %d", sshproto.ErrBlockSize, c.name, len(block), BlockSize)
	}
	c.b.Encrypt(block, block)
	return nil
}

func (c *blockCipher) Decrypt(block []byte) error {
	if len(block) != BlockSize {
		return fmt.Errorf("%w: %s decrypt got %d bytes, expected %d", sshproto.ErrBlockSize, c.name, len(block), BlockSize)
	}
	c.b.Decrypt(block, block)
	return nil
}
