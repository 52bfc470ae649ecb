package blockcipher

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sshwire/pkg/sshproto"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestKnownAnswers(t *testing.T) {
	tests := []struct {
		name       string
		newCipher  func([]byte) (Block, error)
		key        string
		plaintext  string
		ciphertext string
	}{
		{
			name:       "aes128",
			newCipher:  NewAES,
			key:        "000102030405060708090a0b0c0d0e0f",
			plaintext:  "00112233445566778899aabbccddeeff",
			ciphertext: "69c4e0d86a7b0430d8cdb78070b4c55a",
		},
		{
			name:       "twofish128",
			newCipher:  NewTwofish,
			key:        "00000000000000000000000000000000",
			plaintext:  "00000000000000000000000000000000",
			ciphertext: "9f589f5cf6122c32b6bfec2f2ae8c35a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.newCipher(mustHex(t, tt.key))
			require.NoError(t, err)
			assert.Equal(t, tt.name, c.Name())

			block := mustHex(t, tt.plaintext)
			require.NoError(t, c.Encrypt(block))
			assert.Equal(t, tt.ciphertext, hex.EncodeToString(block))

			require.NoError(t, c.Decrypt(block))
			assert.Equal(t, tt.plaintext, hex.EncodeToString(block))
		})
	}
}

func TestKeySizes(t *testing.T) {
	for _, size := range []int{16, 24, 32} {
		key := bytes.Repeat([]byte{0x11}, size)

		a, err := NewAES(key)
		require.NoError(t, err)
		tf, err := NewTwofish(key)
		require.NoError(t, err)

		for _, c := range []Block{a, tf} {
			block := bytes.Repeat([]byte{0x42}, BlockSize)
			require.NoError(t, c.Encrypt(block))
			assert.NotEqual(t, bytes.Repeat([]byte{0x42}, BlockSize), block, c.Name())
			require.NoError(t, c.Decrypt(block))
			assert.Equal(t, bytes.Repeat([]byte{0x42}, BlockSize), block, c.Name())
		}
	}

	_, err := NewAES(make([]byte, 15))
	assert.Error(t, err)
	_, err = NewTwofish(make([]byte, 33))
	assert.Error(t, err)
}

func TestWrongBlockSize(t *testing.T) {
	c, err := NewAES(make([]byte, 16))
	require.NoError(t, err)

	for _, n := range []int{0, 8, 15, 17, 32} {
		block := make([]byte, n)
		assert.ErrorIs(t, c.Encrypt(block), sshproto.ErrBlockSize)
		assert.ErrorIs(t, c.Decrypt(block), sshproto.ErrBlockSize)
	}
}
