package kexinit

import (
	"crypto/rand"
	"io"
	"slices"
)

// Preferences lists algorithms in order of preference. The same cipher, MAC
// and compression lists are offered for both directions.
type Preferences struct {
	Kex         []string
	HostKey     []string
	Ciphers     []string
	MACs        []string
	Compression []string
}

// DefaultPreferences mirrors what current OpenSSH releases offer.
func DefaultPreferences() Preferences {
	return Preferences{
		Kex: []string{
			"curve25519-sha256",
			"curve25519-sha256@libssh.org",
			"ecdh-sha2-nistp256",
			"ecdh-sha2-nistp384",
			"diffie-hellman-group14-sha256",
		},
		HostKey: []string{
			"ssh-ed25519",
			"ecdsa-sha2-nistp256",
			"rsa-sha2-512",
			"rsa-sha2-256",
		},
		Ciphers: []string{
			"chacha20-poly1305@openssh.com",
			"aes128-gcm@openssh.com",
			"aes256-gcm@openssh.com",
			"aes128-ctr",
			"aes256-ctr",
		},
		MACs: []string{
			"hmac-sha2-256-etm@openssh.com",
			"hmac-sha2-512-etm@openssh.com",
			"hmac-sha2-256",
			"hmac-sha2-512",
		},
		Compression: []string{"none"},
	}
}

// New builds a KEXINIT from p with a cookie drawn from random
// (crypto/rand when nil). Names are validated.
func New(random io.Reader, p Preferences) (*KexInit, error) {
	if random == nil {
		random = rand.Reader
	}

	cookie, err := NewCookie(random)
	if err != nil {
		return nil, err
	}

	k := &KexInit{
		Cookie:                  cookie,
		KexAlgorithms:           slices.Clone(p.Kex),
		ServerHostKeyAlgorithms: slices.Clone(p.HostKey),
		CiphersClientServer:     slices.Clone(p.Ciphers),
		CiphersServerClient:     slices.Clone(p.Ciphers),
		MACsClientServer:        slices.Clone(p.MACs),
		MACsServerClient:        slices.Clone(p.MACs),
		CompressionClientServer: slices.Clone(p.Compression),
		CompressionServerClient: slices.Clone(p.Compression),
	}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}
