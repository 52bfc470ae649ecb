package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sshwire/pkg/kexinit"
	"sshwire/pkg/sshproto"
)

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Full(t *testing.T) {
	cfg, err := Parse([]byte(`
listen: 127.0.0.1:2022
target: 10.0.0.5:22
database: /var/lib/sshwire/handshakes.db
timeout: 3s
hash: sha256
syslog: true
proxy_protocol: true
identification:
  software: probe_2.1
  comments: lab
algorithms:
  kex: [curve25519-sha256]
  ciphers: [aes256-ctr, aes128-ctr]
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:2022", cfg.Listen)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.True(t, cfg.Syslog)
	assert.True(t, cfg.ProxyProtocol)

	hash, err := cfg.HashAlgorithm()
	require.NoError(t, err)
	assert.Equal(t, kexinit.HashSHA256, hash)

	v, err := cfg.Identification()
	require.NoError(t, err)
	assert.Equal(t, "SSH-2.0-probe_2.1 lab", v.Line())

	k, err := cfg.KexInit(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"curve25519-sha256"}, k.KexAlgorithms)
	assert.Equal(t, []string{"aes256-ctr", "aes128-ctr"}, k.CiphersServerClient)
	// unset lists keep the defaults
	assert.Equal(t, kexinit.DefaultPreferences().MACs, k.MACsClientServer)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"unknown key", "listen_addr: x", nil},
		{"bad duration", "timeout: soon", nil},
		{"negative timeout", "timeout: -1s", nil},
		{"unknown hash", "hash: sha1", nil},
		{"long software", "identification:\n  software: " + strings.Repeat("a", 300), sshproto.ErrStringTooLong},
		{"comma in name", "algorithms:\n  kex: [\"a,b\"]", sshproto.ErrInvalidString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sshwire.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target: example.org:22\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "example.org:22", cfg.Target)
	assert.Equal(t, ":2222", cfg.Listen)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHandshake(t *testing.T) {
	cfg := Default()
	cfg.Timeout = time.Second

	hc, err := cfg.Handshake()
	require.NoError(t, err)
	assert.Equal(t, time.Second, hc.Timeout)
	assert.Equal(t, "sshwire_1.0", hc.Version.SoftwareVersion)
	assert.Equal(t, kexinit.DefaultPreferences().Kex, hc.KexInit.KexAlgorithms)
}
