package proxy

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"log"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"sshwire/pkg/kexinit"
	"sshwire/pkg/storage"
)

type memoryStore struct {
	mu      sync.Mutex
	blocked []string
	records []storage.HandshakeRecord
}

func (m *memoryStore) LoadBlockedHashes() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.blocked...), nil
}

func (m *memoryStore) RecordHandshake(rec storage.HandshakeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryStore) block(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked = append(m.blocked, hash)
}

func (m *memoryStore) recorded() []storage.HandshakeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.HandshakeRecord(nil), m.records...)
}

func startUpstream(t *testing.T) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	config := &ssh.ServerConfig{NoClientAuth: true}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				sconn, chans, reqs, err := ssh.NewServerConn(conn, config)
				if err != nil {
					return
				}
				defer sconn.Close()
				go ssh.DiscardRequests(reqs)
				for ch := range chans {
					_ = ch.Reject(ssh.Prohibited, "no channels")
				}
			}()
		}
	}()

	return listener.Addr().String()
}

func startProxy(t *testing.T, store Store, target string) (*Server, string) {
	t.Helper()

	server, err := NewServer(Options{
		TargetAddr: target,
		Hash:       kexinit.HashMD5,
		Logger:     log.New(io.Discard, "", 0),
	}, store)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Serve(ctx, listener)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return server, listener.Addr().String()
}

func dialSSH(addr string) (*ssh.Client, error) {
	return ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            "probe",
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
}

func TestServer_AllowsThenBlocks(t *testing.T) {
	store := &memoryStore{}
	server, addr := startProxy(t, store, startUpstream(t))

	client, err := dialSSH(addr)
	require.NoError(t, err)
	client.Close()

	require.Eventually(t, func() bool { return len(store.recorded()) == 1 }, 5*time.Second, 10*time.Millisecond)
	first := store.recorded()[0]
	assert.False(t, first.Blocked)
	assert.Equal(t, "Go", first.Banner.SoftwareVersion)
	assert.Len(t, first.Fingerprint, 32)
	assert.Equal(t, first.KexInit.ClientFingerprint(kexinit.HashMD5), first.Fingerprint)

	store.block(first.Fingerprint)
	require.NoError(t, server.Reload())

	_, err = dialSSH(addr)
	require.Error(t, err)

	require.Eventually(t, func() bool { return len(store.recorded()) == 2 }, 5*time.Second, 10*time.Millisecond)
	second := store.recorded()[1]
	assert.True(t, second.Blocked)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestServer_UpstreamDown(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	target := listener.Addr().String()
	listener.Close()

	_, addr := startProxy(t, &memoryStore{}, target)

	_, err = dialSSH(addr)
	assert.Error(t, err)
}
