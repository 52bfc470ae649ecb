package command

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"gorm.io/gorm/logger"

	"sshwire/pkg/bpp"
	"sshwire/pkg/ident"
	"sshwire/pkg/kexinit"
	"sshwire/pkg/sshproto"
	"sshwire/pkg/storage"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func testKexInit(t *testing.T) *kexinit.KexInit {
	t.Helper()
	k, err := kexinit.New(bytes.NewReader(make([]byte, kexinit.CookieSize)), kexinit.DefaultPreferences())
	require.NoError(t, err)
	return k
}

func TestDecode_Packet(t *testing.T) {
	k := testKexInit(t)
	p, err := bpp.NewPadded(k.Encode(), nil, 8)
	require.NoError(t, err)
	wire, err := p.Encode(nil)
	require.NoError(t, err)

	out, err := run(t, "", "decode", hex.EncodeToString(wire))
	require.NoError(t, err)

	assert.Contains(t, out, "message=SSH_MSG_KEXINIT")
	assert.Contains(t, out, "curve25519-sha256")
	assert.Contains(t, out, k.ClientFingerprint(kexinit.HashMD5))
	assert.Contains(t, out, k.ServerFingerprint(kexinit.HashMD5))
}

func TestDecode_PayloadFromStdin(t *testing.T) {
	k := testKexInit(t)
	payload := hex.EncodeToString(k.Encode())

	// colon separated, split across lines
	var b strings.Builder
	for i := 0; i < len(payload); i += 2 {
		b.WriteString(payload[i : i+2])
		if i%32 == 30 {
			b.WriteString("\n")
		} else {
			b.WriteString(":")
		}
	}

	out, err := run(t, b.String(), "decode", "--payload", "--hash", "sha256")
	require.NoError(t, err)
	assert.Contains(t, out, k.ClientFingerprint(kexinit.HashSHA256))
}

func TestDecode_OtherMessage(t *testing.T) {
	out, err := run(t, "", "decode", "-p", hex.EncodeToString([]byte{byte(sshproto.MsgIgnore), 0, 0, 0, 2, 'h', 'i'}))
	require.NoError(t, err)
	assert.Contains(t, out, "SSH_MSG_IGNORE")
	assert.Contains(t, out, "|.....hi|")
}

func TestDecode_Errors(t *testing.T) {
	_, err := run(t, "", "decode", "zz")
	assert.ErrorContains(t, err, "invalid hex")

	_, err = run(t, "", "decode", "0000")
	assert.ErrorIs(t, err, sshproto.ErrStreamIO)

	_, err = run(t, "", "decode", "-p", "14ff")
	assert.ErrorIs(t, err, sshproto.ErrOffsetOutOfRange)

	_, err = run(t, "", "decode", "--hash", "sha1", "00")
	assert.Error(t, err)
}

func seedDatabase(t *testing.T) (string, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "handshakes.db")
	repo, err := storage.Open(path, logger.Silent)
	require.NoError(t, err)
	defer repo.Close()

	k := testKexInit(t)
	banner, err := ident.New("2.0", "OpenSSH_9.6", "Ubuntu")
	require.NoError(t, err)
	hash := k.ClientFingerprint(kexinit.HashMD5)

	for i, addr := range []string{"192.0.2.1", "192.0.2.2", "192.0.2.1"} {
		require.NoError(t, repo.RecordHandshake(storage.HandshakeRecord{
			SessionID:   uuid.New(),
			RemoteAddr:  addr,
			Fingerprint: hash,
			Banner:      banner,
			KexInit:     k,
			Timestamp:   time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	return path, hash
}

func TestRepositoryCommands(t *testing.T) {
	db, hash := seedDatabase(t)

	out, err := run(t, "", "--db", db, "list")
	require.NoError(t, err)
	assert.Contains(t, out, hash)
	assert.Contains(t, out, "SSH-2.0-OpenSSH_9.6 Ubuntu")

	out, err = run(t, "", "--db", db, "log", "--ip", "192.0.2.1", "-a")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "192.0.2.1"))
	assert.Contains(t, out, "kex=curve25519-sha256")

	out, err = run(t, "", "--db", db, "block", "--reason", "scanner", hash)
	require.NoError(t, err)
	assert.Contains(t, out, "Blocked HASSH: "+hash)

	out, err = run(t, "", "--db", db, "blocked")
	require.NoError(t, err)
	assert.Contains(t, out, "scanner")

	out, err = run(t, "", "--db", db, "list", "--state", "blocked")
	require.NoError(t, err)
	assert.Contains(t, out, hash)

	out, err = run(t, "", "--db", db, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total Handshakes:     3")
	assert.Contains(t, out, "Unique IP Addresses:  2")

	_, err = run(t, "", "--db", db, "unblock", hash)
	require.NoError(t, err)

	out, err = run(t, "", "--db", db, "blocked")
	require.NoError(t, err)
	assert.Contains(t, out, "No blocked fingerprints")

	_, err = run(t, "", "--db", db, "list", "--state", "maybe")
	assert.ErrorContains(t, err, "invalid state")
}

func TestReload_RequiresPID(t *testing.T) {
	_, err := run(t, "", "reload")
	assert.Error(t, err)

	_, err = run(t, "", "reload", "--pid=-4")
	assert.ErrorContains(t, err, "invalid pid")
}

func TestProbe(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	config := &ssh.ServerConfig{NoClientAuth: true}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _, _ = ssh.NewServerConn(conn, config)
	}()

	out, err := run(t, "", "probe", "--timeout", "5s", listener.Addr().String())
	require.NoError(t, err)

	assert.Contains(t, out, "SSH-2.0-Go")
	assert.Contains(t, out, "ssh-ed25519")
	assert.Contains(t, out, "Negotiated")
}
