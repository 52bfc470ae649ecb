package proxy

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sshwire/pkg/bpp"
	"sshwire/pkg/kexinit"
	"sshwire/pkg/sshproto"
)

func clientStream(t *testing.T, banner string, payloads ...[]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString(banner)
	for _, payload := range payloads {
		p, err := bpp.NewPadded(payload, nil, 8)
		require.NoError(t, err)
		require.NoError(t, bpp.Write(&buf, p, nil))
	}
	return buf.Bytes()
}

// readThrough sends stream through an SSHConn in chunks of size n and returns
// what came out the other side.
func readThrough(t *testing.T, stream []byte, n int, onHandshake func(*Capture) bool) ([]byte, *SSHConn) {
	t.Helper()

	client, server := net.Pipe()
	defer server.Close()

	go func() {
		defer client.Close()
		for len(stream) > 0 {
			k := min(n, len(stream))
			if _, err := client.Write(stream[:k]); err != nil {
				return
			}
			stream = stream[k:]
		}
	}()

	conn := NewSSHConn(server, kexinit.HashMD5, onHandshake)
	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	return out, conn
}

func TestSSHConn_CapturesKexInit(t *testing.T) {
	k, err := kexinit.New(nil, kexinit.DefaultPreferences())
	require.NoError(t, err)
	stream := clientStream(t, "SSH-2.0-OpenSSH_9.6 Ubuntu\r\n", k.Encode())

	for _, chunk := range []int{1, 7, 64, len(stream)} {
		var got *Capture
		out, conn := readThrough(t, stream, chunk, func(c *Capture) bool {
			got = c
			return false
		})

		assert.Equal(t, stream, out, "chunk %d", chunk)
		assert.True(t, conn.Captured())
		require.NotNil(t, got, "chunk %d", chunk)
		assert.Equal(t, "OpenSSH_9.6", got.Version.SoftwareVersion)
		assert.Equal(t, "Ubuntu", got.Version.Comments)
		assert.Equal(t, k.ClientFingerprint(kexinit.HashMD5), got.Fingerprint)
		assert.Equal(t, k.KexAlgorithms, got.KexInit.KexAlgorithms)
	}
}

func TestSSHConn_SkipsIgnore(t *testing.T) {
	k, err := kexinit.New(nil, kexinit.DefaultPreferences())
	require.NoError(t, err)
	stream := clientStream(t, "SSH-2.0-x\r\n",
		[]byte{byte(sshproto.MsgIgnore), 0, 0, 0, 0},
		k.Encode(),
	)

	var got *Capture
	readThrough(t, stream, 16, func(c *Capture) bool {
		got = c
		return false
	})
	require.NotNil(t, got)
	assert.Equal(t, k.ClientFingerprint(kexinit.HashMD5), got.Fingerprint)
}

func TestSSHConn_Blocks(t *testing.T) {
	k, err := kexinit.New(nil, kexinit.DefaultPreferences())
	require.NoError(t, err)
	stream := clientStream(t, "SSH-2.0-scanner\r\n", k.Encode())
	stream = append(stream, []byte("more data that must not pass")...)

	out, conn := readThrough(t, stream, len(stream), func(*Capture) bool { return true })
	assert.True(t, conn.Captured())
	assert.Less(t, len(out), len(stream))
	assert.NotContains(t, string(out), "must not pass")
}

func TestSSHConn_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		stream []byte
		want   error
	}{
		{"malformed banner", []byte("SSH-2.0\r\n"), sshproto.ErrMalformedIdent},
		{"no banner", bytes.Repeat([]byte{'A'}, 80), sshproto.ErrStreamExhausted},
		{"oversized packet", append([]byte("SSH-2.0-x\r\n"), 0x7F, 0, 0, 0, 4), sshproto.ErrPacketLength},
		{"not a KEXINIT", clientStream(t, "SSH-2.0-x\r\n", []byte{byte(sshproto.MsgNewKeys)}), errUnexpectedMessage},
		{"broken KEXINIT", clientStream(t, "SSH-2.0-x\r\n", []byte{byte(sshproto.MsgKexInit), 1, 2}), sshproto.ErrOffsetOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer server.Close()
			go func() {
				defer client.Close()
				_, _ = client.Write(tt.stream)
			}()

			called := false
			conn := NewSSHConn(server, kexinit.HashMD5, func(*Capture) bool {
				called = true
				return true
			})
			var malformed error
			conn.OnMalformed(func(err error) { malformed = err })

			out, err := io.ReadAll(conn)
			require.NoError(t, err)
			assert.Equal(t, tt.stream, out)
			assert.False(t, called)
			assert.ErrorIs(t, malformed, tt.want)
			assert.True(t, conn.Captured())
		})
	}
}

func TestBuildProxyProtocolV2Header_IPv4(t *testing.T) {
	client := &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 50022}
	proxy := &net.TCPAddr{IP: net.ParseIP("198.51.100.1"), Port: 22}

	header, err := buildProxyProtocolV2Header(client, proxy)
	require.NoError(t, err)

	want := []byte{
		0x0D, 0x0A, 0x0D, 0x0A, 0x00, 0x0D, 0x0A, 0x51, 0x55, 0x49, 0x54, 0x0A,
		0x21, 0x11, 0x00, 0x0C,
		192, 0, 2, 10,
		198, 51, 100, 1,
		0xC3, 0x66,
		0x00, 0x16,
	}
	assert.Equal(t, want, header)
}

func TestBuildProxyProtocolV2Header_IPv6(t *testing.T) {
	client := &net.TCPAddr{IP: net.ParseIP("2001:db8::1"), Port: 1}
	proxy := &net.TCPAddr{IP: net.ParseIP("192.0.2.1"), Port: 2}

	header, err := buildProxyProtocolV2Header(client, proxy)
	require.NoError(t, err)

	require.Len(t, header, 52)
	assert.Equal(t, byte(afInet6), header[13])
	assert.Equal(t, []byte{0x00, 0x24}, header[14:16])
	assert.Equal(t, []byte(net.ParseIP("2001:db8::1")), header[16:32])
	assert.Equal(t, []byte(net.ParseIP("192.0.2.1").To16()), header[32:48])
	assert.Equal(t, []byte{0, 1, 0, 2}, header[48:52])
}

func TestBuildProxyProtocolV2Header_NotTCP(t *testing.T) {
	_, err := buildProxyProtocolV2Header(&net.UnixAddr{Name: "/tmp/s"}, &net.TCPAddr{})
	assert.ErrorIs(t, err, errNotTCP)
}
