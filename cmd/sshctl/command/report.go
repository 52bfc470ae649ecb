package command

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sshwire/pkg/handshake"
	"sshwire/pkg/kexinit"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(24)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("57")).Padding(0, 1)
)

func row(b *strings.Builder, label, value string) {
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value)))
	b.WriteString("\n")
}

func joined(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}

// writeKexInit renders every name-list of k.
func writeKexInit(b *strings.Builder, k *kexinit.KexInit) {
	row(b, "cookie", fmt.Sprintf("%x", k.Cookie))
	row(b, "kex", joined(k.KexAlgorithms))
	row(b, "host key", joined(k.ServerHostKeyAlgorithms))
	row(b, "ciphers c2s", joined(k.CiphersClientServer))
	row(b, "ciphers s2c", joined(k.CiphersServerClient))
	row(b, "macs c2s", joined(k.MACsClientServer))
	row(b, "macs s2c", joined(k.MACsServerClient))
	row(b, "compression c2s", joined(k.CompressionClientServer))
	row(b, "compression s2c", joined(k.CompressionServerClient))
	if len(k.LanguagesClientServer) > 0 || len(k.LanguagesServerClient) > 0 {
		row(b, "languages c2s", joined(k.LanguagesClientServer))
		row(b, "languages s2c", joined(k.LanguagesServerClient))
	}
	row(b, "first kex follows", fmt.Sprint(k.FirstKexFollows))
}

func renderKexInit(w io.Writer, title string, k *kexinit.KexInit, hash kexinit.HashAlgorithm) error {
	var b strings.Builder
	b.WriteString(headingStyle.Render(title) + "\n")
	writeKexInit(&b, k)
	row(&b, "hassh ("+hash.String()+")", k.ClientFingerprint(hash))
	row(&b, "hasshServer ("+hash.String()+")", k.ServerFingerprint(hash))

	_, err := fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
	return err
}

func renderProbe(w io.Writer, addr string, r *handshake.Result, hash kexinit.HashAlgorithm) error {
	var b strings.Builder
	b.WriteString(headingStyle.Render("SSH server "+addr) + "\n")
	row(&b, "identification", r.RemoteLine)
	row(&b, "protocol", r.RemoteVersion.ProtoVersion)
	row(&b, "software", r.RemoteVersion.SoftwareVersion)
	if r.RemoteVersion.Comments != "" {
		row(&b, "comments", r.RemoteVersion.Comments)
	}
	row(&b, "hasshServer ("+hash.String()+")", r.ServerHASSH)
	row(&b, "session", r.SessionID.String())
	row(&b, "round trip", r.Duration.String())
	if r.IgnoredPackets > 0 {
		row(&b, "ignored packets", fmt.Sprint(r.IgnoredPackets))
	}

	b.WriteString("\n" + headingStyle.Render("Offered") + "\n")
	writeKexInit(&b, r.Remote)

	b.WriteString("\n" + headingStyle.Render("Negotiated") + "\n")
	if r.NegotiationErr != nil {
		b.WriteString(failStyle.Render(r.NegotiationErr.Error()) + "\n")
	} else {
		a := r.Algorithms
		row(&b, "kex", a.Kex)
		row(&b, "host key", a.HostKey)
		row(&b, "cipher c2s / s2c", a.ClientServer.Cipher+" / "+a.ServerClient.Cipher)
		row(&b, "mac c2s / s2c", a.ClientServer.MAC+" / "+a.ServerClient.MAC)
		row(&b, "compression c2s / s2c", a.ClientServer.Compression+" / "+a.ServerClient.Compression)
	}

	_, err := fmt.Fprintln(w, boxStyle.Render(strings.TrimRight(b.String(), "\n")))
	return err
}
