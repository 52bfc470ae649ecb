package command

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"sshwire/pkg/bpp"
	"sshwire/pkg/kexinit"
	"sshwire/pkg/sshproto"
)

// parseHex accepts hex with any whitespace or colons between bytes.
func parseHex(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, s)
	clean = strings.TrimPrefix(clean, "0x")
	return hex.DecodeString(clean)
}

func NewDecodeCmd() *cobra.Command {
	var (
		payloadOnly bool
		macLength   uint8
		hash        string
	)

	cmd := &cobra.Command{
		Use:   "decode [hex]",
		Short: "Decode a captured binary packet or KEXINIT payload",
		Long: `Decode hex bytes as an unencrypted SSH binary packet, or with --payload as a
bare message payload. KEXINIT messages are expanded into their name-lists and
fingerprints. Without an argument the hex is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			algo, err := kexinit.ParseHashAlgorithm(hash)
			if err != nil {
				return err
			}

			var text string
			if len(args) == 1 {
				text = args[0]
			} else {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(raw)
			}

			data, err := parseHex(text)
			if err != nil {
				return fmt.Errorf("invalid hex: %w", err)
			}

			out := cmd.OutOrStdout()
			payload := data

			if !payloadOnly {
				r := bytes.NewReader(data)
				p, err := bpp.Decode(r, macLength)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "packet_length=%d padding_length=%d payload=%d mac=%d message=%s\n",
					p.PacketLength(), p.PaddingLength(), len(p.Payload()), p.MACLength(), p.MessageID())
				if r.Len() > 0 {
					fmt.Fprintf(out, "%d trailing bytes ignored\n", r.Len())
				}
				payload = p.Payload()
			}

			if len(payload) == 0 || sshproto.MessageID(payload[0]) != sshproto.MsgKexInit {
				if len(payload) > 0 {
					fmt.Fprintf(out, "%s payload:\n%s", sshproto.MessageID(payload[0]), hex.Dump(payload))
				}
				return nil
			}

			k, err := kexinit.Decode(payload)
			if err != nil {
				return err
			}
			return renderKexInit(out, "SSH_MSG_KEXINIT", k, algo)
		},
	}

	cmd.Flags().BoolVarP(&payloadOnly, "payload", "p", false, "Input is a message payload, not a framed packet")
	cmd.Flags().Uint8Var(&macLength, "mac-length", 0, "MAC length of the framed packet")
	cmd.Flags().StringVar(&hash, "hash", "md5", "Fingerprint hash: md5 or sha256")

	return cmd
}
