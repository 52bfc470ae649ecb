package kexinit

import (
	"fmt"

	"sshwire/pkg/sshproto"
)

// DirectionAlgorithms are the algorithms chosen for one direction of traffic.
type DirectionAlgorithms struct {
	Cipher      string
	MAC         string
	Compression string
	Language    string
}

// Algorithms is the outcome of negotiating two KEXINIT messages.
type Algorithms struct {
	Kex          string
	HostKey      string
	ClientServer DirectionAlgorithms
	ServerClient DirectionAlgorithms
}

// Negotiate picks, for every category, the first algorithm in the client's
// list that the server also offers (RFC 4253 §7.1). Languages may come out
// empty; every other category must agree.
func Negotiate(client, server *KexInit) (*Algorithms, error) {
	var (
		algs = &Algorithms{}
		err  error
	)

	required := []struct {
		name           string
		client, server []string
		out            *string
	}{
		{"kex", client.KexAlgorithms, server.KexAlgorithms, &algs.Kex},
		{"host key", client.ServerHostKeyAlgorithms, server.ServerHostKeyAlgorithms, &algs.HostKey},
		{"client to server cipher", client.CiphersClientServer, server.CiphersClientServer, &algs.ClientServer.Cipher},
		{"server to client cipher", client.CiphersServerClient, server.CiphersServerClient, &algs.ServerClient.Cipher},
		{"client to server MAC", client.MACsClientServer, server.MACsClientServer, &algs.ClientServer.MAC},
		{"server to client MAC", client.MACsServerClient, server.MACsServerClient, &algs.ServerClient.MAC},
		{"client to server compression", client.CompressionClientServer, server.CompressionClientServer, &algs.ClientServer.Compression},
		{"server to client compression", client.CompressionServerClient, server.CompressionServerClient, &algs.ServerClient.Compression},
	}

	for _, r := range required {
		if *r.out, err = findCommon(r.name, r.client, r.server); err != nil {
			return nil, err
		}
	}

	algs.ClientServer.Language, _ = findCommon("", client.LanguagesClientServer, server.LanguagesClientServer)
	algs.ServerClient.Language, _ = findCommon("", client.LanguagesServerClient, server.LanguagesServerClient)

	return algs, nil
}

func findCommon(what string, client, server []string) (string, error) {
	for _, c := range client {
		for _, s := range server {
			if c == s {
				return c, nil
			}
		}
	}
	return "", fmt.Errorf("%w for %s; client offered %v, server offered %v", sshproto.ErrNoCommonAlgorithm, what, client, server)
}
