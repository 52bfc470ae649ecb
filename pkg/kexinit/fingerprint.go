package kexinit

import (
	"crypto/md5" // #nosec G401 -- MD5 used for fingerprinting only
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashAlgorithm specifies which hash algorithm to use
type HashAlgorithm int

const (
	// HashMD5 is the classic HASSH digest
	HashMD5 HashAlgorithm = iota
	// HashSHA256 uses SHA-256 (slower but collision-resistant)
	HashSHA256
)

func (h HashAlgorithm) String() string {
	if h == HashSHA256 {
		return "sha256"
	}
	return "md5"
}

// ParseHashAlgorithm maps "md5" or "sha256" to a HashAlgorithm.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch strings.ToLower(s) {
	case "", "md5":
		return HashMD5, nil
	case "sha256":
		return HashSHA256, nil
	default:
		return HashMD5, fmt.Errorf("unknown hash algorithm %q (use md5 or sha256)", s)
	}
}

// ClientFingerprint is the HASSH of a client KEXINIT: the client to server
// cipher, MAC and compression lists next to the kex list.
func (k *KexInit) ClientFingerprint(algo HashAlgorithm) string {
	return fingerprint(algo, k.KexAlgorithms, k.CiphersClientServer, k.MACsClientServer, k.CompressionClientServer)
}

// ServerFingerprint is the HASSHServer of a server KEXINIT.
func (k *KexInit) ServerFingerprint(algo HashAlgorithm) string {
	return fingerprint(algo, k.KexAlgorithms, k.CiphersServerClient, k.MACsServerClient, k.CompressionServerClient)
}

// FingerprintInput is the string that ClientFingerprint hashes.
func (k *KexInit) FingerprintInput() string {
	return fingerprintInput(k.KexAlgorithms, k.CiphersClientServer, k.MACsClientServer, k.CompressionClientServer)
}

func fingerprintInput(kex, ciphers, macs, compression []string) string {
	return fmt.Sprintf("%s;%s;%s;%s",
		strings.Join(kex, ","),
		strings.Join(ciphers, ","),
		strings.Join(macs, ","),
		strings.Join(compression, ","))
}

func fingerprint(algo HashAlgorithm, kex, ciphers, macs, compression []string) string {
	algorithms := fingerprintInput(kex, ciphers, macs, compression)

	switch algo {
	case HashSHA256:
		hash := sha256.Sum256([]byte(algorithms))
		return hex.EncodeToString(hash[:])
	default: // HashMD5
		hash := md5.Sum([]byte(algorithms)) // #nosec G401
		return hex.EncodeToString(hash[:])
	}
}
