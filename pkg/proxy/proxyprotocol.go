package proxy

import (
	"encoding/binary"
	"errors"
	"net"
)

// PROXY protocol v2 header for TCP over IPv4/IPv6
// https://www.haproxy.org/download/1.8/doc/proxy-protocol.txt

const (
	proxyProtocolV2Signature = "\x0D\x0A\x0D\x0A\x00\x0D\x0A\x51\x55\x49\x54\x0A"
	proxyProtocolVersion     = 0x21 // version 2, PROXY command
	afInet                   = 0x11 // AF_INET + STREAM
	afInet6                  = 0x21 // AF_INET6 + STREAM

	proxyHeaderSize = 16
	ipv4AddrSize    = 12
	ipv6AddrSize    = 36
)

var errNotTCP = errors.New("PROXY header needs TCP addresses")

// buildProxyProtocolV2Header describes a client connection to the upstream
// server. Mixed families are sent as IPv6.
func buildProxyProtocolV2Header(clientAddr, proxyAddr net.Addr) ([]byte, error) {
	src, ok := clientAddr.(*net.TCPAddr)
	if !ok {
		return nil, errNotTCP
	}
	dst, ok := proxyAddr.(*net.TCPAddr)
	if !ok {
		return nil, errNotTCP
	}

	var header []byte
	src4, dst4 := src.IP.To4(), dst.IP.To4()

	if src4 != nil && dst4 != nil {
		header = make([]byte, proxyHeaderSize+ipv4AddrSize)
		header[13] = afInet
		copy(header[16:20], src4)
		copy(header[20:24], dst4)
		binary.BigEndian.PutUint16(header[24:26], uint16(src.Port))
		binary.BigEndian.PutUint16(header[26:28], uint16(dst.Port))
	} else {
		header = make([]byte, proxyHeaderSize+ipv6AddrSize)
		header[13] = afInet6
		copy(header[16:32], src.IP.To16())
		copy(header[32:48], dst.IP.To16())
		binary.BigEndian.PutUint16(header[48:50], uint16(src.Port))
		binary.BigEndian.PutUint16(header[50:52], uint16(dst.Port))
	}

	copy(header[0:12], proxyProtocolV2Signature)
	header[12] = proxyProtocolVersion
	binary.BigEndian.PutUint16(header[14:16], uint16(len(header)-proxyHeaderSize))

	return header, nil
}
