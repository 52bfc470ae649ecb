package proxy

import (
	"fmt"
	"log/syslog"
)

// EventLog receives per-connection events. SyslogWriter is the production
// implementation.
type EventLog interface {
	LogConnection(connID uint64, client, target string, blocked bool) error
	LogHandshake(connID uint64, client string, c *Capture) error
	LogMalformed(connID uint64, client string, err error) error
	LogDisconnect(connID uint64, client string) error
	Close() error
}

// SyslogWriter writes proxy events to the auth facility
type SyslogWriter struct {
	writer *syslog.Writer
}

// NewSyslogWriter opens the local syslog daemon under tag.
func NewSyslogWriter(tag string) (*SyslogWriter, error) {
	w, err := syslog.New(syslog.LOG_AUTH|syslog.LOG_INFO, tag)
	if err != nil {
		return nil, err
	}
	return &SyslogWriter{writer: w}, nil
}

func connectionMessage(connID uint64, client, target string, blocked bool) string {
	status := "ALLOWED"
	if blocked {
		status = "BLOCKED"
	}
	return fmt.Sprintf("[conn:%d] Connection %s: %s -> %s", connID, status, client, target)
}

func handshakeMessage(connID uint64, client string, c *Capture) string {
	return fmt.Sprintf("[conn:%d] Client %s: HASSH=%s Banner=%q",
		connID, client, c.Fingerprint, c.Version.Line())
}

// LogConnection logs the allow or block decision
func (s *SyslogWriter) LogConnection(connID uint64, client, target string, blocked bool) error {
	msg := connectionMessage(connID, client, target, blocked)
	if blocked {
		return s.writer.Warning(msg)
	}
	return s.writer.Info(msg)
}

// LogHandshake logs the captured fingerprint
func (s *SyslogWriter) LogHandshake(connID uint64, client string, c *Capture) error {
	return s.writer.Info(handshakeMessage(connID, client, c))
}

// LogMalformed logs a client stream that could not be fingerprinted
func (s *SyslogWriter) LogMalformed(connID uint64, client string, err error) error {
	return s.writer.Warning(fmt.Sprintf("[conn:%d] Unparseable handshake from %s: %v", connID, client, err))
}

// LogDisconnect logs connection termination in sshd-compatible format
func (s *SyslogWriter) LogDisconnect(connID uint64, client string) error {
	return s.writer.Info(fmt.Sprintf("[conn:%d] Disconnected from %s", connID, client))
}

// Close closes the syslog connection
func (s *SyslogWriter) Close() error {
	return s.writer.Close()
}
