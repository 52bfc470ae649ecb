package sshproto

import (
	"errors"
	"fmt"
	"testing"
)

func TestMessageID_String(t *testing.T) {
	tests := []struct {
		id   MessageID
		want string
	}{
		{MsgKexInit, "SSH_MSG_KEXINIT"},
		{MsgNewKeys, "SSH_MSG_NEWKEYS"},
		{MsgIgnore, "SSH_MSG_IGNORE"},
	}
	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.id, got, tt.want)
		}
		if !tt.id.Known() {
			t.Errorf("%s not known", tt.want)
		}
	}
}

func TestMessageID_Unknown(t *testing.T) {
	for _, id := range []MessageID{0, 19, 22, 255} {
		if id.Known() {
			t.Errorf("%d should not be known", id)
		}
	}
}

func TestErrorsWrapBothKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("%w: reading payload: %w", ErrStreamIO, cause)

	if !errors.Is(err, ErrStreamIO) || !errors.Is(err, cause) {
		t.Fatalf("expected both kind and cause in %v", err)
	}
	if errors.Is(err, ErrPacketLength) {
		t.Fatal("unrelated kind matched")
	}
}
