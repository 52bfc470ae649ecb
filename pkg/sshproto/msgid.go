package sshproto

import "fmt"

// MessageID is the first payload byte of every binary packet (RFC 4250 §4.1).
type MessageID uint8

const (
	MsgDisconnect     MessageID = 1
	MsgIgnore         MessageID = 2
	MsgUnimplemented  MessageID = 3
	MsgDebug          MessageID = 4
	MsgServiceRequest MessageID = 5
	MsgServiceAccept  MessageID = 6
	MsgExtInfo        MessageID = 7
	MsgKexInit        MessageID = 20
	MsgNewKeys        MessageID = 21
	MsgKexDHInit      MessageID = 30
	MsgKexDHReply     MessageID = 31

	MsgUserAuthRequest MessageID = 50
	MsgUserAuthFailure MessageID = 51
	MsgUserAuthSuccess MessageID = 52
	MsgUserAuthBanner  MessageID = 53
	MsgUserAuthPKOK    MessageID = 60

	MsgGlobalRequest       MessageID = 80
	MsgRequestSuccess      MessageID = 81
	MsgRequestFailure      MessageID = 82
	MsgChannelOpen         MessageID = 90
	MsgChannelOpenConfirm  MessageID = 91
	MsgChannelOpenFailure  MessageID = 92
	MsgChannelWindowAdjust MessageID = 93
	MsgChannelData         MessageID = 94
	MsgChannelExtendedData MessageID = 95
	MsgChannelEOF          MessageID = 96
	MsgChannelClose        MessageID = 97
	MsgChannelRequest      MessageID = 98
	MsgChannelSuccess      MessageID = 99
	MsgChannelFailure      MessageID = 100
)

var messageNames = map[MessageID]string{
	MsgDisconnect:          "SSH_MSG_DISCONNECT",
	MsgIgnore:              "SSH_MSG_IGNORE",
	MsgUnimplemented:       "SSH_MSG_UNIMPLEMENTED",
	MsgDebug:               "SSH_MSG_DEBUG",
	MsgServiceRequest:      "SSH_MSG_SERVICE_REQUEST",
	MsgServiceAccept:       "SSH_MSG_SERVICE_ACCEPT",
	MsgExtInfo:             "SSH_MSG_EXT_INFO",
	MsgKexInit:             "SSH_MSG_KEXINIT",
	MsgNewKeys:             "SSH_MSG_NEWKEYS",
	MsgKexDHInit:           "SSH_MSG_KEXDH_INIT",
	MsgKexDHReply:          "SSH_MSG_KEXDH_REPLY",
	MsgUserAuthRequest:     "SSH_MSG_USERAUTH_REQUEST",
	MsgUserAuthFailure:     "SSH_MSG_USERAUTH_FAILURE",
	MsgUserAuthSuccess:     "SSH_MSG_USERAUTH_SUCCESS",
	MsgUserAuthBanner:      "SSH_MSG_USERAUTH_BANNER",
	MsgUserAuthPKOK:        "SSH_MSG_USERAUTH_PK_OK",
	MsgGlobalRequest:       "SSH_MSG_GLOBAL_REQUEST",
	MsgRequestSuccess:      "SSH_MSG_REQUEST_SUCCESS",
	MsgRequestFailure:      "SSH_MSG_REQUEST_FAILURE",
	MsgChannelOpen:         "SSH_MSG_CHANNEL_OPEN",
	MsgChannelOpenConfirm:  "SSH_MSG_CHANNEL_OPEN_CONFIRMATION",
	MsgChannelOpenFailure:  "SSH_MSG_CHANNEL_OPEN_FAILURE",
	MsgChannelWindowAdjust: "SSH_MSG_CHANNEL_WINDOW_ADJUST",
	MsgChannelData:         "SSH_MSG_CHANNEL_DATA",
	MsgChannelExtendedData: "SSH_MSG_CHANNEL_EXTENDED_DATA",
	MsgChannelEOF:          "SSH_MSG_CHANNEL_EOF",
	MsgChannelClose:        "SSH_MSG_CHANNEL_CLOSE",
	MsgChannelRequest:      "SSH_MSG_CHANNEL_REQUEST",
	MsgChannelSuccess:      "SSH_MSG_CHANNEL_SUCCESS",
	MsgChannelFailure:      "SSH_MSG_CHANNEL_FAILURE",
}

// Known reports whether id is a message number this package recognizes.
func (id MessageID) Known() bool {
	_, ok := messageNames[id]
	return ok
}

func (id MessageID) String() string {
	if name, ok := messageNames[id]; ok {
		return name
	}
	return fmt.Sprintf("SSH_MSG_UNKNOWN(%d)", uint8(id))
}
