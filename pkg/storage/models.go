package storage

import (
	"time"
)

// IPAddress stores unique IP addresses in binary format
type IPAddress struct {
	ID        uint      `gorm:"primaryKey;column:id"`
	Version   uint8     `gorm:"column:version;not null;index:idx_ip_unique"`
	Address   []byte    `gorm:"column:address;uniqueIndex:idx_ip_unique;size:16;not null"`
	CreatedAt time.Time `gorm:"column:created_at;index;not null"`
}

func (IPAddress) TableName() string {
	return "ip_addresses"
}

// Fingerprint stores unique HASSH values (md5 or sha256 hex)
type Fingerprint struct {
	ID        uint      `gorm:"primaryKey;column:id"`
	Hash      string    `gorm:"column:hash;uniqueIndex;size:64;not null"`
	CreatedAt time.Time `gorm:"column:created_at;index;not null"`
}

func (Fingerprint) TableName() string {
	return "fingerprints"
}

// Banner stores unique identification lines together with their parsed fields
type Banner struct {
	ID              uint      `gorm:"primaryKey;column:id"`
	Line            string    `gorm:"column:line;uniqueIndex;size:520;not null"`
	ProtoVersion    string    `gorm:"column:proto_version;size:8;index"`
	SoftwareVersion string    `gorm:"column:software_version;size:255;index"`
	Comments        string    `gorm:"column:comments;size:255"`
	CreatedAt       time.Time `gorm:"column:created_at;index;not null"`
}

func (Banner) TableName() string {
	return "banners"
}

// BlockedFingerprint tracks which fingerprints are blocked
type BlockedFingerprint struct {
	ID            uint        `gorm:"primaryKey;column:id"`
	FingerprintID uint        `gorm:"column:fingerprint_id;uniqueIndex;not null"`
	Fingerprint   Fingerprint `gorm:"foreignKey:FingerprintID;constraint:OnDelete:CASCADE"`
	BlockedAt     time.Time   `gorm:"column:blocked_at;index;not null"`
	Reason        string      `gorm:"column:reason;size:255"`
}

func (BlockedFingerprint) TableName() string {
	return "blocked_fingerprints"
}

// Handshake records one observed KEXINIT exchange (fact table). The offered
// algorithm lists are kept comma-joined, as they appear on the wire.
type Handshake struct {
	ID            uint        `gorm:"primaryKey;column:id"`
	SessionID     string      `gorm:"column:session_id;uniqueIndex;size:36;not null"`
	IPAddressID   uint        `gorm:"column:ip_address_id;index:idx_handshake_composite;not null"`
	IPAddress     IPAddress   `gorm:"foreignKey:IPAddressID;constraint:OnDelete:RESTRICT"`
	FingerprintID uint        `gorm:"column:fingerprint_id;index:idx_handshake_composite;not null"`
	Fingerprint   Fingerprint `gorm:"foreignKey:FingerprintID;constraint:OnDelete:RESTRICT"`
	BannerID      uint        `gorm:"column:banner_id;index;not null"`
	Banner        Banner      `gorm:"foreignKey:BannerID;constraint:OnDelete:RESTRICT"`

	KexAlgorithms     string `gorm:"column:kex_algorithms;type:text"`
	HostKeyAlgorithms string `gorm:"column:host_key_algorithms;type:text"`
	Ciphers           string `gorm:"column:ciphers;type:text"`
	MACs              string `gorm:"column:macs;type:text"`
	Compression       string `gorm:"column:compression;type:text"`

	Blocked   bool      `gorm:"column:blocked;index:idx_handshake_composite;not null"`
	Timestamp time.Time `gorm:"column:timestamp;index:idx_handshake_composite;not null"`
}

func (Handshake) TableName() string {
	return "handshakes"
}
