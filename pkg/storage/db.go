// Package storage keeps observed handshakes and the fingerprint blocklist in
// SQLite through gorm.
package storage

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sshwire/pkg/ident"
	"sshwire/pkg/kexinit"
)

// ErrInvalidAddress is returned when a remote address holds no IP
var ErrInvalidAddress = errors.New("invalid IP address")

// Repository handles database operations
type Repository struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at path.
func Open(path string, level logger.LogLevel) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewRepository(db)
}

// NewRepository initializes the database schema
func NewRepository(db *gorm.DB) (*Repository, error) {
	// Auto-migrate all tables in dependency order
	if err := db.AutoMigrate(
		&IPAddress{},
		&Fingerprint{},
		&Banner{},
		&BlockedFingerprint{},
		&Handshake{},
	); err != nil {
		return nil, err
	}

	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_handshake_lookup ON handshakes(fingerprint_id, ip_address_id, timestamp DESC)").Error; err != nil {
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// parseIP converts an IP, or a host:port pair, to binary format and version
func parseIP(addr string) (version uint8, address []byte, err error) {
	if host, _, splitErr := net.SplitHostPort(addr); splitErr == nil {
		addr = host
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return 0, nil, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}

	if ip4 := ip.To4(); ip4 != nil {
		return 4, []byte(ip4), nil
	}
	return 6, []byte(ip.To16()), nil
}

// ipToString converts binary IP back to string
func ipToString(version uint8, address []byte) string {
	if (version == 4 && len(address) == 4) || (version == 6 && len(address) == 16) {
		return net.IP(address).String()
	}
	return ""
}

func (r *Repository) getOrCreateIPAddress(tx *gorm.DB, addr string) (*IPAddress, error) {
	version, address, err := parseIP(addr)
	if err != nil {
		return nil, err
	}

	ipAddr := IPAddress{Version: version, Address: address, CreatedAt: time.Now()}
	err = tx.Where("version = ? AND address = ?", version, address).
		FirstOrCreate(&ipAddr).Error
	return &ipAddr, err
}

func (r *Repository) getOrCreateFingerprint(tx *gorm.DB, hash string) (*Fingerprint, error) {
	fp := Fingerprint{Hash: hash, CreatedAt: time.Now()}
	err := tx.Where("hash = ?", hash).FirstOrCreate(&fp).Error
	return &fp, err
}

func (r *Repository) getOrCreateBanner(tx *gorm.DB, v ident.Version) (*Banner, error) {
	banner := Banner{
		Line:            v.Line(),
		ProtoVersion:    v.ProtoVersion,
		SoftwareVersion: v.SoftwareVersion,
		Comments:        v.Comments,
		CreatedAt:       time.Now(),
	}
	err := tx.Where("line = ?", banner.Line).FirstOrCreate(&banner).Error
	return &banner, err
}

// HandshakeRecord is what the proxy or a probe observed for one connection.
type HandshakeRecord struct {
	SessionID   uuid.UUID
	RemoteAddr  string
	Fingerprint string
	Banner      ident.Version
	KexInit     *kexinit.KexInit
	Blocked     bool
	Timestamp   time.Time
}

// RecordHandshake stores a handshake and its normalized dimensions.
func (r *Repository) RecordHandshake(rec HandshakeRecord) error {
	if rec.KexInit == nil {
		return errors.New("handshake record without KEXINIT")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.SessionID == uuid.Nil {
		rec.SessionID = uuid.New()
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		ipAddr, err := r.getOrCreateIPAddress(tx, rec.RemoteAddr)
		if err != nil {
			return err
		}

		fp, err := r.getOrCreateFingerprint(tx, rec.Fingerprint)
		if err != nil {
			return err
		}

		banner, err := r.getOrCreateBanner(tx, rec.Banner)
		if err != nil {
			return err
		}

		k := rec.KexInit
		return tx.Create(&Handshake{
			SessionID:         rec.SessionID.String(),
			IPAddressID:       ipAddr.ID,
			FingerprintID:     fp.ID,
			BannerID:          banner.ID,
			KexAlgorithms:     strings.Join(k.KexAlgorithms, ","),
			HostKeyAlgorithms: strings.Join(k.ServerHostKeyAlgorithms, ","),
			Ciphers:           strings.Join(k.CiphersClientServer, ","),
			MACs:              strings.Join(k.MACsClientServer, ","),
			Compression:       strings.Join(k.CompressionClientServer, ","),
			Blocked:           rec.Blocked,
			Timestamp:         rec.Timestamp,
		}).Error
	})
}

// LoadBlockedHashes retrieves all blocked fingerprints
func (r *Repository) LoadBlockedHashes() ([]string, error) {
	var hashes []string

	err := r.db.Model(&BlockedFingerprint{}).
		Joins("JOIN fingerprints ON fingerprints.id = blocked_fingerprints.fingerprint_id").
		Pluck("fingerprints.hash", &hashes).Error

	return hashes, err
}

// Block marks a fingerprint as blocked. Blocking twice keeps the first reason.
func (r *Repository) Block(hash, reason string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		fp, err := r.getOrCreateFingerprint(tx, hash)
		if err != nil {
			return err
		}

		blocked := BlockedFingerprint{
			FingerprintID: fp.ID,
			BlockedAt:     time.Now(),
			Reason:        reason,
		}
		return tx.Where("fingerprint_id = ?", fp.ID).FirstOrCreate(&blocked).Error
	})
}

// Unblock removes a fingerprint from the blocklist
func (r *Repository) Unblock(hash string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var fp Fingerprint
		if err := tx.Where("hash = ?", hash).First(&fp).Error; err != nil {
			return err
		}

		return tx.Where("fingerprint_id = ?", fp.ID).
			Delete(&BlockedFingerprint{}).Error
	})
}

// BlockedEntry is a blocked fingerprint with metadata
type BlockedEntry struct {
	Hash      string
	BlockedAt time.Time
	Reason    string
}

// BlockedFingerprints retrieves all blocked fingerprints, newest first
func (r *Repository) BlockedFingerprints() ([]BlockedEntry, error) {
	var results []BlockedEntry

	err := r.db.Model(&BlockedFingerprint{}).
		Select("fingerprints.hash as hash, blocked_fingerprints.blocked_at as blocked_at, blocked_fingerprints.reason as reason").
		Joins("JOIN fingerprints ON fingerprints.id = blocked_fingerprints.fingerprint_id").
		Order("blocked_fingerprints.blocked_at DESC").
		Scan(&results).Error

	return results, err
}

// Statistics are aggregate counts over the handshake log
type Statistics struct {
	TotalHandshakes    int64
	BlockedHandshakes  int64
	UniqueIPs          int64
	UniqueFingerprints int64
	UniqueBanners      int64
}

// BlockRate is the blocked share of all handshakes, in percent.
func (s Statistics) BlockRate() float64 {
	if s.TotalHandshakes == 0 {
		return 0
	}
	return float64(s.BlockedHandshakes) / float64(s.TotalHandshakes) * 100
}

// Statistics retrieves handshake statistics
func (r *Repository) Statistics() (Statistics, error) {
	var stats Statistics

	counts := []struct {
		query *gorm.DB
		out   *int64
	}{
		{r.db.Model(&Handshake{}), &stats.TotalHandshakes},
		{r.db.Model(&Handshake{}).Where("blocked = ?", true), &stats.BlockedHandshakes},
		{r.db.Model(&IPAddress{}), &stats.UniqueIPs},
		{r.db.Model(&Fingerprint{}), &stats.UniqueFingerprints},
		{r.db.Model(&Banner{}), &stats.UniqueBanners},
	}

	for _, c := range counts {
		if err := c.query.Count(c.out).Error; err != nil {
			return Statistics{}, err
		}
	}

	return stats, nil
}
