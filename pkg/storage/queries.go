package storage

import (
	"time"

	"gorm.io/gorm"
)

// HandshakeDetail contains denormalized handshake information for display
type HandshakeDetail struct {
	ID          uint
	SessionID   string
	Timestamp   time.Time
	IPAddress   string
	Fingerprint string
	Banner      string
	Software    string
	Kex         string
	Ciphers     string
	MACs        string
	Compression string
	Blocked     bool
}

type handshakeRow struct {
	ID             uint      `gorm:"column:id"`
	SessionID      string    `gorm:"column:session_id"`
	Timestamp      time.Time `gorm:"column:timestamp"`
	IPVersion      uint8     `gorm:"column:ip_version"`
	IPAddressBytes []byte    `gorm:"column:ip_address_bytes"`
	Fingerprint    string    `gorm:"column:fingerprint"`
	Banner         string    `gorm:"column:banner"`
	Software       string    `gorm:"column:software"`
	Kex            string    `gorm:"column:kex"`
	Ciphers        string    `gorm:"column:ciphers"`
	MACs           string    `gorm:"column:macs"`
	Compression    string    `gorm:"column:compression"`
	Blocked        bool      `gorm:"column:blocked"`
}

func (r *Repository) handshakeQuery() *gorm.DB {
	return r.db.Table("handshakes").
		Select(`
			handshakes.id as id,
			handshakes.session_id as session_id,
			handshakes.timestamp as timestamp,
			ip_addresses.version as ip_version,
			ip_addresses.address as ip_address_bytes,
			fingerprints.hash as fingerprint,
			banners.line as banner,
			banners.software_version as software,
			handshakes.kex_algorithms as kex,
			handshakes.ciphers as ciphers,
			handshakes.macs as macs,
			handshakes.compression as compression,
			handshakes.blocked as blocked
		`).
		Joins("JOIN ip_addresses ON ip_addresses.id = handshakes.ip_address_id").
		Joins("JOIN fingerprints ON fingerprints.id = handshakes.fingerprint_id").
		Joins("JOIN banners ON banners.id = handshakes.banner_id")
}

func findHandshakes(query *gorm.DB, limit int) ([]HandshakeDetail, error) {
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []handshakeRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	details := make([]HandshakeDetail, len(rows))
	for i, row := range rows {
		details[i] = HandshakeDetail{
			ID:          row.ID,
			SessionID:   row.SessionID,
			Timestamp:   row.Timestamp,
			IPAddress:   ipToString(row.IPVersion, row.IPAddressBytes),
			Fingerprint: row.Fingerprint,
			Banner:      row.Banner,
			Software:    row.Software,
			Kex:         row.Kex,
			Ciphers:     row.Ciphers,
			MACs:        row.MACs,
			Compression: row.Compression,
			Blocked:     row.Blocked,
		}
	}
	return details, nil
}

func orderBy(column string, reverse bool) string {
	if reverse {
		return column + " DESC"
	}
	return column + " ASC"
}

// ListHandshakes retrieves handshakes with filtering and sorting
func (r *Repository) ListHandshakes(limit int, blocked *bool, sortBy string, reverse bool) ([]HandshakeDetail, error) {
	query := r.handshakeQuery()

	if blocked != nil {
		query = query.Where("handshakes.blocked = ?", *blocked)
	}

	var column string
	switch sortBy {
	case "ip":
		column = "ip_addresses.address"
	case "hassh":
		column = "fingerprints.hash"
	case "software":
		column = "banners.software_version"
	default:
		column = "handshakes.timestamp"
	}

	return findHandshakes(query.Order(orderBy(column, reverse)), limit)
}

// HandshakeHistory retrieves recent handshakes from one IP
func (r *Repository) HandshakeHistory(ip string, limit int) ([]HandshakeDetail, error) {
	version, address, err := parseIP(ip)
	if err != nil {
		return nil, err
	}

	query := r.handshakeQuery().
		Where("ip_addresses.version = ? AND ip_addresses.address = ?", version, address).
		Order("handshakes.timestamp DESC")

	return findHandshakes(query, limit)
}

// SearchHandshakes matches substrings of the fingerprint and banner, and an
// exact IP when one is given
func (r *Repository) SearchHandshakes(ip, hash, banner string, limit int) ([]HandshakeDetail, error) {
	query := r.handshakeQuery()

	if ip != "" {
		version, address, err := parseIP(ip)
		if err != nil {
			return nil, err
		}
		query = query.Where("ip_addresses.version = ? AND ip_addresses.address = ?", version, address)
	}

	if hash != "" {
		query = query.Where("fingerprints.hash LIKE ?", "%"+hash+"%")
	}

	if banner != "" {
		query = query.Where("banners.line LIKE ?", "%"+banner+"%")
	}

	return findHandshakes(query.Order("handshakes.timestamp DESC"), limit)
}

// Summary contains aggregated information about a fingerprint and banner pair
type Summary struct {
	Fingerprint     string
	Banner          string
	IPCount         int
	LastSeen        time.Time
	FirstSeen       time.Time
	TotalHandshakes int
	Blocked         bool
}

type summaryRow struct {
	Fingerprint     string `gorm:"column:fingerprint"`
	Banner          string `gorm:"column:banner"`
	IPCount         int    `gorm:"column:ip_count"`
	LastSeen        string `gorm:"column:last_seen"`
	FirstSeen       string `gorm:"column:first_seen"`
	TotalHandshakes int    `gorm:"column:total_handshakes"`
	IsBlocked       int    `gorm:"column:is_blocked"`
}

func (r *Repository) summaryQuery() *gorm.DB {
	return r.db.Table("handshakes").
		Select(`
			fingerprints.hash as fingerprint,
			banners.line as banner,
			COUNT(DISTINCT ip_addresses.address) as ip_count,
			MAX(handshakes.timestamp) as last_seen,
			MIN(handshakes.timestamp) as first_seen,
			COUNT(*) as total_handshakes,
			CASE WHEN blocked_fingerprints.id IS NOT NULL THEN 1 ELSE 0 END as is_blocked
		`).
		Joins("JOIN ip_addresses ON ip_addresses.id = handshakes.ip_address_id").
		Joins("JOIN fingerprints ON fingerprints.id = handshakes.fingerprint_id").
		Joins("JOIN banners ON banners.id = handshakes.banner_id").
		Joins("LEFT JOIN blocked_fingerprints ON blocked_fingerprints.fingerprint_id = fingerprints.id").
		Group("fingerprints.hash, banners.line, blocked_fingerprints.id")
}

// aggregates come back from SQLite as text
func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func findSummaries(query *gorm.DB, limit int) ([]Summary, error) {
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []summaryRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	summaries := make([]Summary, len(rows))
	for i, row := range rows {
		summaries[i] = Summary{
			Fingerprint:     row.Fingerprint,
			Banner:          row.Banner,
			IPCount:         row.IPCount,
			LastSeen:        parseSQLiteTime(row.LastSeen),
			FirstSeen:       parseSQLiteTime(row.FirstSeen),
			TotalHandshakes: row.TotalHandshakes,
			Blocked:         row.IsBlocked == 1,
		}
	}
	return summaries, nil
}

// ListSummaries retrieves aggregated fingerprint information
func (r *Repository) ListSummaries(limit int, blocked *bool, sortBy string, reverse bool) ([]Summary, error) {
	query := r.summaryQuery()

	if blocked != nil {
		if *blocked {
			query = query.Having("is_blocked = 1")
		} else {
			query = query.Having("is_blocked = 0")
		}
	}

	var column string
	switch sortBy {
	case "ip_count":
		column = "ip_count"
	case "total":
		column = "total_handshakes"
	case "hassh":
		column = "fingerprint"
	case "banner":
		column = "banner"
	default:
		column = "last_seen"
	}

	return findSummaries(query.Order(orderBy(column, reverse)), limit)
}

// SearchSummaries searches summaries by fingerprint and banner substrings
func (r *Repository) SearchSummaries(hash, banner string, limit int) ([]Summary, error) {
	query := r.summaryQuery()

	if hash != "" {
		query = query.Where("fingerprints.hash LIKE ?", "%"+hash+"%")
	}

	if banner != "" {
		query = query.Where("banners.line LIKE ?", "%"+banner+"%")
	}

	return findSummaries(query.Order("last_seen DESC"), limit)
}
