package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sshwire/pkg/storage"
)

type fakeStore struct {
	summaries  []storage.Summary
	handshakes []storage.HandshakeDetail
	blocked    map[string]string
	lastFilter *bool
	searches   []string
	failBlock  error
}

func newFakeStore() *fakeStore {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &fakeStore{
		summaries: []storage.Summary{
			{Fingerprint: "aaaa1111", Banner: "SSH-2.0-OpenSSH_9.6", IPCount: 3, TotalHandshakes: 9, LastSeen: now},
			{Fingerprint: "bbbb2222", Banner: "SSH-2.0-libssh_0.9.6", IPCount: 1, TotalHandshakes: 1, LastSeen: now},
		},
		handshakes: []storage.HandshakeDetail{
			{ID: 7, Timestamp: now, IPAddress: "192.0.2.1", Fingerprint: "aaaa1111", Banner: "SSH-2.0-OpenSSH_9.6",
				Kex: "curve25519-sha256", Ciphers: "aes128-ctr", MACs: "hmac-sha2-256", Compression: "none"},
		},
		blocked: map[string]string{},
	}
}

func (f *fakeStore) ListSummaries(limit int, blocked *bool, sortBy string, reverse bool) ([]storage.Summary, error) {
	f.lastFilter = blocked
	return f.summaries, nil
}

func (f *fakeStore) SearchSummaries(hash, banner string, limit int) ([]storage.Summary, error) {
	f.searches = append(f.searches, "summary:"+hash+"|"+banner)
	var out []storage.Summary
	for _, s := range f.summaries {
		if (hash != "" && strings.Contains(s.Fingerprint, hash)) || (banner != "" && strings.Contains(s.Banner, banner)) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListHandshakes(limit int, blocked *bool, sortBy string, reverse bool) ([]storage.HandshakeDetail, error) {
	f.lastFilter = blocked
	return f.handshakes, nil
}

func (f *fakeStore) SearchHandshakes(ip, hash, banner string, limit int) ([]storage.HandshakeDetail, error) {
	f.searches = append(f.searches, "handshake:"+ip+"|"+hash+"|"+banner)
	return f.handshakes, nil
}

func (f *fakeStore) Block(hash, reason string) error {
	if f.failBlock != nil {
		return f.failBlock
	}
	f.blocked[hash] = reason
	return nil
}

func (f *fakeStore) Unblock(hash string) error {
	delete(f.blocked, hash)
	return nil
}

func press(m *model, keys ...tea.KeyMsg) {
	for _, k := range keys {
		m.Update(k)
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	tab   = tea.KeyMsg{Type: tea.KeyTab}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	down  = tea.KeyMsg{Type: tea.KeyDown}
)

func TestModel_InitialView(t *testing.T) {
	m := newModel(newFakeStore(), 25)

	view := m.View()
	assert.Contains(t, view, "Fingerprints")
	assert.Contains(t, view, "aaaa1111")
	assert.Contains(t, view, "libssh_0.9.6")
	assert.NoError(t, m.err)
}

func TestModel_FilterCycles(t *testing.T) {
	store := newFakeStore()
	m := newModel(store, 25)

	press(m, tab)
	require.NotNil(t, store.lastFilter)
	assert.False(t, *store.lastFilter)

	press(m, tab)
	require.NotNil(t, store.lastFilter)
	assert.True(t, *store.lastFilter)

	press(m, tab)
	assert.Nil(t, store.lastFilter)
}

func TestModel_BlockSelected(t *testing.T) {
	store := newFakeStore()
	m := newModel(store, 25)

	press(m, space, down, space, runes("b"))

	assert.Equal(t, map[string]string{"aaaa1111": "tui_block", "bbbb2222": "tui_block"}, store.blocked)
	assert.Contains(t, m.statusMessage, "Blocked 2")
	assert.Empty(t, m.selected)

	press(m, runes("u"))
	assert.Len(t, store.blocked, 1, "unblock without selection acts on the cursor row")
}

func TestModel_BlockFailure(t *testing.T) {
	store := newFakeStore()
	store.failBlock = errors.New("database is locked")
	m := newModel(store, 25)

	press(m, runes("b"))
	assert.Contains(t, m.statusMessage, "database is locked")
}

func TestModel_HandshakeViewShowsOfferedAlgorithms(t *testing.T) {
	m := newModel(newFakeStore(), 25)

	press(m, runes("v"))
	assert.Equal(t, viewHandshakes, m.mode)

	view := m.View()
	assert.Contains(t, view, "192.0.2.1")
	assert.Contains(t, view, "curve25519-sha256")
	assert.Contains(t, view, "hmac-sha2-256")
}

func TestModel_Search(t *testing.T) {
	store := newFakeStore()
	m := newModel(store, 25)

	press(m, runes("/"))
	require.True(t, m.searchMode)
	press(m, tab, runes("libssh"), enter)

	assert.False(t, m.searchMode)
	assert.Equal(t, []string{"summary:|libssh"}, store.searches)
	require.Len(t, m.summaries, 1)
	assert.Equal(t, "bbbb2222", m.summaries[0].Fingerprint)
	assert.True(t, m.showingSearch)

	// periodic refresh leaves the results alone
	m.Update(tickMsg(time.Now()))
	assert.Len(t, m.summaries, 1)

	press(m, runes("r"))
	assert.Len(t, m.summaries, 2)
}
