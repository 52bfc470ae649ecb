// Package tui is the interactive view over the handshake log.
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sshwire/pkg/storage"
)

// Store is the part of the repository the TUI reads and writes.
type Store interface {
	ListSummaries(limit int, blocked *bool, sortBy string, reverse bool) ([]storage.Summary, error)
	SearchSummaries(hash, banner string, limit int) ([]storage.Summary, error)
	ListHandshakes(limit int, blocked *bool, sortBy string, reverse bool) ([]storage.HandshakeDetail, error)
	SearchHandshakes(ip, hash, banner string, limit int) ([]storage.HandshakeDetail, error)
	Block(hash, reason string) error
	Unblock(hash string) error
}

type viewMode int
type filterState int

const (
	viewFingerprints viewMode = iota
	viewHandshakes
)

const (
	filterAll filterState = iota
	filterAllowed
	filterBlocked
)

var filterNames = []string{"All", "Allowed", "Blocked"}

const refreshInterval = 5 * time.Second

var (
	fingerprintColumns = []table.Column{
		{Title: "HASSH", Width: 34},
		{Title: "Banner", Width: 42},
		{Title: "IPs", Width: 6},
		{Title: "Seen", Width: 8},
		{Title: "Last Seen", Width: 19},
		{Title: "Blocked", Width: 7},
	}
	handshakeColumns = []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Timestamp", Width: 19},
		{Title: "IP Address", Width: 15},
		{Title: "HASSH", Width: 32},
		{Title: "Banner", Width: 37},
		{Title: "Blocked", Width: 7},
	}

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	activeTab   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Padding(0, 1)
	inactiveTab = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type model struct {
	store         Store
	table         table.Model
	mode          viewMode
	filter        filterState
	limit         int
	summaries     []storage.Summary
	handshakes    []storage.HandshakeDetail
	selected      map[string]bool // fingerprint in both views
	searchMode    bool
	searchInput   textinput.Model
	searchField   string
	showingSearch bool
	err           error
	statusMessage string
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the TUI and blocks until the user quits.
func Run(store Store, limit int) error {
	m := newModel(store, limit)

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func newModel(store Store, limit int) *model {
	t := table.New(
		table.WithColumns(fingerprintColumns),
		table.WithFocused(true),
		table.WithHeight(20),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	searchInput := textinput.New()
	searchInput.Placeholder = "Search..."
	searchInput.CharLimit = 100

	m := &model{
		store:       store,
		table:       t,
		mode:        viewFingerprints,
		filter:      filterAll,
		limit:       limit,
		selected:    make(map[string]bool),
		searchInput: searchInput,
		searchField: "hassh",
	}

	m.refreshData()
	return m
}

func (m *model) switchView() {
	m.filter = filterAll
	m.selected = make(map[string]bool)

	if m.mode == viewFingerprints {
		m.mode = viewHandshakes
		m.searchField = "ip"
		m.table.SetRows(nil)
		m.table.SetColumns(handshakeColumns)
		m.statusMessage = "Switched to Handshakes view"
	} else {
		m.mode = viewFingerprints
		m.searchField = "hassh"
		m.table.SetRows(nil)
		m.table.SetColumns(fingerprintColumns)
		m.statusMessage = "Switched to Fingerprints view"
	}

	m.refreshData()
}

func (m *model) blockedFilter() *bool {
	var blocked bool
	switch m.filter {
	case filterAllowed:
		blocked = false
	case filterBlocked:
		blocked = true
	default:
		return nil
	}
	return &blocked
}

func (m *model) refreshData() {
	m.showingSearch = false

	var err error
	if m.mode == viewFingerprints {
		m.summaries, err = m.store.ListSummaries(m.limit, m.blockedFilter(), "last_seen", true)
	} else {
		m.handshakes, err = m.store.ListHandshakes(m.limit, m.blockedFilter(), "timestamp", true)
	}
	m.err = err
	m.updateTable()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "no"
}

func (m *model) mark(hash string) string {
	if m.selected[hash] {
		return "✓ "
	}
	return "  "
}

func (m *model) updateTable() {
	var rows []table.Row

	if m.mode == viewFingerprints {
		rows = make([]table.Row, len(m.summaries))
		for i, s := range m.summaries {
			rows[i] = table.Row{
				m.mark(s.Fingerprint) + s.Fingerprint,
				truncate(s.Banner, 42),
				strconv.Itoa(s.IPCount),
				strconv.Itoa(s.TotalHandshakes),
				s.LastSeen.Format(time.DateTime),
				yesNo(s.Blocked),
			}
		}
	} else {
		rows = make([]table.Row, len(m.handshakes))
		for i, h := range m.handshakes {
			rows[i] = table.Row{
				m.mark(h.Fingerprint) + strconv.FormatUint(uint64(h.ID), 10),
				h.Timestamp.Format(time.DateTime),
				h.IPAddress,
				h.Fingerprint,
				truncate(h.Banner, 37),
				yesNo(h.Blocked),
			}
		}
	}

	m.table.SetRows(rows)
}

// cursorFingerprint is the fingerprint on the highlighted row.
func (m *model) cursorFingerprint() (string, bool) {
	i := m.table.Cursor()
	if m.mode == viewFingerprints {
		if i >= 0 && i < len(m.summaries) {
			return m.summaries[i].Fingerprint, true
		}
		return "", false
	}
	if i >= 0 && i < len(m.handshakes) {
		return m.handshakes[i].Fingerprint, true
	}
	return "", false
}

func (m *model) Init() tea.Cmd {
	return tickCmd()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)

	case tickMsg:
		// keep search results on screen until the next explicit refresh
		if !m.searchMode && !m.showingSearch {
			m.refreshData()
		}
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-12, 3))
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "v":
		m.switchView()
		return m, nil

	case "tab":
		m.filter = (m.filter + 1) % 3
		m.refreshData()
		m.statusMessage = "Filter: " + filterNames[m.filter]
		return m, nil

	case "shift+tab":
		m.filter = (m.filter + 2) % 3
		m.refreshData()
		m.statusMessage = "Filter: " + filterNames[m.filter]
		return m, nil

	case " ":
		if hash, ok := m.cursorFingerprint(); ok {
			m.selected[hash] = !m.selected[hash]
			m.updateTable()
		}
		return m, nil

	case "b":
		m.applyToSelected("Blocked", func(hash string) error {
			return m.store.Block(hash, "tui_block")
		})
		return m, nil

	case "u":
		m.applyToSelected("Unblocked", m.store.Unblock)
		return m, nil

	case "c":
		m.selected = make(map[string]bool)
		m.updateTable()
		m.statusMessage = "Selection cleared"
		return m, nil

	case "/":
		m.searchMode = true
		m.searchInput.Focus()
		m.statusMessage = fmt.Sprintf("Search by %s (TAB to switch, ESC to cancel)", m.searchField)
		return m, nil

	case "r":
		m.refreshData()
		m.statusMessage = "Refreshed"
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// applyToSelected runs action on every selected fingerprint, or on the one
// under the cursor when nothing is selected.
func (m *model) applyToSelected(verb string, action func(hash string) error) {
	var hashes []string
	for hash, on := range m.selected {
		if on {
			hashes = append(hashes, hash)
		}
	}
	if len(hashes) == 0 {
		hash, ok := m.cursorFingerprint()
		if !ok {
			m.statusMessage = "Nothing selected"
			return
		}
		hashes = []string{hash}
	}

	count := 0
	var failures []string
	for _, hash := range hashes {
		if err := action(hash); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", truncate(hash, 11), err))
			continue
		}
		count++
	}

	m.selected = make(map[string]bool)
	m.refreshData()

	if len(failures) > 0 {
		m.statusMessage = fmt.Sprintf("%s %d, errors: %s", verb, count, strings.Join(failures, ", "))
		return
	}
	m.statusMessage = fmt.Sprintf("%s %d fingerprint(s). Run 'sshctl reload' on the proxy.", verb, count)
}

func (m *model) searchFields() []string {
	if m.mode == viewFingerprints {
		return []string{"hassh", "banner"}
	}
	return []string{"ip", "hassh", "banner"}
}

func (m *model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.endSearch()
		m.statusMessage = ""
		return m, nil

	case tea.KeyEnter:
		if query := strings.TrimSpace(m.searchInput.Value()); query != "" {
			m.performSearch(query)
		}
		m.endSearch()
		return m, nil

	case tea.KeyTab:
		fields := m.searchFields()
		for i, f := range fields {
			if f == m.searchField {
				m.searchField = fields[(i+1)%len(fields)]
				break
			}
		}
		m.statusMessage = fmt.Sprintf("Search by %s (ESC to cancel)", m.searchField)
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m *model) endSearch() {
	m.searchMode = false
	m.searchInput.Blur()
	m.searchInput.SetValue("")
}

func (m *model) performSearch(query string) {
	var ip, hash, banner string
	switch m.searchField {
	case "ip":
		ip = query
	case "hassh":
		hash = query
	case "banner":
		banner = query
	}

	var (
		n   int
		err error
	)
	if m.mode == viewFingerprints {
		m.summaries, err = m.store.SearchSummaries(hash, banner, m.limit)
		n = len(m.summaries)
	} else {
		m.handshakes, err = m.store.SearchHandshakes(ip, hash, banner, m.limit)
		n = len(m.handshakes)
	}

	if err != nil {
		m.err = err
		m.statusMessage = fmt.Sprintf("Search failed: %v", err)
		return
	}

	m.err = nil
	m.showingSearch = true
	m.updateTable()
	m.statusMessage = fmt.Sprintf("Found %d results for '%s'", n, query)
}

// detail describes what the highlighted client offered.
func (m *model) detail() string {
	if m.mode != viewHandshakes {
		return ""
	}
	i := m.table.Cursor()
	if i < 0 || i >= len(m.handshakes) {
		return ""
	}

	h := m.handshakes[i]
	return detailStyle.Render(fmt.Sprintf("kex: %s\nciphers: %s\nmacs: %s  compression: %s",
		h.Kex, h.Ciphers, h.MACs, h.Compression))
}

func (m *model) View() string {
	var b strings.Builder

	viewName := "Fingerprints"
	if m.mode == viewHandshakes {
		viewName = "Handshakes"
	}
	b.WriteString(titleStyle.Render("sshwire - "+viewName) + "\n\n")

	tabs := make([]string, len(filterNames))
	for i, name := range filterNames {
		if filterState(i) == m.filter {
			tabs[i] = activeTab.Render(name)
		} else {
			tabs[i] = inactiveTab.Render(name)
		}
	}
	b.WriteString(strings.Join(tabs, " | ") + "\n\n")

	b.WriteString(m.table.View() + "\n\n")

	if d := m.detail(); d != "" {
		b.WriteString(d + "\n\n")
	}

	if m.searchMode {
		fmt.Fprintf(&b, "Search by %s: %s\n\n", m.searchField, m.searchInput.View())
	}

	if m.statusMessage != "" {
		b.WriteString(statusStyle.Render(m.statusMessage) + "\n")
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("v: switch view | tab: filter | space: select | b: block | u: unblock | c: clear | /: search | r: refresh | q: quit"))

	return b.String()
}
