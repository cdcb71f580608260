package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HaPhanBaoMinh/netobs/internal/domain"
	"github.com/HaPhanBaoMinh/netobs/internal/topology"
	"github.com/HaPhanBaoMinh/netobs/internal/ui/styles"
	"github.com/HaPhanBaoMinh/netobs/internal/ui/widgets"
)

type View int

const (
	ViewPairs View = iota
	ViewServices
)

// bucket is one tab of the pairs view.
type bucket struct {
	title  string
	client bool
	rows   func(domain.PairBuckets) []domain.EnrichedPair
}

var buckets = []bucket{
	{"TCP clients", true, func(b domain.PairBuckets) []domain.EnrichedPair { return b.TCPClients }},
	{"TCP servers", false, func(b domain.PairBuckets) []domain.EnrichedPair { return b.TCPServers }},
	{"HTTP clients", true, func(b domain.PairBuckets) []domain.EnrichedPair { return b.HTTPClients }},
	{"HTTP servers", false, func(b domain.PairBuckets) []domain.EnrichedPair { return b.HTTPServers }},
	{"Remote clients", true, func(b domain.PairBuckets) []domain.EnrichedPair { return b.RemoteClients }},
	{"Remote servers", false, func(b domain.PairBuckets) []domain.EnrichedPair { return b.RemoteServers }},
}

var sortCycle = []topology.SortKey{
	topology.SortBytes,
	topology.SortByteRate,
	topology.SortLatency,
	topology.SortName,
	topology.SortNone,
}

var pickerKinds = []domain.EntityKind{domain.KindProcess, domain.KindSite, domain.KindComponent}

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	inventory domain.InventoryRepo
	explorer  *topology.Explorer
	opts      topology.Options
	interval  time.Duration

	// focal picker
	pickerOpen bool
	pickerKind domain.EntityKind
	picker     table.Model
	candidates []domain.FocalEntity

	view       View
	focal      domain.FocalEntity
	tab        int
	autoCursor bool

	table table.Model

	// panes
	infoOpen  bool
	graphOpen bool
	graphVP   viewport.Model
	groupBy   topology.GroupingRule

	// cache
	detail   topology.Detail
	services []domain.Service
	graph    domain.Graph

	width, height int
	err           error
}

func New(inventory domain.InventoryRepo, explorer *topology.Explorer, opts topology.Options, interval time.Duration) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if interval <= 0 {
		interval = 2 * time.Second
	}

	t := table.New()
	t.SetHeight(12)
	t.SetWidth(100)

	p := table.New()
	p.SetColumns([]table.Column{{Title: "Name", Width: 28}, {Title: "Id", Width: 20}})
	p.SetHeight(10)
	p.SetWidth(52)
	p.Focus()

	return Model{
		ctx:        ctx,
		cancel:     cancel,
		inventory:  inventory,
		explorer:   explorer,
		opts:       opts,
		interval:   interval,
		pickerOpen: true,
		pickerKind: domain.KindProcess,
		picker:     p,
		view:       ViewPairs,
		table:      t,
		graphVP:    viewport.New(100, 10),
		groupBy:    topology.GroupBySite,
	}
}

// WithFocal starts the dashboard on focal instead of the picker.
func (m Model) WithFocal(focal domain.FocalEntity) Model {
	m.focal = focal
	m.pickerOpen = false
	if focal.Kind.Focal() {
		m.pickerKind = focal.Kind
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadCandidates(m.pickerKind),
		m.fetch(),
		m.tick(),
	)
}

type tickMsg struct{}
type detailMsg topology.Detail
type servicesMsg []domain.Service
type graphMsg domain.Graph
type candidatesMsg struct {
	kind  domain.EntityKind
	items []domain.FocalEntity
}
type errMsg struct{ error }

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) fetch() tea.Cmd {
	return func() tea.Msg {
		switch m.view {
		case ViewPairs:
			if m.focal.ID == "" {
				return nil
			}
			d, err := m.explorer.PairBuckets(m.ctx, m.focal, m.opts)
			if err != nil {
				return errMsg{err}
			}
			return detailMsg(d)
		case ViewServices:
			s, err := m.inventory.ListServices(m.ctx)
			if err != nil {
				return errMsg{err}
			}
			return servicesMsg(s)
		}
		return nil
	}
}

func (m Model) loadCandidates(kind domain.EntityKind) tea.Cmd {
	return func() tea.Msg {
		items, err := listFocal(m.ctx, m.inventory, kind)
		if err != nil {
			return errMsg{err}
		}
		return candidatesMsg{kind: kind, items: items}
	}
}

func (m Model) loadGraph() tea.Cmd {
	if len(m.services) == 0 {
		return nil
	}
	svc := m.services[m.currentSelection()%len(m.services)]
	rule := m.groupBy
	return func() tea.Msg {
		g, err := m.explorer.ServiceGraph(m.ctx, svc.ID, rule)
		if err != nil {
			return errMsg{err}
		}
		return graphMsg(g)
	}
}

func listFocal(ctx context.Context, inv domain.InventoryRepo, kind domain.EntityKind) ([]domain.FocalEntity, error) {
	var out []domain.FocalEntity
	switch kind {
	case domain.KindSite:
		sites, err := inv.ListSites(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range sites {
			out = append(out, domain.FocalEntity{Kind: kind, ID: s.ID, Name: s.Name})
		}
	case domain.KindComponent:
		comps, err := inv.ListComponents(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range comps {
			out = append(out, domain.FocalEntity{Kind: kind, ID: c.ID, Name: c.Name})
		}
	default:
		procs, err := inv.ListProcesses(ctx, domain.ListOptions{})
		if err != nil {
			return nil, err
		}
		for _, p := range procs {
			out = append(out, domain.FocalEntity{Kind: domain.KindProcess, ID: p.ID, Name: p.Name})
		}
	}
	return out, nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.rebuildTable()
		return m, nil

	case detailMsg:
		m.detail = topology.Detail(msg)
		m.focal = m.detail.Focal
		m.err = nil
		m.rebuildTable()
		m.fixCursor(len(buckets[m.tab].rows(m.detail.Buckets)))
		return m, nil

	case servicesMsg:
		m.services = msg
		m.err = nil
		m.rebuildTable()
		m.fixCursor(len(m.services))
		return m, nil

	case graphMsg:
		m.graph = domain.Graph(msg)
		m.graphVP.SetContent(renderGraph(m.graph))
		return m, nil

	case candidatesMsg:
		if msg.kind != m.pickerKind {
			return m, nil
		}
		m.candidates = msg.items
		rows := make([]table.Row, 0, len(msg.items))
		cur := 0
		for i, c := range msg.items {
			rows = append(rows, table.Row{c.Name, c.ID})
			if c.ID == m.focal.ID {
				cur = i
			}
		}
		m.picker.SetRows(rows)
		if len(rows) > 0 {
			m.picker.SetCursor(cur)
		}
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{m.fetch(), m.tick()}
		if m.graphOpen {
			cmds = append(cmds, m.loadGraph())
		}
		return m, tea.Batch(cmds...)

	case errMsg:
		m.err = msg.error
		return m, nil

	case tea.KeyMsg:
		if m.pickerOpen {
			return m.updatePicker(msg)
		}
		if m.graphOpen {
			switch msg.String() {
			case "up", "k", "down", "j", "pgup", "pgdown":
				var cmd tea.Cmd
				m.graphVP, cmd = m.graphVP.Update(msg)
				return m, cmd
			}
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m.quit()

		case "f":
			m.pickerOpen = true
			m.picker.Focus()
			return m, m.loadCandidates(m.pickerKind)

		case "tab":
			if m.view == ViewPairs {
				m.view = ViewServices
			} else {
				m.view = ViewPairs
			}
			m.infoOpen, m.graphOpen = false, false
			m.autoCursor = true
			m.layout()
			m.rebuildTable()
			return m, m.fetch()

		case "left", "h", "right", "l":
			if m.view != ViewPairs {
				return m, nil
			}
			step := 1
			if s := msg.String(); s == "left" || s == "h" {
				step = len(buckets) - 1
			}
			m.tab = (m.tab + step) % len(buckets)
			m.autoCursor = true
			m.rebuildTable()
			m.fixCursor(len(buckets[m.tab].rows(m.detail.Buckets)))
			return m, nil

		case "s":
			m.opts.Sort = nextSort(m.opts.Sort)
			topology.SortBuckets(m.detail.Buckets, m.opts.Sort)
			m.rebuildTable()
			return m, nil

		case "g":
			if m.view != ViewServices {
				return m, nil
			}
			if m.groupBy.Type == topology.GroupBySite.Type {
				m.groupBy = topology.GroupByService
			} else {
				m.groupBy = topology.GroupBySite
			}
			return m, m.loadGraph()

		case "i":
			if m.view == ViewPairs {
				m.infoOpen = !m.infoOpen
				m.layout()
			}
			return m, nil

		case "enter":
			if m.view == ViewServices {
				m.graphOpen = true
				m.layout()
				return m, m.loadGraph()
			}
			return m, nil

		case "esc":
			if m.infoOpen {
				m.infoOpen = false
				m.layout()
				return m, nil
			}
			if m.graphOpen {
				m.graphOpen = false
				m.layout()
				return m, nil
			}
			return m.quit()

		case "up", "k", "down", "j":
			if len(m.table.Rows()) == 0 {
				return m, nil
			}
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			return m, cmd
		}
	}

	if len(m.table.Rows()) == 0 {
		return m, nil
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m.quit()
	case "enter":
		if len(m.candidates) == 0 {
			return m, nil
		}
		idx := clamp(m.picker.Cursor(), 0, len(m.candidates)-1)
		m.pickerOpen = false
		m.picker.Blur()
		if c := m.candidates[idx]; c != m.focal {
			m.focal = c
			m.detail = topology.Detail{}
			m.view = ViewPairs
			m.tab = 0
			m.autoCursor = true
			m.infoOpen, m.graphOpen = false, false
			m.layout()
			m.rebuildTable()
			return m, m.fetch()
		}
		return m, nil
	case "tab":
		for i, k := range pickerKinds {
			if k == m.pickerKind {
				m.pickerKind = pickerKinds[(i+1)%len(pickerKinds)]
				break
			}
		}
		m.candidates = nil
		m.picker.SetRows(nil)
		return m, m.loadCandidates(m.pickerKind)
	case "esc":
		m.pickerOpen = false
		m.picker.Blur()
		return m, nil
	case "up", "k", "down", "j", "pgup", "pgdown", "home", "end":
		if len(m.candidates) == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.picker.Blur()
	m.cancel()
	return m, tea.Quit
}

func nextSort(cur topology.SortKey) topology.SortKey {
	for i, k := range sortCycle {
		if k == cur {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return sortCycle[0]
}

// fixCursor moves the cursor to the first row after a view change, or when it
// fell off the end of a shorter refresh.
func (m *Model) fixCursor(rows int) {
	cur := m.table.Cursor()
	if rows > 0 && (m.autoCursor || cur < 0 || cur >= rows) {
		m.table.SetCursor(0)
	}
	m.autoCursor = false
}

// layout splits the height between the table and the open pane, using
// measured header and footer heights.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	headerH := lipgloss.Height(styles.Header.Render("x"))
	footerH := lipgloss.Height(styles.Footer.Render("x"))
	base := m.height - headerH - footerH - 3 // tabs line and padding
	if base < 10 {
		base = 10
	}

	m.graphVP.Width = m.width - 4
	switch {
	case m.graphOpen:
		m.table.SetHeight(int(float64(base) * 0.4))
		m.graphVP.Height = base - m.table.Height() - 2
	case m.infoOpen:
		m.table.SetHeight(int(float64(base) * 0.6))
		m.graphVP.Height = 0
	default:
		m.table.SetHeight(base)
		m.graphVP.Height = 0
	}
	m.table.SetWidth(m.width - 4)
}

func (m *Model) rebuildTable() {
	switch m.view {
	case ViewPairs:
		total := m.table.Width()
		wName, wSite, wProto, wBytes, wBar, wRate, wLat, wTrend := m.pairColWidths(total)

		b := buckets[m.tab]
		side := "SERVER"
		rates := m.detail.ServerRates
		if b.client {
			side = "CLIENT"
			rates = m.detail.ClientRates
		}
		cols := []table.Column{
			{Title: side, Width: wName},
			{Title: "SITE", Width: wSite},
			{Title: "PROTO", Width: wProto},
			{Title: "BYTES", Width: wBytes},
			{Title: "", Width: wBar},
			{Title: "RATE", Width: wRate},
			{Title: "LATENCY", Width: wLat},
			{Title: "Trend", Width: wTrend},
		}

		pairs := b.rows(m.detail.Buckets)
		var maxBytes float64
		for _, p := range pairs {
			maxBytes = max(maxBytes, p.Bytes)
		}

		rows := make([]table.Row, 0, len(pairs))
		for _, p := range pairs {
			bytes, bar, rate, lat := "-", "", "-", "-"
			if m.opts.ShowBytes {
				bytes = widgets.FormatBytes(p.Bytes)
				bar = widgets.Bar(widgets.Ratio(p.Bytes, maxBytes), wBar-1)
			}
			if m.opts.ShowByteRate {
				rate = widgets.FormatRate(p.ByteRate)
			}
			if m.opts.ShowLatency {
				lat = widgets.FormatLatency(p.Latency)
			}
			trend := widgets.Spark8(widgets.Normalize(rates[p.DestinationName]), wTrend)
			if trend == "" {
				trend = "—"
			}
			rows = append(rows, table.Row{
				p.DestinationName,
				p.DestinationSiteName,
				protoLabel(p.Protocol),
				bytes,
				bar,
				rate,
				lat,
				trend,
			})
		}
		m.table.SetColumns(cols)
		m.table.SetRows(rows)
		m.table.Focus()

	case ViewServices:
		wName, wProto, wListeners, wConnectors := m.serviceColWidths(m.table.Width())
		cols := []table.Column{
			{Title: "SERVICE", Width: wName},
			{Title: "PROTO", Width: wProto},
			{Title: "LISTENERS", Width: wListeners},
			{Title: "CONNECTORS", Width: wConnectors},
		}
		rows := make([]table.Row, 0, len(m.services))
		for _, s := range m.services {
			rows = append(rows, table.Row{
				s.Name,
				protoLabel(s.Protocol),
				fmt.Sprintf("%d", s.ListenerCount),
				fmt.Sprintf("%d", s.ConnectorCount),
			})
		}
		m.table.SetColumns(cols)
		m.table.SetRows(rows)
		m.table.Focus()
	}
}

func protoLabel(p domain.Protocol) string {
	if p.IsRemote() {
		return "remote"
	}
	return p.String()
}

func (m Model) currentSelection() int {
	i := m.table.Cursor()
	if i < 0 {
		i = 0
	}
	return i
}

func (m Model) View() string {
	focal := "none (press f)"
	if m.focal.ID != "" {
		focal = fmt.Sprintf("%s %s", m.focal.Kind, m.focal.Name)
	}
	sort := string(m.opts.Sort)
	if sort == "" {
		sort = "none"
	}
	view := map[View]string{ViewPairs: "Pairs", ViewServices: "Services"}[m.view]
	head := styles.Header.Render(
		fmt.Sprintf("netobs │ focal: %s  view: %s  sort: %s  range: %s  (Tab switch Pairs/Services)",
			focal, view, sort, m.opts.Range),
	)

	var tabs string
	if m.view == ViewPairs {
		parts := make([]string, 0, len(buckets))
		for i, b := range buckets {
			label := fmt.Sprintf("%s (%d)", b.title, len(b.rows(m.detail.Buckets)))
			if i == m.tab {
				parts = append(parts, styles.TabActive.Render(label))
			} else {
				parts = append(parts, styles.Tab.Render(label))
			}
		}
		tabs = lipgloss.JoinHorizontal(lipgloss.Top, parts...)
		if len(m.detail.Degraded) > 0 {
			kinds := make([]string, 0, len(m.detail.Degraded))
			for _, k := range m.detail.Degraded {
				kinds = append(kinds, string(k))
			}
			tabs += "  " + styles.Warn.Render("degraded: "+strings.Join(kinds, ", "))
		}
	} else {
		tabs = styles.Tab.Render("grouped by " + m.groupBy.Type)
	}

	body := lipgloss.NewStyle().Padding(0, 1).Render(m.table.View())

	pane := ""
	switch {
	case m.infoOpen:
		pane = styles.Box.Width(m.width - 2).Render(m.renderInfo())
	case m.graphOpen:
		pane = styles.Box.Width(m.width - 2).Render("Graph:\n" + m.graphVP.View())
	}

	errLine := ""
	if m.err != nil {
		errLine = styles.Danger.Render("error: " + m.err.Error())
	}

	footer := styles.Footer.Render("↑/↓ move • ←/→ bucket • [Tab] view • [f] focal • [s] sort • [i] info • [enter] graph • [g] group • [q] quit")

	main := lipgloss.JoinVertical(lipgloss.Left, head, tabs, body, pane, errLine, footer)
	if !m.pickerOpen {
		return main
	}

	title := styles.Title.Render(fmt.Sprintf(" Focal %s (↑/↓, Enter, Tab kind, Esc) ", m.pickerKind))
	overlay := lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		styles.Picker.Width(56).Height(14).Render(lipgloss.JoinVertical(lipgloss.Left, title, m.picker.View())),
	)
	return main + "\n" + overlay
}

func (m Model) renderInfo() string {
	pairs := buckets[m.tab].rows(m.detail.Buckets)
	if len(pairs) == 0 {
		return "No pairs"
	}
	p := pairs[m.currentSelection()%len(pairs)]

	var total float64
	for _, q := range pairs {
		total += q.Bytes
	}
	share := widgets.Ratio(p.Bytes, total)

	rates := m.detail.ServerRates
	if buckets[m.tab].client {
		rates = m.detail.ClientRates
	}
	app := p.ObservedApplicationProtocols
	if app == "" {
		app = "-"
	}

	return fmt.Sprintf(
		`Pair: %s → %s  proto: %s  observed: %s
Sites: %s → %s

Bytes: %s  Rate: %s  Latency: %s
Share of %s: %.0f%% %s

Rate history: %s`,
		p.SourceName, p.DestinationName, styles.Protocol(p.Protocol.String()), app,
		orDash(p.SourceSiteName), orDash(p.DestinationSiteName),
		widgets.FormatBytes(p.Bytes), widgets.FormatRate(p.ByteRate), widgets.FormatLatency(p.Latency),
		buckets[m.tab].title, share*100, widgets.Bar(share, 12),
		widgets.Spark8(widgets.Normalize(rates[p.DestinationName]), 40),
	)
}

func renderGraph(g domain.Graph) string {
	labels := make(map[string]string, len(g.Nodes))
	var b strings.Builder
	fmt.Fprintf(&b, "Nodes (%d)\n", len(g.Nodes))
	for _, n := range g.Nodes {
		labels[n.ID] = n.Label
		kind := string(n.Kind)
		if kind == "" {
			kind = "?"
		}
		fmt.Fprintf(&b, "  %-28s %-10s %s\n", n.Label, kind, orDash(n.SiteName))
	}
	fmt.Fprintf(&b, "Edges (%d)\n", len(g.Edges))
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "  %s → %s  %s\n", labels[e.SourceID], labels[e.DestinationID], protoLabel(e.Protocol))
	}
	if len(g.Combos) > 0 {
		fmt.Fprintf(&b, "Groups (%d)\n", len(g.Combos))
		for _, c := range g.Combos {
			members := make([]string, 0, len(c.NodeIDs))
			for _, id := range c.NodeIDs {
				members = append(members, labels[id])
			}
			fmt.Fprintf(&b, "  %s %s: %s\n", c.Type, c.Label, strings.Join(members, ", "))
		}
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
