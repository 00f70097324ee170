package ui

import (
	"context"
	"fmt"

	"github.com/alquimista/studio/internal/api"
	"github.com/alquimista/studio/internal/feed"
	"github.com/alquimista/studio/internal/finance"
	"github.com/alquimista/studio/internal/formatter"
	"github.com/alquimista/studio/internal/library"
	"github.com/alquimista/studio/internal/models"
	"github.com/alquimista/studio/internal/realtime"
	"github.com/alquimista/studio/internal/session"
	"github.com/alquimista/studio/internal/tracker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoginView ViewState = iota
	HomeView
	GenerateView
	ProgressView
	LibraryView
	NotificationsView
	FinanceView
)

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	session *session.Manager
	conn    *realtime.Conn
	client  *api.Client
	library *library.Manager
	feed    *feed.Feed
	tracker *tracker.Tracker
	ledger  *finance.Ledger

	width  int
	height int

	loginInputs []textinput.Model
	formInputs  []textinput.Model
	focused     int

	menuList    list.Model
	musicList   list.Model
	notifyList  list.Model
	machineList list.Model

	changes  chan struct{}
	alert    *tracker.Alert
	progress progress.Model
	err      error
	help     help.Model
	keys     keyMap
}

type sessionReadyMsg struct {
	user *models.User
	err  error
}

type generateDoneMsg struct {
	message string
	err     error
}

type markReadDoneMsg struct {
	err error
}

type ledgerLoadedMsg struct {
	err error
}

// changedMsg is pumped whenever a session service reports new state, which is
// how pushed envelopes repaint the UI.
type changedMsg struct{}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, sess *session.Manager, conn *realtime.Conn, client *api.Client,
	lib *library.Manager, fd *feed.Feed, tr *tracker.Tracker, ledger *finance.Ledger) *Model {
	m := &Model{
		ctx:      ctx,
		view:     LoginView,
		session:  sess,
		conn:     conn,
		client:   client,
		library:  lib,
		feed:     fd,
		tracker:  tr,
		ledger:   ledger,
		changes:  make(chan struct{}, 8),
		progress: progress.New(progress.WithDefaultGradient()),
		help:     help.New(),
		keys:     newKeyMap(),
	}

	m.loginInputs = newLoginInputs()
	m.formInputs = newFormInputs()

	wake := func() {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	}
	lib.OnChange(wake)
	fd.OnChange(wake)
	tr.OnChange(wake)
	ledger.OnChange(wake)
	conn.OnStateChange(func(realtime.State) { wake() })

	return m
}

func newLoginInputs() []textinput.Model {
	username := textinput.New()
	username.Placeholder = "usuário"
	username.Focus()

	password := textinput.New()
	password.Placeholder = "senha"
	password.EchoMode = textinput.EchoPassword

	return []textinput.Model{username, password}
}

func newFormInputs() []textinput.Model {
	labels := []string{"nome da música", "descrição", "gênero", "ritmo", "instrumentos", "letra (opcional)"}
	inputs := make([]textinput.Model, len(labels))
	for i, label := range labels {
		in := textinput.New()
		in.Placeholder = label
		inputs[i] = in
	}
	inputs[0].Focus()
	return inputs
}

// Init attempts to resume a saved session before falling back to the login form.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.resumeSession(), m.waitForChange())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, l := range []*list.Model{&m.menuList, &m.musicList, &m.notifyList, &m.machineList} {
			l.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case LoginView:
			return m.handleLoginKeys(msg)
		case HomeView:
			return m.handleHomeKeys(msg)
		case GenerateView:
			return m.handleGenerateKeys(msg)
		case ProgressView:
			return m.handleProgressKeys(msg)
		case LibraryView, NotificationsView:
			return m.handleListKeys(msg)
		case FinanceView:
			return m.handleFinanceKeys(msg)
		}

	case sessionReadyMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = LoginView
			return m, nil
		}
		if msg.user == nil {
			m.view = LoginView
			return m, nil
		}
		m.err = nil
		m.enterHome()
		return m, m.loadLedger()

	case generateDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.view = ProgressView
		return m, nil

	case markReadDoneMsg:
		m.err = msg.err
		return m, nil

	case ledgerLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		m.rebuildMachineList()
		return m, nil

	case changedMsg:
		if alert := m.tracker.TakeAlert(); alert != nil {
			m.alert = alert
		}
		m.rebuildMusicList()
		m.rebuildNotifyList()
		m.rebuildMachineList()
		return m, m.waitForChange()
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	header := m.renderHeader()

	var body string
	switch m.view {
	case LoginView:
		body = m.renderLogin()
	case HomeView:
		body = m.menuList.View()
	case GenerateView:
		body = m.renderGenerate()
	case ProgressView:
		body = m.renderProgress()
	case LibraryView:
		body = m.musicList.View()
	case NotificationsView:
		body = m.notifyList.View()
	case FinanceView:
		body = m.renderFinance()
	}

	footer := m.renderFooter()
	return fmt.Sprintf("%s\n%s\n%s", header, body, footer)
}

func (m *Model) renderHeader() string {
	state := m.conn.State().String()
	indicator := styles.warn.Render(state)
	if m.conn.State() == realtime.Connected {
		indicator = styles.ok.Render(state)
	}

	title := styles.title.Render("Alquimista Studio")
	if user, ok := m.session.Current(); ok {
		return fmt.Sprintf("%s  %s  %s", title, styles.muted.Render(user.Username), indicator)
	}
	return fmt.Sprintf("%s  %s", title, indicator)
}

func (m *Model) renderFooter() string {
	out := m.help.ShortHelpView(m.contextKeys())
	if m.alert != nil {
		style := styles.ok
		if m.alert.Kind == tracker.AlertError {
			style = styles.err
		}
		out = fmt.Sprintf("%s\n%s", style.Render(fmt.Sprintf("%s — %s", m.alert.Title, m.alert.Message)), out)
	}
	if m.err != nil {
		out = fmt.Sprintf("%s\n%s", styles.err.Render(m.err.Error()), out)
	}
	return out
}

func (m *Model) contextKeys() []key.Binding {
	switch m.view {
	case LoginView, GenerateView:
		return []key.Binding{m.keys.next, m.keys.enter, m.keys.back}
	case HomeView:
		return []key.Binding{m.keys.up, m.keys.down, m.keys.enter, m.keys.quit}
	default:
		return []key.Binding{m.keys.enter, m.keys.back, m.keys.quit}
	}
}

func (m *Model) renderLogin() string {
	return fmt.Sprintf("%s\n\n%s\n%s\n",
		styles.title.Render("Entrar no estúdio"),
		m.loginInputs[0].View(),
		m.loginInputs[1].View())
}

func (m *Model) renderGenerate() string {
	out := styles.title.Render("Nova música") + "\n\n"
	for _, in := range m.formInputs {
		out += in.View() + "\n"
	}
	return out
}

func (m *Model) renderProgress() string {
	snap := m.tracker.Snapshot()
	title := styles.title.Render("Gerando música")

	switch snap.Phase {
	case tracker.PhaseSubmitted:
		return fmt.Sprintf("%s\n\n%s", title, "Pedido enviado, aguardando o estúdio...")
	case tracker.PhaseGenerating:
		p := snap.Progress
		bar := m.progress.ViewAs(p.Percent / 100)
		return fmt.Sprintf("%s\n\n%s\n%s — %s", title, bar, p.Step, p.Message)
	case tracker.PhaseCompleted:
		return fmt.Sprintf("%s\n\n%s", title, styles.ok.Render("✓ Música pronta!"))
	case tracker.PhaseFailed:
		return fmt.Sprintf("%s\n\n%s", title, styles.err.Render("✗ A geração falhou"))
	default:
		return fmt.Sprintf("%s\n\n%s", title, "Nenhum pedido em andamento")
	}
}

func (m *Model) renderFinance() string {
	summary := formatter.FinanceSummaryToText(m.ledger.Snapshot())
	return fmt.Sprintf("%s\n%s", m.machineList.View(), string(summary))
}

func (m *Model) handleLoginKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab", "shift+tab":
		m.focused = (m.focused + 1) % len(m.loginInputs)
		for i := range m.loginInputs {
			if i == m.focused {
				m.loginInputs[i].Focus()
			} else {
				m.loginInputs[i].Blur()
			}
		}
		return m, nil
	case "enter":
		username := m.loginInputs[0].Value()
		password := m.loginInputs[1].Value()
		return m, m.doLogin(username, password)
	}

	var cmd tea.Cmd
	m.loginInputs[m.focused], cmd = m.loginInputs[m.focused].Update(msg)
	return m, cmd
}

func (m *Model) handleHomeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		if item, ok := m.menuList.SelectedItem().(menuItem); ok {
			m.alert = nil
			m.err = nil
			m.view = item.view
			if item.view == GenerateView {
				m.focused = 0
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.menuList, cmd = m.menuList.Update(msg)
	return m, cmd
}

func (m *Model) handleGenerateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = HomeView
		return m, nil
	case "tab":
		m.cycleForm(1)
		return m, nil
	case "shift+tab":
		m.cycleForm(-1)
		return m, nil
	case "enter":
		req := models.GenerationRequest{
			MusicName:   m.formInputs[0].Value(),
			Description: m.formInputs[1].Value(),
			Genre:       m.formInputs[2].Value(),
			Rhythm:      m.formInputs[3].Value(),
			Instruments: m.formInputs[4].Value(),
			Lyrics:      m.formInputs[5].Value(),
		}
		return m, m.doGenerate(req)
	}

	var cmd tea.Cmd
	m.formInputs[m.focused], cmd = m.formInputs[m.focused].Update(msg)
	return m, cmd
}

func (m *Model) cycleForm(dir int) {
	m.focused = (m.focused + dir + len(m.formInputs)) % len(m.formInputs)
	for i := range m.formInputs {
		if i == m.focused {
			m.formInputs[i].Focus()
		} else {
			m.formInputs[i].Blur()
		}
	}
}

func (m *Model) handleProgressKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "enter":
		m.view = HomeView
		return m, nil
	}
	return m, nil
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = HomeView
		return m, nil
	case "enter":
		if m.view == NotificationsView {
			if item, ok := m.notifyList.SelectedItem().(notificationItem); ok && !item.notification.Read {
				return m, m.doMarkRead(item.notification.ID)
			}
		}
		return m, nil
	}

	return m.updateLists(msg)
}

func (m *Model) handleFinanceKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = HomeView
		return m, nil
	}

	var cmd tea.Cmd
	m.machineList, cmd = m.machineList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case HomeView:
		m.menuList, cmd = m.menuList.Update(msg)
	case LibraryView:
		m.musicList, cmd = m.musicList.Update(msg)
	case NotificationsView:
		m.notifyList, cmd = m.notifyList.Update(msg)
	case FinanceView:
		m.machineList, cmd = m.machineList.Update(msg)
	}
	return m, cmd
}

func (m *Model) enterHome() {
	items := []list.Item{
		menuItem{title: "Nova música", desc: "gerar uma música a partir de uma descrição", view: GenerateView},
		menuItem{title: "Andamento", desc: "acompanhar a geração em curso", view: ProgressView},
		menuItem{title: "Minhas músicas", desc: "a sua coleção", view: LibraryView},
		menuItem{title: "Notificações", desc: "avisos do estúdio", view: NotificationsView},
		menuItem{title: "Financeiro", desc: "máquinas e divisão de lucro", view: FinanceView},
	}
	m.menuList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.menuList.Title = "Estúdio"
	if m.width > 0 {
		m.menuList.SetSize(m.width-4, m.height-8)
	}

	m.rebuildMusicList()
	m.rebuildNotifyList()
	m.rebuildMachineList()
	m.view = HomeView
}

func (m *Model) rebuildMusicList() {
	snap := m.library.Snapshot()
	items := make([]list.Item, len(snap.Musics))
	for i, music := range snap.Musics {
		items[i] = musicItem{music: music}
	}
	selected := m.musicList.Index()
	m.musicList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.musicList.Title = "Minhas músicas"
	if m.width > 0 {
		m.musicList.SetSize(m.width-4, m.height-8)
	}
	if selected < len(items) {
		m.musicList.Select(selected)
	}
}

func (m *Model) rebuildNotifyList() {
	snap := m.feed.Snapshot()
	items := make([]list.Item, len(snap.Notifications))
	for i, n := range snap.Notifications {
		items[i] = notificationItem{notification: n}
	}
	selected := m.notifyList.Index()
	m.notifyList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.notifyList.Title = fmt.Sprintf("Notificações (%d não lidas)", snap.UnreadCount)
	if m.width > 0 {
		m.notifyList.SetSize(m.width-4, m.height-8)
	}
	if selected < len(items) {
		m.notifyList.Select(selected)
	}
}

func (m *Model) rebuildMachineList() {
	machines := m.ledger.Snapshot()
	items := make([]list.Item, len(machines))
	for i, machine := range machines {
		items[i] = machineItem{machine: machine}
	}
	selected := m.machineList.Index()
	m.machineList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.machineList.Title = "Máquinas"
	if m.width > 0 {
		m.machineList.SetSize(m.width-4, m.height-8)
	}
	if selected < len(items) {
		m.machineList.Select(selected)
	}
}

func (m *Model) resumeSession() tea.Cmd {
	return func() tea.Msg {
		user, ok, err := m.session.Resume(m.ctx)
		if err != nil || !ok {
			// A rejected or missing credential lands on the login form.
			return sessionReadyMsg{}
		}
		return sessionReadyMsg{user: user}
	}
}

func (m *Model) doLogin(username, password string) tea.Cmd {
	return func() tea.Msg {
		user, err := m.session.Login(m.ctx, username, password)
		return sessionReadyMsg{user: user, err: err}
	}
}

func (m *Model) doGenerate(req models.GenerationRequest) tea.Cmd {
	if err := api.ValidateGeneration(req); err != nil {
		return func() tea.Msg { return generateDoneMsg{err: err} }
	}

	// Optimistic: the progress view shows "submitted" before the backend
	// acknowledges anything.
	m.tracker.Submitted(req.MusicName)

	return func() tea.Msg {
		message, err := m.client.Generate(m.ctx, req)
		return generateDoneMsg{message: message, err: err}
	}
}

func (m *Model) doMarkRead(id string) tea.Cmd {
	return func() tea.Msg {
		return markReadDoneMsg{err: m.feed.MarkRead(m.ctx, id)}
	}
}

func (m *Model) loadLedger() tea.Cmd {
	return func() tea.Msg {
		return ledgerLoadedMsg{err: m.ledger.Load(m.ctx)}
	}
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-m.changes
		return changedMsg{}
	}
}
