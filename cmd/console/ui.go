package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/doctrine-engine/internal/handlers"
	"github.com/jwebster45206/doctrine-engine/pkg/actor"
	"github.com/jwebster45206/doctrine-engine/pkg/agentai"
	"github.com/jwebster45206/doctrine-engine/pkg/combat"
	"github.com/jwebster45206/doctrine-engine/pkg/engine"
	"github.com/jwebster45206/doctrine-engine/pkg/events"
	"github.com/jwebster45206/doctrine-engine/pkg/state"
)

const (
	IdlePlaceholder     = "Press Enter for the next event..."
	DoctrinePlaceholder = "Give the party its doctrine..."
)

// entryKind selects the style a log entry is rendered with.
type entryKind int

const (
	kindNarrative entryKind = iota
	kindDoctrine
	kindAgent
	kindSystem
	kindError
)

type logEntry struct {
	kind    entryKind
	speaker string
	text    string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	api           *apiClient
	gameState     *state.GameState
	log           []logEntry
	logViewport   viewport.Model
	partyViewport viewport.Model
	textarea      textarea.Model
	ready         bool
	width         int
	height        int
	loading       bool
	showQuitModal bool
	progressTick  int
}

type nextEventMsg struct {
	resp *handlers.NextEventResponse
	err  error
}

type resolveMsg struct {
	resp *handlers.EventResolveResponse
	err  error
}

type combatMsg struct {
	resp *handlers.CombatResponse
	err  error
}

type resetMsg struct {
	gameState *state.GameState
	err       error
}

type progressTickMsg struct{}

var (
	logPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	partyPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	doctrineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(api *apiClient, gs *state.GameState) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = IdlePlaceholder
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 500
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	logVp := viewport.New(50, 20)
	logVp.MouseWheelEnabled = true

	m := ConsoleUI{
		api:           api,
		gameState:     gs,
		textarea:      ta,
		logViewport:   logVp,
		partyViewport: viewport.New(20, 20),
	}
	m.push(kindSystem, "", "Your party assembles: "+strings.Join(gs.Names(), ", ")+".")
	m.push(kindSystem, "", "You never command them directly. You set a doctrine, and they interpret it.")
	return m
}

func (m *ConsoleUI) push(kind entryKind, speaker, text string) {
	m.log = append(m.log, logEntry{kind: kind, speaker: speaker, text: text})
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		pvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.logViewport, vpCmd = m.logViewport.Update(msg)
		m.partyViewport, pvCmd = m.partyViewport.Update(msg)
		return m, tea.Batch(vpCmd, pvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		logWidth := int(float64(m.width)*0.7) - 4
		partyWidth := m.width - logWidth - 6

		m.logViewport.Width = logWidth - 2
		m.logViewport.Height = m.height - 7
		m.partyViewport.Width = partyWidth - 2
		m.partyViewport.Height = m.height - 3
		m.textarea.SetWidth(logWidth - 4)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			return m.advance(input, false)
		}

	case nextEventMsg:
		m.loading = false
		if msg.err != nil {
			m.push(kindError, "", msg.err.Error())
		} else {
			m.gameState = msg.resp.Session
			m.pushEvent(msg.resp)
		}
		m.refresh()

	case resolveMsg:
		m.loading = false
		if msg.err != nil {
			m.push(kindError, "", msg.err.Error())
		} else {
			m.gameState = msg.resp.Session
			m.pushReport(msg.resp.Report)
		}
		m.refresh()

	case combatMsg:
		m.loading = false
		if msg.err != nil {
			m.push(kindError, "", msg.err.Error())
		} else {
			m.gameState = msg.resp.Session
			m.pushCombat(msg.resp.Result)
		}
		m.refresh()

	case resetMsg:
		m.loading = false
		if msg.err != nil {
			m.push(kindError, "", msg.err.Error())
		} else {
			m.gameState = msg.gameState
			m.log = nil
			m.push(kindSystem, "", "A new party assembles: "+strings.Join(m.gameState.Names(), ", ")+".")
		}
		m.refresh()

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.refresh()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.logViewport, vpCmd = m.logViewport.Update(msg)
	m.partyViewport, pvCmd = m.partyViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, pvCmd)
}

// advance moves the game forward: the next event when none is pending,
// otherwise the doctrine is applied to the pending event or fight.
func (m ConsoleUI) advance(doctrine string, toEnd bool) (tea.Model, tea.Cmd) {
	gs := m.gameState
	if gs.GameOver {
		m.push(kindSystem, "", "The party has fallen. Type /reset to start again.")
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	switch {
	case gs.PendingEvent == nil:
		cmd = m.fetchNextEvent()
	case gs.PendingEvent.Type == events.TypeCombat:
		if doctrine != "" {
			m.push(kindDoctrine, "Doctrine", doctrine)
		}
		cmd = m.playCombat(doctrine, toEnd)
	default:
		if doctrine != "" {
			m.push(kindDoctrine, "Doctrine", doctrine)
		}
		cmd = m.resolve(doctrine)
	}

	m.loading = true
	m.progressTick = 0
	m.refresh()
	return m, tea.Batch(cmd, progressTick())
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	verb, rest, _ := strings.Cut(input, " ")
	switch strings.ToLower(verb) {
	case "/quit":
		return m, tea.Quit

	case "/reset":
		m.loading = true
		m.progressTick = 0
		m.refresh()
		return m, tea.Batch(m.reset(), progressTick())

	case "/party":
		m.push(kindSystem, "", describeParty(m.gameState.Agents))

	case "/run":
		if m.gameState.PendingEvent == nil || m.gameState.PendingEvent.Type != events.TypeCombat {
			m.push(kindError, "", "No fight in progress.")
			break
		}
		return m.advance(strings.TrimSpace(rest), true)

	case "/help":
		m.push(kindSystem, "", "Enter: next event, or apply the typed doctrine to the current one. "+
			"/run <doctrine>: fight to the end. /party: show the party. /reset: new party. /quit: exit.")

	default:
		m.push(kindError, "", "Unknown command "+verb+". Type /help.")
	}
	m.refresh()
	return m, nil
}

func (m *ConsoleUI) pushEvent(resp *handlers.NextEventResponse) {
	ev := resp.Event
	label := fmt.Sprintf("Event %d (%s, %s)", m.gameState.EventCount, ev.Type, ev.Difficulty)
	m.push(kindSystem, "", titleStyle.Render(label))
	m.push(kindNarrative, "", ev.Text())
	if resp.Encounter != nil {
		var names []string
		for _, e := range resp.Encounter.Enemies {
			names = append(names, fmt.Sprintf("%s (%d HP)", e.Name, e.HP))
		}
		m.push(kindSystem, "", "Enemies: "+strings.Join(names, ", "))
	}
}

func (m *ConsoleUI) pushReport(r *engine.EventReport) {
	for _, d := range r.Decisions {
		m.push(kindAgent, d.Name, d.Action+" ("+d.Reasoning+")")
	}
	m.push(kindNarrative, "", r.Summary)
	for _, res := range r.Results {
		m.push(kindSystem, "", formatResult(res))
	}
	if r.GameOver {
		m.push(kindError, "", "GAME OVER. Type /reset to start again.")
	}
}

func (m *ConsoleUI) pushCombat(res *engine.CombatResult) {
	for _, round := range res.Rounds {
		m.push(kindSystem, "", titleStyle.Render(fmt.Sprintf("Round %d", round.Round)))
		for _, e := range round.Entries {
			m.push(kindAgent, e.Actor, formatCombatEntry(e))
		}
	}
	switch {
	case res.Victory:
		m.push(kindNarrative, "", "Victory! The enemies are defeated.")
	case res.Status == combat.StatusDefeat:
		m.push(kindError, "", "The party has been defeated.")
	default:
		m.push(kindSystem, "", "The fight goes on. Adjust your doctrine and press Enter.")
	}
	if res.GameOver {
		m.push(kindError, "", "GAME OVER. Type /reset to start again.")
	}
}

func formatResult(r state.AppliedResult) string {
	s := fmt.Sprintf("%s [%s] HP %d→%d, Mind %d→%d", r.Name, r.Outcome, r.HPBefore, r.HPAfter, r.MindBefore, r.MindAfter)
	if r.TraumaAdded != "" {
		s += ", gained trauma: " + r.TraumaAdded
	}
	if r.Feedback != "" {
		s += ". " + r.Feedback
	}
	return s
}

func formatCombatEntry(e combat.LogEntry) string {
	var s string
	switch {
	case e.Action == agentai.ActionDefend || e.Action == actor.EnemyDefend:
		s = "defends"
	case e.Action == actor.EnemyWait:
		s = "waits"
	case e.Action == agentai.ActionHeal:
		s = fmt.Sprintf("heals %s for %d", e.Target, e.Amount)
	case !e.Success:
		s = fmt.Sprintf("%s on %s misses", e.Action, e.Target)
	default:
		s = fmt.Sprintf("%s on %s for %d damage", e.Action, e.Target, e.Amount)
	}
	if e.Narrative != "" {
		s += ". " + e.Narrative
	}
	return s
}

func describeParty(agents []*actor.Agent) string {
	var b strings.Builder
	for i, a := range agents {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s. Flaw: %s. Skill: %s.", a.Name, a.Personality, a.Flaw, a.SignatureSkill)
		if len(a.Trauma) > 0 {
			b.WriteString(" Trauma: " + strings.Join(a.Trauma, ", ") + ".")
		}
	}
	return b.String()
}

func writeParty(gs *state.GameState) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("PARTY") + "\n\n")

	for _, a := range gs.Agents {
		name := speakerStyle.Render(a.Name)
		if !a.IsAlive() {
			name += errorStyle.Render(" (fallen)")
		}
		content.WriteString(name + "\n")
		content.WriteString(fmt.Sprintf("HP %d/%d  Mind %d  Atk %d\n", a.HP, a.MaxHP, a.Mind, a.Attack))
		if len(a.Trauma) > 0 {
			content.WriteString(warnStyle.Render(strings.Join(a.Trauma, ", ")) + "\n")
		}
		content.WriteString("\n")
	}

	if gs.Encounter != nil {
		content.WriteString(titleStyle.Render("ENEMIES") + "\n\n")
		for _, e := range gs.Encounter.Enemies {
			line := fmt.Sprintf("%s %d/%d", e.Name, e.HP, e.MaxHP)
			if !e.IsAlive() {
				line = promptStyle.Render(line + " (dead)")
			}
			content.WriteString(line + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString(fmt.Sprintf("Events: %d  Fights: %d\n", gs.EventCount, gs.CombatCount))
	if gs.Doctrine != "" {
		content.WriteString("\nDoctrine:\n" + doctrineStyle.Render(gs.Doctrine) + "\n")
	}
	if gs.GameOver {
		content.WriteString("\n" + errorStyle.Render("GAME OVER") + "\n")
	}

	content.WriteString("\nCommands:\n")
	content.WriteString("• /run: Fight to the end\n")
	content.WriteString("• /party: Personalities\n")
	content.WriteString("• /reset: New party\n")
	content.WriteString("• /quit: Quit\n")
	return content.String()
}

// renderLog wraps every entry to width.
func renderLog(entries []logEntry, width int) string {
	if width < 10 {
		width = 10
	}
	var content strings.Builder
	for _, e := range entries {
		text := e.text
		prefix := ""
		if e.speaker != "" {
			prefix = e.speaker + ": "
		}
		wrapped := wordwrap.String(prefix+text, width)
		if prefix != "" {
			wrapped = strings.Replace(wrapped, prefix, "", 1)
		}

		switch e.kind {
		case kindNarrative:
			content.WriteString(narratorStyle.Render(wrapped))
		case kindDoctrine:
			content.WriteString(doctrineStyle.Render(prefix) + wrapped)
		case kindAgent:
			content.WriteString(speakerStyle.Render(prefix) + wrapped)
		case kindError:
			content.WriteString(errorStyle.Render(wrapped))
		default:
			content.WriteString(wrapped)
		}
		content.WriteString("\n\n")
	}
	return content.String()
}

// refresh re-renders both panels for the current size and state.
func (m *ConsoleUI) refresh() {
	if m.gameState.PendingEvent == nil {
		m.textarea.Placeholder = IdlePlaceholder
	} else {
		m.textarea.Placeholder = DoctrinePlaceholder
	}
	if !m.ready {
		return
	}

	width := m.logViewport.Width - 6
	content := renderLog(m.log, width)
	if m.loading {
		content += m.renderProgressBar()
	}
	m.logViewport.SetContent(content)
	m.logViewport.GotoBottom()
	m.partyViewport.SetContent(writeParty(m.gameState))
}

func (m ConsoleUI) fetchNextEvent() tea.Cmd {
	id := m.gameState.ID
	return func() tea.Msg {
		resp, err := m.api.nextEvent(id)
		return nextEventMsg{resp, err}
	}
}

func (m ConsoleUI) resolve(doctrine string) tea.Cmd {
	id := m.gameState.ID
	return func() tea.Msg {
		resp, err := m.api.resolveEvent(id, doctrine)
		return resolveMsg{resp, err}
	}
}

func (m ConsoleUI) playCombat(doctrine string, toEnd bool) tea.Cmd {
	id := m.gameState.ID
	return func() tea.Msg {
		resp, err := m.api.combat(id, doctrine, toEnd)
		return combatMsg{resp, err}
	}
}

func (m ConsoleUI) reset() tea.Cmd {
	id := m.gameState.ID
	return func() tea.Msg {
		gs, err := m.api.resetSession(id)
		return resetMsg{gs, err}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Abandon your party?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	logWidth := int(float64(m.width)*0.7) - 4
	partyWidth := m.width - logWidth - 6

	logPanel := logPanelStyle.Width(logWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.logViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(logWidth-4, 1))),
			m.textarea.View(),
		),
	)

	partyPanel := partyPanelStyle.Width(partyWidth).Height(m.height - 2).Render(
		m.partyViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, logPanel, partyPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	usable := m.logViewport.Width - 6
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓") // Blinking effect at the progress point
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
