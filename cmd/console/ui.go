package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/Abdullah0x0/dreamdirector/internal/handlers"
	"github.com/Abdullah0x0/dreamdirector/internal/orchestrator"
	"github.com/Abdullah0x0/dreamdirector/pkg/story"
)

const (
	AgentName       = "Director"
	PlaceHolderText = "Describe the adventure you want..."
	ChoiceHolder    = "Pick A, B or C (or type /help)..."
	maxEvents       = 8
)

// preset is a ready-made adventure request offered at startup.
type preset struct {
	Label   string
	Request string
}

var presets = []preset{
	{"Cyberpunk Detective Noir", "a cyberpunk detective story in a rain-soaked megacity"},
	{"Dragon's Lair Confrontation", "a fantasy tale of a knight facing an ancient dragon"},
	{"Enchanted Forest Mystery", "a journey through a magic forest full of secrets"},
	{"Write my own...", ""},
}

type entryRole int

const (
	roleNarrator entryRole = iota
	roleUser
	roleSystem
	roleError
)

type entry struct {
	role entryRole
	text string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	api          *apiClient
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	loading      bool
	loadingLabel string

	adventureID   string
	status        *story.StatusSnapshot
	transcript    []entry
	choices       []string
	complete      bool
	lastNarrative string

	// Preset selection state
	showPresetModal bool
	selectedPreset  int

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int

	// Live event stream
	events      []string
	eventCh     chan SSEEvent
	stopEvents  context.CancelFunc
	streamError string
}

type storyMsg struct {
	resp    *handlers.StoryResponse
	started bool
	err     error
}

type statusMsg struct {
	status *story.StatusSnapshot
	err    error
}

// noticeMsg carries the one-line result of a side command.
type noticeMsg struct {
	text string
	err  error
}

type sseEventMsg struct {
	event SSEEvent
}

type sseClosedMsg struct{}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
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

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("221")) // gold

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
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

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, api *apiClient) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:          cfg,
		api:             api,
		textarea:        ta,
		chatViewport:    chatVp,
		metaViewport:    metaVp,
		showPresetModal: true,
	}
}

func writeMetadata(st *story.StatusSnapshot, events []string, streamError string) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("ADVENTURE") + "\n\n")

	if st == nil || st.AdventureID == "" {
		content.WriteString("No adventure yet.\n\n")
	} else {
		content.WriteString("Adventure ID:\n")
		content.WriteString(shortID(st.AdventureID) + "...\n\n")

		if st.Title != "" {
			content.WriteString("Title:\n")
			content.WriteString(st.Title + "\n\n")
		}

		content.WriteString("Scene:\n")
		content.WriteString(st.CurrentScene + "\n\n")

		content.WriteString("Mood / Danger:\n")
		content.WriteString(fmt.Sprintf("%s / %d of 10\n\n", st.CurrentMood, st.DangerLevel))

		content.WriteString("Choices:\n")
		content.WriteString(fmt.Sprintf("%d made, %d left\n\n", st.ChoicesMade, st.ChoicesRemaining))

		content.WriteString("Media:\n")
		content.WriteString(fmt.Sprintf("%d images, %d videos, %d music\n\n",
			st.GeneratedMedia.Images, st.GeneratedMedia.Videos, st.GeneratedMedia.Music))

		content.WriteString("Stage:\n")
		content.WriteString(st.Stage + "\n\n")
	}

	content.WriteString("Live events:\n")
	switch {
	case streamError != "":
		content.WriteString(promptStyle.Render("unavailable") + "\n")
	case len(events) == 0:
		content.WriteString("None yet\n")
	default:
		for _, e := range events {
			content.WriteString("• " + e + "\n")
		}
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• /export: PDF\n")
	content.WriteString("• /copy: Copy text\n")

	return content.String()
}

// writeChatContent builds the chat content from the transcript for the current viewport width
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // Account for left(3) + right(3) padding

	var content strings.Builder
	content.WriteString(titleStyle.Render("DREAMDIRECTOR") + "\n\n")
	content.WriteString("Five choices stand between you and the finale.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", max(chatWidth-6, 1))) + "\n\n")

	for _, e := range m.transcript {
		switch e.role {
		case roleNarrator:
			content.WriteString(formatNarratorResponse(e.text, chatWidth) + "\n\n")
		case roleUser:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(e.text, chatWidth-6) + "\n\n")
		case roleSystem:
			content.WriteString(promptStyle.Render(wordwrap.String(e.text, chatWidth)) + "\n\n")
		case roleError:
			content.WriteString(errorStyle.Render("Error: "+e.text) + "\n\n")
		}
	}

	if len(m.choices) > 0 && !m.loading {
		for i, c := range m.choices {
			label := string(rune('A' + i))
			content.WriteString(choiceStyle.Render(label+") ") + wordwrap.String(c, chatWidth-4) + "\n")
		}
		content.WriteString("\n")
	}

	// If currently loading, add the progress bar
	if m.loading {
		if m.loadingLabel != "" {
			content.WriteString(loadingStyle.Render(m.loadingLabel) + "\n")
		}
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *ConsoleUI) refreshMeta() {
	m.metaViewport.SetContent(writeMetadata(m.status, m.events, m.streamError))
}

func (m *ConsoleUI) layout() {
	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle preset modal first
	if m.showPresetModal {
		return m.updatePresetModal(msg)
	}

	// Handle quit modal second
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.writeChatContent()
		m.refreshMeta()

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
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}

			switch {
			case m.adventureID == "":
				return m.begin(input)
			case m.complete:
				m.transcript = append(m.transcript, entry{roleSystem, "This adventure is complete. Type /new to start another."})
				m.writeChatContent()
				return m, nil
			default:
				return m.choose(input)
			}
		}

	case storyMsg:
		m.loading = false
		m.loadingLabel = ""
		if msg.err != nil {
			m.transcript = append(m.transcript, entry{roleError, msg.err.Error()})
			m.writeChatContent()
			return m, nil
		}
		var cmds []tea.Cmd
		if msg.started {
			m.adventureID = msg.resp.AdventureID
			cmds = append(cmds, m.startEvents(msg.resp.AdventureID))
		}
		m.applyStory(msg.resp)
		m.textarea.Placeholder = ChoiceHolder
		m.writeChatContent()
		cmds = append(cmds, m.refreshStatus())
		return m, tea.Batch(cmds...)

	case statusMsg:
		if msg.err == nil && msg.status != nil {
			m.status = msg.status
			m.refreshMeta()
		}

	case noticeMsg:
		m.loading = false
		m.loadingLabel = ""
		if msg.err != nil {
			m.transcript = append(m.transcript, entry{roleError, msg.err.Error()})
		} else {
			m.transcript = append(m.transcript, entry{roleSystem, msg.text})
		}
		m.writeChatContent()
		return m, m.refreshStatus()

	case sseEventMsg:
		if msg.event.Type == streamClosedEvent {
			if errText, ok := msg.event.Data["error"].(string); ok {
				m.streamError = errText
			}
		} else if msg.event.Type != "connected" {
			m.events = append(m.events, describeEvent(msg.event))
			if len(m.events) > maxEvents {
				m.events = m.events[len(m.events)-maxEvents:]
			}
		}
		m.refreshMeta()
		return m, waitForEvent(m.eventCh)

	case sseClosedMsg:
		return m, nil

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()     // Refresh the chat content to update the progress bar
			return m, progressTick() // Continue the animation
		}
	}

	// Update components for non-mouse events
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *ConsoleUI) applyStory(resp *handlers.StoryResponse) {
	if len(resp.StoryProgression) == 0 {
		m.transcript = append(m.transcript, entry{roleNarrator, resp.Narrative})
		m.lastNarrative = resp.Narrative
	}
	var all []string
	for _, p := range resp.StoryProgression {
		m.transcript = append(m.transcript, entry{roleNarrator, p.Content})
		all = append(all, p.Content)
	}
	if len(all) > 0 {
		m.lastNarrative = strings.Join(all, "\n\n")
	}

	if len(resp.MediaFiles) > 0 {
		var files []string
		for slot, name := range resp.MediaFiles {
			files = append(files, fmt.Sprintf("%s: %s", slot, name))
		}
		m.transcript = append(m.transcript, entry{roleSystem, "Media ready - " + strings.Join(files, ", ")})
	}

	m.choices = resp.Choices
	m.complete = resp.StoryComplete
	if m.complete {
		m.transcript = append(m.transcript, entry{roleSystem, "Type /export to save your story as a PDF, or /new to begin again."})
	}
}

func (m ConsoleUI) begin(request string) (tea.Model, tea.Cmd) {
	m.transcript = append(m.transcript, entry{roleUser, request})
	m.loading = true
	m.loadingLabel = "Setting the stage..."
	m.progressTick = 0
	m.writeChatContent()

	api := m.api
	return m, tea.Batch(func() tea.Msg {
		resp, err := api.startStory(context.Background(), request)
		return storyMsg{resp: resp, started: true, err: err}
	}, progressTick())
}

func (m ConsoleUI) choose(input string) (tea.Model, tea.Cmd) {
	choice := normalizeChoice(input)
	m.transcript = append(m.transcript, entry{roleUser, input})
	m.loading = true
	m.loadingLabel = ""
	if len(m.choices) > 0 && m.status != nil && m.status.ChoicesRemaining == 1 {
		m.loadingLabel = "Directing the finale. This can take a few minutes..."
	}
	m.progressTick = 0
	m.writeChatContent()

	api := m.api
	return m, tea.Batch(func() tea.Msg {
		resp, err := api.makeChoice(context.Background(), choice)
		return storyMsg{resp: resp, err: err}
	}, progressTick())
}

// normalizeChoice maps 1-3 onto the A-C labels and passes anything else
// through as free text.
func normalizeChoice(input string) string {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "a":
		return "A"
	case "2", "b":
		return "B"
	case "3", "c":
		return "C"
	}
	return input
}

func formatNarratorResponse(response string, width int) string {
	// Check if response already has a speaker prefix
	hasPrefix := false
	if idx := strings.Index(response, ":"); idx > 0 && idx <= 20 {
		speaker := response[:idx]
		if len(strings.Fields(speaker)) <= 2 {
			hasPrefix = true
		}
	}

	// If no prefix, we'll add "Director: " so reduce available width
	wrapWidth := width
	if !hasPrefix {
		wrapWidth = width - len(AgentName+": ")
	}

	wrappedResponse := wordwrap.String(response, wrapWidth)
	lines := strings.Split(wrappedResponse, "\n")
	var formattedLines []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			formattedLines = append(formattedLines, "")
			continue
		}

		if idx := strings.Index(trimmed, ":"); idx > 0 && idx <= 20 {
			speaker := trimmed[:idx]
			rest := trimmed[idx+1:]
			if len(strings.Fields(speaker)) <= 2 {
				formattedLines = append(formattedLines, speakerStyle.Render(speaker+":")+rest)
				continue
			}
		}

		formattedLines = append(formattedLines, line)
	}

	result := strings.Join(formattedLines, "\n")
	if !hasPrefix {
		result = narratorStyle.Render(AgentName+": ") + result
	}

	return result
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(input), " ")
	cmd = strings.ToLower(cmd)
	arg = strings.TrimSpace(arg)
	api := m.api

	switch cmd {
	case "/help":
		helpText := `
Commands:
• /help - Show this help
• /status - Refresh the adventure panel
• /media - List generated media
• /image <prompt>, /video <prompt>, /music <prompt> - Generate extra media
• /portrait <name> - Draw a character
• /export - Save the story as a PDF
• /archive - List finished adventures
• /copy - Copy the latest passage to the clipboard
• /new - Start a new adventure
• Ctrl+C - Quit

How to play:
• Describe the adventure you want to begin
• Answer each choice with A, B or C (or 1-3)
• The fifth choice triggers the finale
`
		m.transcript = append(m.transcript, entry{roleSystem, helpText})
		m.writeChatContent()
		return m, nil

	case "/status":
		return m, m.refreshStatus()

	case "/media":
		return m, func() tea.Msg {
			listing, err := api.mediaFiles(context.Background())
			if err != nil {
				return noticeMsg{err: err}
			}
			if listing.Total() == 0 {
				return noticeMsg{text: "No media generated yet."}
			}
			return noticeMsg{text: fmt.Sprintf("Media (%d files): %s", listing.Total(), strings.Join(listing.All(), ", "))}
		}

	case "/image", "/video", "/music":
		if arg == "" {
			m.transcript = append(m.transcript, entry{roleError, fmt.Sprintf("usage: %s <prompt>", cmd)})
			m.writeChatContent()
			return m, nil
		}
		kind := strings.TrimPrefix(cmd, "/")
		m.loading = true
		m.loadingLabel = "Generating " + kind + "..."
		m.writeChatContent()
		return m, tea.Batch(func() tea.Msg {
			resp, err := api.generateMedia(context.Background(), kind, arg)
			if err != nil {
				return noticeMsg{err: err}
			}
			text := resp.Message
			if resp.GeneratedFile != "" {
				text += ": " + resp.GeneratedFile
			}
			return noticeMsg{text: text}
		}, progressTick())

	case "/portrait":
		if arg == "" {
			m.transcript = append(m.transcript, entry{roleError, "usage: /portrait <name>"})
			m.writeChatContent()
			return m, nil
		}
		m.loading = true
		m.loadingLabel = "Drawing " + arg + "..."
		m.writeChatContent()
		return m, tea.Batch(func() tea.Msg {
			res, err := api.portrait(context.Background(), arg)
			if err != nil {
				return noticeMsg{err: err}
			}
			switch {
			case res.Reused:
				return noticeMsg{text: fmt.Sprintf("%s's portrait: %s (reused)", res.Name, res.Image.Asset)}
			case res.Image.OK():
				return noticeMsg{text: fmt.Sprintf("%s's portrait: %s", res.Name, res.Image.Asset)}
			default:
				return noticeMsg{text: fmt.Sprintf("No portrait for %s (%s)", res.Name, res.Image.Status)}
			}
		}, progressTick())

	case "/export":
		dir := m.config.ExportDir
		return m, func() tea.Msg {
			path, err := api.exportPDF(context.Background(), dir)
			if err != nil {
				return noticeMsg{err: err}
			}
			return noticeMsg{text: "Story exported to " + path}
		}

	case "/archive":
		return m, func() tea.Msg {
			entries, err := api.archived(context.Background())
			if err != nil {
				return noticeMsg{err: err}
			}
			return noticeMsg{text: formatArchive(entries)}
		}

	case "/copy":
		if m.lastNarrative == "" {
			m.transcript = append(m.transcript, entry{roleSystem, "Nothing to copy yet."})
		} else if err := clipboard.WriteAll(m.lastNarrative); err != nil {
			m.transcript = append(m.transcript, entry{roleError, "clipboard unavailable: " + err.Error()})
		} else {
			m.transcript = append(m.transcript, entry{roleSystem, "Copied the latest passage to the clipboard."})
		}
		m.writeChatContent()
		return m, nil

	case "/new":
		if m.stopEvents != nil {
			m.stopEvents()
			m.stopEvents = nil
		}
		m.adventureID = ""
		m.complete = false
		m.choices = nil
		m.transcript = nil
		m.events = nil
		m.streamError = ""
		m.status = nil
		m.textarea.Placeholder = PlaceHolderText
		m.showPresetModal = true
		m.selectedPreset = 0
		m.refreshMeta()
		return m, nil
	}

	m.transcript = append(m.transcript, entry{roleError, "unknown command " + cmd + " (try /help)"})
	m.writeChatContent()
	return m, nil
}

func (m ConsoleUI) refreshStatus() tea.Cmd {
	api := m.api
	return func() tea.Msg {
		st, err := api.status(context.Background())
		return statusMsg{st, err}
	}
}

const streamClosedEvent = "stream.closed"

// startEvents subscribes to the adventure's live event stream. Events are
// fed back into the program one at a time by waitForEvent.
func (m *ConsoleUI) startEvents(adventureID string) tea.Cmd {
	if m.stopEvents != nil {
		m.stopEvents()
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan SSEEvent, 16)
	m.eventCh = ch
	m.stopEvents = cancel
	m.streamError = ""

	api := m.api
	go func() {
		defer close(ch)
		if err := api.listenToSSE(ctx, adventureID, ch); err != nil && ctx.Err() == nil {
			select {
			case ch <- SSEEvent{Type: streamClosedEvent, Data: map[string]interface{}{"error": err.Error()}}:
			case <-ctx.Done():
			}
		}
	}()
	return waitForEvent(ch)
}

func waitForEvent(ch <-chan SSEEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return sseClosedMsg{}
		}
		return sseEventMsg{ev}
	}
}

func describeEvent(ev SSEEvent) string {
	switch ev.Type {
	case "media.ready", "media.failed":
		kind, _ := ev.Data["kind"].(string)
		if asset, ok := ev.Data["asset"].(string); ok && asset != "" {
			return fmt.Sprintf("%s %s", kind, asset)
		}
		status, _ := ev.Data["status"].(string)
		return fmt.Sprintf("%s %s", kind, status)
	default:
		return strings.TrimPrefix(ev.Type, "story.")
	}
}

func (m ConsoleUI) updatePresetModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			m.showPresetModal = false
			return m, nil
		case tea.KeyUp:
			if m.selectedPreset > 0 {
				m.selectedPreset--
			}
		case tea.KeyDown:
			if m.selectedPreset < len(presets)-1 {
				m.selectedPreset++
			}
		case tea.KeyEnter:
			m.showPresetModal = false
			if m.width > 0 && m.height > 0 {
				m.layout()
			}
			m.ready = true
			m.refreshMeta()
			m.textarea.Focus()

			p := presets[m.selectedPreset]
			if p.Request == "" {
				m.writeChatContent()
				return m, textarea.Blink
			}
			return m.begin(p.Request)
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m.quit()
		default:
			switch msg.String() {
			case "y", "Y":
				return m.quit()
			case "n", "N":
				m.showQuitModal = false
				if m.adventureID == "" && len(m.transcript) == 0 {
					m.showPresetModal = true
					return m, nil
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) quit() (tea.Model, tea.Cmd) {
	if m.stopEvents != nil {
		m.stopEvents()
	}
	return m, tea.Quit
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to leave your adventure?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderPresetModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Choose Your Adventure"))
	content.WriteString("\n\n")

	for i, p := range presets {
		if i == m.selectedPreset {
			content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", p.Label)))
		} else {
			content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", p.Label)))
		}
		content.WriteString("\n")
	}

	content.WriteString("\n")
	content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))

	modal := modalStyle.Width(60).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showPresetModal {
		return m.renderPresetModal()
	}

	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"", // Add empty line for spacing
			separatorStyle.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m ConsoleUI) renderProgressBar() string {
	// Determine usable content width (viewport width minus padding used elsewhere: 3 left + 3 right)
	usable := m.chatViewport.Width - 6
	if usable <= 0 {
		usable = 30 // fallback before sizing
	}

	// Clamp bar width to a sensible range
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

// progressTick creates a command that sends a progress tick message
func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}

func formatArchive(entries []orchestrator.ArchiveEntry) string {
	if len(entries) == 0 {
		return "No finished adventures yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Finished adventures (%d):", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "\n  %s  %s [%s] %s", shortID(e.AdventureID), e.Title, e.StoryType, e.ExportedAt.Local().Format("Jan 2 15:04"))
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
