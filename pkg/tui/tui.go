// Package tui provides a terminal user interface for building volca sample
// sessions
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/james-see/volcasyro/pkg/converter"
	"github.com/james-see/volcasyro/pkg/syro"
)

// volca sample front panel colors
var (
	panelOrange = lipgloss.Color("#FF8C1A")
	ledRed      = lipgloss.Color("#FF3B30")
	silverGray  = lipgloss.Color("#C0C0C0")
	darkGray    = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(panelOrange).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(panelOrange).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(silverGray).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(ledRed).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(panelOrange).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(panelOrange).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateInput
	StateWorking
	StateResult
)

type action int

const (
	actionSample action = iota
	actionPattern
	actionErase
	actionRestore
	actionEncode
	actionClear
	actionExit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Types       []string
	action      action
}

var menuItems = []MenuItem{
	{Title: "Add sample", Description: "Write a WAV file to a sample slot", Types: []string{".wav", ".wave"}, action: actionSample},
	{Title: "Add pattern", Description: "Write a MIDI drum pattern or device pattern to a sequence slot", Types: []string{".mid", ".midi", ".vspattern", ".pattern"}, action: actionPattern},
	{Title: "Erase slot", Description: "Clear a sample slot", action: actionErase},
	{Title: "Restore all data", Description: "Replace all device memory from an .alldata image", Types: []string{".alldata"}, action: actionRestore},
	{Title: "Encode session", Description: "Write the session as .syro data or a playable .wav", action: actionEncode},
	{Title: "Clear session", Description: "Drop every queued operation", action: actionClear},
	{Title: "Exit", Description: "Exit the application", action: actionExit},
}

// Model represents the TUI model
type Model struct {
	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	input        textinput.Model
	conv         *converter.Converter
	batch        *syro.Batch
	item         MenuItem
	selectedFile string
	message      string
	err          error
	width        int
	height       int
}

// operationMsg carries a descriptor built off the UI goroutine.
type operationMsg struct {
	desc syro.Descriptor
	err  error
}

// encodeDoneMsg signals the end of an encoding session.
type encodeDoneMsg struct {
	output string
	bytes  int64
	err    error
}

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a TUI model building sessions for device.
func New(device converter.Device) (Model, error) {
	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(panelOrange)

	ti := textinput.New()
	ti.CharLimit = 256

	conv := converter.New(device)
	batch, err := conv.NewBatch(device.Limits().SlotPolicy)
	if err != nil {
		return Model{}, err
	}
	return Model{
		state:      StateMenu,
		filePicker: fp,
		spinner:    s,
		input:      ti,
		conv:       conv,
		batch:      batch,
	}, nil
}

// Batch returns the session being built.
func (m Model) Batch() *syro.Batch {
	return m.batch
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// the file picker needs every message, not only keys
	if m.state == StateFilePicker {
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			m.selectedFile = path
			if m.item.action == actionRestore {
				m.state = StateWorking
				return m, tea.Batch(m.spinner.Tick, m.buildOperation(0))
			}
			return m.promptSlot()
		}
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StateInput:
			return m.updateInput(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case operationMsg:
		m.state = StateResult
		m.err = msg.err
		if m.err == nil {
			m.err = m.batch.Append(msg.desc)
		}
		if m.err == nil {
			m.message = fmt.Sprintf("Queued %s", msg.desc)
		}
		return m, nil

	case encodeDoneMsg:
		m.state = StateResult
		m.err = msg.err
		if m.err == nil {
			m.message = fmt.Sprintf("Wrote %d operations, %d bytes to %s", m.batch.Len(), msg.bytes, filepath.Base(msg.output))
		}
		return m, nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		m.item = menuItems[m.menuIndex]
		m.err = nil
		m.message = ""
		m.selectedFile = ""

		switch m.item.action {
		case actionExit:
			return m, tea.Quit
		case actionClear:
			m.state = StateResult
			batch, err := m.conv.NewBatch(m.batch.Limits().SlotPolicy)
			if err != nil {
				m.err = err
				return m, nil
			}
			m.batch = batch
			m.message = "Session cleared"
			return m, nil
		case actionErase:
			return m.promptSlot()
		case actionEncode:
			if m.batch.IsEmpty() {
				m.state = StateResult
				m.err = syro.ErrEmptyBatch
				return m, nil
			}
			return m.prompt("Output file", "session.syro")
		}

		m.filePicker.AllowedTypes = m.item.Types
		m.state = StateFilePicker
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) promptSlot() (tea.Model, tea.Cmd) {
	limits := m.batch.Limits()
	hi := limits.SampleSlots - 1
	if m.item.action == actionPattern {
		hi = limits.PatternSlots - 1
	}
	return m.prompt(fmt.Sprintf("Slot (0-%d)", hi), "")
}

func (m Model) prompt(placeholder, value string) (tea.Model, tea.Cmd) {
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.state = StateInput
	return m, m.input.Focus()
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.state = StateMenu
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		m.input.Blur()
		m.state = StateWorking

		if m.item.action == actionEncode {
			if value == "" {
				value = "session.syro"
			}
			return m, tea.Batch(m.spinner.Tick, m.encode(value))
		}
		slot, err := strconv.Atoi(value)
		if err != nil {
			m.state = StateResult
			m.err = fmt.Errorf("invalid slot %q", value)
			return m, nil
		}
		return m, tea.Batch(m.spinner.Tick, m.buildOperation(slot))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.message = ""
		m.selectedFile = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// buildOperation loads the selected file and builds the descriptor for the
// current menu action.
func (m Model) buildOperation(slot int) tea.Cmd {
	item, path, conv := m.item, m.selectedFile, m.conv
	return func() tea.Msg {
		if item.action == actionErase {
			d, err := syro.Erase(slot)
			return operationMsg{desc: d, err: err}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return operationMsg{err: err}
		}

		var d syro.Descriptor
		switch item.action {
		case actionSample:
			var p *syro.SamplePayload
			if p, err = conv.LoadSample(data); err == nil {
				d, err = syro.WriteSample(slot, p)
			}
		case actionPattern:
			var p *syro.Pattern
			if p, err = conv.LoadPattern(path, data); err == nil {
				d, err = syro.WritePattern(slot, p)
			}
		case actionRestore:
			d, err = syro.RestoreAll(data)
		}
		return operationMsg{desc: d, err: err}
	}
}

func (m Model) encode(output string) tea.Cmd {
	b, conv := m.batch, m.conv
	return func() tea.Msg {
		n, err := conv.EncodeToFile(context.Background(), b, output)
		return encodeDoneMsg{output: output, bytes: n, err: err}
	}
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateInput:
		s.WriteString(m.viewInput())
	case StateWorking:
		s.WriteString(m.viewWorking())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s SESSION ", strings.ToUpper(m.conv.GetDevice().Name()))))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(silverGray).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	s.WriteString(m.viewSession())
	return boxStyle.Render(s.String())
}

// viewSession lists the queued operations and the memory they use.
func (m Model) viewSession() string {
	limits := m.batch.Limits()
	var s strings.Builder
	s.WriteString(statusStyle.Render(fmt.Sprintf("%d/%d operations • %d/%d KiB",
		m.batch.Len(), limits.MaxOperations, m.batch.Footprint()>>10, limits.MemoryBudget>>10)))
	for _, d := range m.batch.Descriptors() {
		s.WriteString("\n")
		s.WriteString(menuStyle.Render("· " + d.String()))
	}
	return s.String()
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s: SELECT FILE ", strings.ToUpper(m.item.Title))))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewInput() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s ", strings.ToUpper(m.item.Title))))
	s.WriteString("\n\n")
	if m.selectedFile != "" {
		s.WriteString(fmt.Sprintf("File: %s\n\n", filepath.Base(m.selectedFile)))
	}
	s.WriteString(m.input.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("enter: confirm • esc: back to menu"))

	return boxStyle.Render(s.String())
}

func (m Model) viewWorking() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" WORKING "))
	s.WriteString("\n\n")
	if m.item.action == actionEncode {
		s.WriteString(fmt.Sprintf("%s Encoding %d operations...\n", m.spinner.View(), m.batch.Len()))
	} else {
		s.WriteString(fmt.Sprintf("%s Loading %s...\n", m.spinner.View(), filepath.Base(m.selectedFile)))
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s failed: %s", m.item.Title, m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" SUCCESS "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render("✓ " + m.message))
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
 __   _____  _    ___   _   _____   _____  ___
 \ \ / / _ \| |  / __| /_\ / __\ \ / / _ \/ _ \
  \ V / (_) | |_| (__ / _ \\__ \\ V /|   / (_) |
   \_/ \___/|____\___/_/ \_\___/ |_| |_|_\\___/
`
	return lipgloss.NewStyle().Foreground(panelOrange).Render(logo)
}

// Run starts the TUI application
func Run(device converter.Device) error {
	m, err := New(device)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
