package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ballclient/client"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	selfStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	statusStyles = map[client.State]lipgloss.Style{
		client.Disconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		client.Connecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		client.Connected:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}

	logStyles = map[LogKind]lipgloss.Style{
		LogSent:     lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		LogReceived: lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
		LogError:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}
)

// Controller 用户意图的去向，由 client.Runner 实现
type Controller interface {
	Connect(url string)
	Disconnect()
	Join(name string)
	Move(dx, dy int)
	Stop()
	Quit()
	Ready()
}

// Options 界面初始参数
type Options struct {
	URL         string
	PlayerName  string
	MaxLogLines int
}

// TUI 终端界面：状态指示、统计、玩家列表与消息日志
type TUI struct {
	ctrl Controller
	opts Options

	state  client.State
	detail string
	view   client.View
	logs   []string

	viewport    viewport.Model
	nameInput   textinput.Model
	editingName bool
	ready       bool
	width       int
	height      int
}

// New 创建界面模型
func New(ctrl Controller, opts Options) *TUI {
	if opts.PlayerName == "" {
		opts.PlayerName = client.DefaultPlayerName
	}
	ti := textinput.New()
	ti.Placeholder = client.DefaultPlayerName
	ti.SetValue(opts.PlayerName)
	ti.Blur()
	ti.CharLimit = 32
	ti.Width = 32

	return &TUI{
		ctrl:      ctrl,
		opts:      opts,
		state:     client.Disconnected,
		detail:    "Disconnected",
		nameInput: ti,
	}
}

func (t *TUI) Init() tea.Cmd {
	return textinput.Blink
}

func (t *TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if t.editingName {
			return t, t.updateNameInput(msg)
		}
		if quit := t.handleKey(msg); quit {
			return t, tea.Quit
		}
		return t, nil

	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height
		if !t.ready {
			t.viewport = viewport.New(msg.Width, t.logHeight())
			t.ready = true
		} else {
			t.viewport.Width = msg.Width
			t.viewport.Height = t.logHeight()
		}
		t.refreshLogs()

	case StatusMsg:
		t.state = msg.State
		t.detail = msg.Detail
		if t.ready {
			t.viewport.Height = t.logHeight()
		}
		return t, nil

	case ViewMsg:
		t.view = client.View(msg)
		if t.ready {
			t.viewport.Height = t.logHeight()
		}
		return t, nil

	case LogMsg:
		t.AddLog(msg)
		t.refreshLogs()
		return t, nil
	}

	if t.ready {
		t.viewport, cmd = t.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return t, tea.Batch(cmds...)
}

// handleKey 按键到意图的映射；返回 true 表示退出界面
func (t *TUI) handleKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "ctrl+c", "esc":
		return true
	case "c":
		t.ctrl.Connect(t.opts.URL)
	case "x":
		t.ctrl.Disconnect()
	case "j":
		t.ctrl.Join(t.opts.PlayerName)
	case "q":
		t.ctrl.Quit()
	case "r":
		t.ctrl.Ready()
	case "n":
		t.editingName = true
		t.nameInput.SetValue("")
		t.nameInput.Focus()
	case "w", "up":
		t.ctrl.Move(client.DirUp.Vector())
	case "s", "down":
		t.ctrl.Move(client.DirDown.Vector())
	case "a", "left":
		t.ctrl.Move(client.DirLeft.Vector())
	case "d", "right":
		t.ctrl.Move(client.DirRight.Vector())
	case " ":
		t.ctrl.Stop()
	}
	return false
}

func (t *TUI) updateNameInput(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		name := strings.TrimSpace(t.nameInput.Value())
		if name == "" {
			name = client.DefaultPlayerName
		}
		t.opts.PlayerName = name
		t.editingName = false
		t.nameInput.Blur()
		return nil
	case tea.KeyEsc:
		t.nameInput.SetValue(t.opts.PlayerName)
		t.editingName = false
		t.nameInput.Blur()
		return nil
	}
	var cmd tea.Cmd
	t.nameInput, cmd = t.nameInput.Update(msg)
	return cmd
}

func (t *TUI) View() string {
	if !t.ready {
		return "Initializing..."
	}
	return fmt.Sprintf("%s\n%s\n%s", t.header(), t.viewport.View(), t.footer())
}

// AddLog 追加一条日志并按上限裁剪
func (t *TUI) AddLog(msg LogMsg) {
	style, ok := logStyles[msg.Kind]
	line := msg.Text
	if ok {
		line = style.Render(line)
	}
	t.logs = append(t.logs, line)
	if limit := t.opts.MaxLogLines; limit > 0 && len(t.logs) > limit {
		t.logs = t.logs[len(t.logs)-limit:]
	}
}

func (t *TUI) refreshLogs() {
	if !t.ready {
		return
	}
	wasAtBottom := t.viewport.AtBottom()
	if len(t.logs) == 0 {
		t.viewport.SetContent(helpStyle.Render("No messages yet"))
	} else {
		t.viewport.SetContent(strings.Join(t.logs, "\n"))
	}
	if wasAtBottom {
		t.viewport.GotoBottom()
	}
}

func (t *TUI) header() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("ballclient - %s", t.opts.URL)))
	b.WriteString("\n")
	b.WriteString(statusStyles[t.state].Render("● " + t.detail))
	b.WriteString("\n")

	score := "-"
	if s, ok := t.view.SelfScore(); ok {
		score = fmt.Sprintf("%d", s)
	}
	b.WriteString(fmt.Sprintf("Tick %d │ Players %d │ Your score %s │ Dots %d",
		t.view.Tick, t.view.PlayerCount, score, t.view.DotCount))
	b.WriteString("\n")

	if len(t.view.Roster) == 0 {
		b.WriteString(helpStyle.Render("No players"))
		b.WriteString("\n")
	}
	for _, e := range t.view.Roster {
		line := fmt.Sprintf("%s ID: %d | Score: %d | Radius: %.1f | Pos: (%.0f, %.0f)",
			e.Name, e.ID, e.Score, e.Radius, e.X, e.Y)
		if e.IsSelf {
			line = selfStyle.Render(e.Name+" (You)") + strings.TrimPrefix(line, e.Name)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if t.view.DotCount > 0 {
		b.WriteString(fmt.Sprintf("%d dots on the map", t.view.DotCount))
	} else {
		b.WriteString("No dots remaining")
	}
	return b.String()
}

func (t *TUI) footer() string {
	name := inputStyle.Render("name> " + t.opts.PlayerName)
	if t.editingName {
		name = inputStyle.Render("name> " + t.nameInput.View())
	}
	help := helpStyle.Render("c connect • x disconnect • j join • n name • r ready • q quit game • wasd/arrows move • space stop • esc exit")
	if t.editingName {
		help = helpStyle.Render("enter: save name • esc: cancel")
	}
	return name + "\n" + help
}

func (t *TUI) logHeight() int {
	h := t.height - lipgloss.Height(t.header()) - lipgloss.Height(t.footer()) - 1
	if h < 3 {
		h = 3
	}
	return h
}
