package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"minutes/internal/export"
	"minutes/internal/turns"
)

// Panel identifies which view is shown.
type Panel int

const (
	PanelMinutes Panel = iota
	PanelTranscript
)

// chromeLines counts header, status, two dividers, panel title and footer.
const chromeLines = 6

// Model is the bubbletea model for the job viewer.
type Model struct {
	doc      export.Document
	speakers map[string]int

	width  int
	height int

	panel  Panel
	scroll int
}

// New returns a viewer for doc focused on the minutes panel.
func New(doc export.Document) Model {
	speakers := make(map[string]int)
	for i, name := range turns.Speakers(doc.Sentences) {
		speakers[name] = i
	}
	return Model{doc: doc, speakers: speakers}
}

// Run opens the viewer in the alternate screen and blocks until the user quits.
func Run(doc export.Document, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(New(doc), opts...).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.scroll = min(m.scroll, m.maxScroll())
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyEsc, KeyCtrlC:
		return m, tea.Quit
	case KeyTab:
		if m.panel == PanelMinutes {
			m.panel = PanelTranscript
		} else {
			m.panel = PanelMinutes
		}
		m.scroll = 0
	case KeyDown, KeyJ:
		m.scrollBy(1)
	case KeyUp, KeyK:
		m.scrollBy(-1)
	case KeyPgDown:
		m.scrollBy(m.visibleLines())
	case KeyPgUp:
		m.scrollBy(-m.visibleLines())
	case KeyTop:
		m.scroll = 0
	case KeyBottom:
		m.scroll = m.maxScroll()
	}
	return m, nil
}

func (m *Model) scrollBy(delta int) {
	m.scroll = max(0, min(m.scroll+delta, m.maxScroll()))
}

// Panel reports the active panel.
func (m Model) Panel() Panel {
	return m.panel
}

// Scroll reports the index of the first visible line.
func (m Model) Scroll() int {
	return m.scroll
}

func (m Model) visibleLines() int {
	return max(1, m.height-chromeLines)
}

func (m Model) maxScroll() int {
	return max(0, len(m.lines())-m.visibleLines())
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

// lines renders the active panel as wrapped terminal lines.
func (m Model) lines() []string {
	width := m.contentWidth()
	if m.panel == PanelTranscript {
		text := strings.TrimSpace(m.doc.Transcript)
		if text == "" {
			return []string{DimStyle.Render("(empty transcript)")}
		}
		return wrapText(text, width)
	}

	if len(m.doc.Sentences) == 0 {
		return []string{DimStyle.Render("(no sentences)")}
	}
	var out []string
	for _, s := range m.doc.Sentences {
		prefix := TimestampStyle.Render(s.StartTime) + " " +
			speakerStyle(m.speakers[s.Speaker]).Render(s.Speaker) + " "
		indent := lipgloss.Width(prefix)
		body := wrapText(s.Text, max(10, width-indent))
		out = append(out, prefix+body[0])
		for _, line := range body[1:] {
			out = append(out, strings.Repeat(" ", indent)+line)
		}
	}
	return out
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	divider := DividerStyle.Render(strings.Repeat("─", m.width))
	sections := []string{
		m.renderHeader(),
		m.renderStatusBar(),
		divider,
		m.renderPanelTitle(),
	}

	lines := m.lines()
	end := min(len(lines), m.scroll+m.visibleLines())
	body := lines[min(m.scroll, end):end]
	for len(body) < m.visibleLines() {
		body = append(body, "")
	}
	sections = append(sections, strings.Join(body, "\n"), divider, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := TitleStyle.Render("MINUTES")
	if m.doc.SourceName != "" {
		title += DimStyle.Render(" " + m.doc.SourceName)
	}
	return title
}

func (m Model) renderStatusBar() string {
	var parts []string
	if m.doc.JobID != "" {
		parts = append(parts, "job "+m.doc.JobID)
	}
	if m.doc.Backend != "" {
		parts = append(parts, m.doc.Backend)
	}
	parts = append(parts, fmt.Sprintf("%d sentences", len(m.doc.Sentences)))
	parts = append(parts, fmt.Sprintf("%d speakers", len(m.speakers)))
	return StatusStyle.Render(strings.Join(parts, " · "))
}

func (m Model) renderPanelTitle() string {
	minutes := PanelTitleStyle.Render("Minutes")
	transcript := PanelTitleStyle.Render("Transcript")
	if m.panel == PanelMinutes {
		minutes = PanelTitleActiveStyle.Render("[Minutes]")
	} else {
		transcript = PanelTitleActiveStyle.Render("[Transcript]")
	}
	title := minutes + "  " + transcript
	if total := len(m.lines()); total > m.visibleLines() {
		title += "  " + ScrollBadgeStyle.Render(fmt.Sprintf("%d/%d", m.scroll+1, total))
	}
	return title
}

func (m Model) renderFooter() string {
	parts := []string{
		FooterKeyStyle.Render("Tab") + FooterDescStyle.Render(" Panel"),
		FooterKeyStyle.Render("j/k") + FooterDescStyle.Render(" Scroll"),
		FooterKeyStyle.Render("g/G") + FooterDescStyle.Render(" Top/Bottom"),
		FooterKeyStyle.Render("q") + FooterDescStyle.Render(" Quit"),
	}
	return strings.Join(parts, "  ")
}

// wrapText breaks text into lines no wider than width terminal cells. Words
// longer than a line, and scripts written without spaces, are split per rune.
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current strings.Builder
		currentWidth := 0
		flush := func() {
			lines = append(lines, current.String())
			current.Reset()
			currentWidth = 0
		}
		for _, word := range strings.Fields(paragraph) {
			wordWidth := lipgloss.Width(word)
			if currentWidth > 0 && currentWidth+1+wordWidth > width {
				flush()
			}
			if currentWidth > 0 {
				current.WriteByte(' ')
				currentWidth++
			}
			if wordWidth <= width-currentWidth {
				current.WriteString(word)
				currentWidth += wordWidth
				continue
			}
			for _, r := range word {
				rw := lipgloss.Width(string(r))
				if currentWidth+rw > width && currentWidth > 0 {
					flush()
				}
				current.WriteRune(r)
				currentWidth += rw
			}
		}
		if currentWidth > 0 || len(lines) == 0 {
			flush()
		}
	}
	return lines
}
