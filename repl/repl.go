// Package repl is an interactive Bubble Tea front end for the augo engine,
// adapted from the teacher's Monkey REPL: the same model/Update/View shape,
// lipgloss styling, multiline-bracket detection, and token-level syntax
// highlighting, rewired to call engine.Engine.Eval instead of a raw
// lexer/parser/evaluator/object.Environment pipeline.
package repl

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dr8co/augo/engine"
	"github.com/dr8co/augo/input"
	"github.com/dr8co/augo/lexer"
	"github.com/dr8co/augo/token"
	"github.com/dr8co/augo/value"
)

// Prompt and ContPrompt mark a fresh statement and a continuation line of a
// multiline (unbalanced-bracket) entry, respectively.
const (
	Prompt     = "augo> "
	ContPrompt = "  ... "
)

// Options configures a REPL session.
type Options struct {
	NoColor bool
	Debug   bool
}

//nolint:gochecknoglobals
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	promptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	parseErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))

	runtimeErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196"))

	errorTipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	historyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	keywordStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	identifierStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39"))

	literalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	operatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	delimiterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	stringStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114"))
)

// ErrorType distinguishes a parse-time failure from a runtime fault so View
// can pick the right style and tips.
type ErrorType int

const (
	NoError ErrorType = iota
	ParseError
	RuntimeError
)

type evalResultMsg struct {
	output    string
	isError   bool
	errorType ErrorType
	elapsed   time.Duration
}

type historyEntry struct {
	input          string
	output         string
	isError        bool
	errorType      ErrorType
	evaluationTime time.Duration
}

type model struct {
	textInput textinput.Model
	history   []historyEntry
	eng       *engine.Engine
	username  string

	evaluating      bool
	currentInput    string
	multilineBuffer string
	isMultiline     bool

	spinner spinner.Model
	options Options
}

// Start runs an interactive REPL for username against a freshly started
// engine, with the given options.
func Start(username string, options Options) error {
	eng := engine.Startup("")
	defer eng.Shutdown()

	p := tea.NewProgram(initialModel(username, eng, options))
	_, err := p.Run()
	return err
}

func initialModel(username string, eng *engine.Engine, options Options) model {
	ti := textinput.New()
	ti.Placeholder = ""
	ti.Focus()
	ti.Prompt = Prompt
	if !options.NoColor {
		ti.Prompt = promptStyle.Render(Prompt)
	}
	ti.CharLimit = 0

	s := spinner.New()
	s.Spinner = spinner.Dot

	return model{
		textInput: ti,
		eng:       eng,
		username:  username,
		spinner:   s,
		options:   options,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) applyStyle(style lipgloss.Style, s string) string {
	if m.options.NoColor {
		return s
	}
	return style.Render(s)
}

// isBalanced reports whether every bracket/brace/paren in input is closed,
// ignoring contents of string and char literals.
func isBalanced(input string) bool {
	depth := 0
	inString := false
	inChar := false
	escaped := false
	for _, r := range input {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString:
			switch r {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
		case inChar:
			switch r {
			case '\\':
				escaped = true
			case '\'':
				inChar = false
			}
		case r == '"':
			inString = true
		case r == '\'':
			inChar = true
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			depth--
		}
	}
	return depth <= 0 && !inString && !inChar
}

func evalCmd(eng *engine.Engine, src string, debug bool) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		v, err := eng.Eval(src)
		elapsed := time.Since(start)
		if err != nil {
			errType := RuntimeError
			msg := err.Error()
			if strings.HasPrefix(msg, "parse error") || strings.HasPrefix(msg, "compile error") {
				errType = ParseError
			}
			return evalResultMsg{output: msg, isError: true, errorType: errType, elapsed: elapsed}
		}
		out := value.Display(v)
		if debug {
			out = fmt.Sprintf("%s  (%s)", out, v.Type())
		}
		return evalResultMsg{output: out, isError: false, errorType: NoError, elapsed: elapsed}
	}
}

func formatError(style *lipgloss.Style, entry *historyEntry, s *strings.Builder, noColor bool) {
	msg := entry.output
	tips := ""
	if idx := strings.Index(msg, "\nTips:"); idx >= 0 {
		tips = msg[idx:]
		msg = msg[:idx]
	}
	if noColor {
		s.WriteString(msg)
	} else {
		s.WriteString(style.Render(msg))
	}
	if tips != "" {
		if noColor {
			s.WriteString(tips)
		} else {
			s.WriteString(errorTipStyle.Render(tips))
		}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.evaluating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case evalResultMsg:
		m.evaluating = false
		m.history = append(m.history, historyEntry{
			input:          m.currentInput,
			output:         msg.output,
			isError:        msg.isError,
			errorType:      msg.errorType,
			evaluationTime: msg.elapsed,
		})
		m.currentInput = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD:
			return m, tea.Quit

		case tea.KeyEnter:
			if m.evaluating {
				return m, nil
			}
			line := m.textInput.Value()

			if m.isMultiline {
				if strings.TrimSpace(line) == "" {
					src := m.multilineBuffer
					m.multilineBuffer = ""
					m.isMultiline = false
					m.textInput.SetValue("")
					m.currentInput = src
					m.evaluating = true
					return m, evalCmd(m.eng, src, m.options.Debug)
				}
				m.multilineBuffer += "\n" + line
				m.textInput.SetValue("")
				return m, nil
			}

			if !isBalanced(line) {
				m.multilineBuffer = line
				m.isMultiline = true
				m.textInput.SetValue("")
				return m, nil
			}

			m.textInput.SetValue("")
			m.currentInput = line
			m.evaluating = true
			return m, evalCmd(m.eng, line, m.options.Debug)
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(m.applyStyle(titleStyle, "augo REPL"))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Hello %s! Type augo code, or press Esc/Ctrl+C/Ctrl+D to exit.\n\n", m.username))

	for _, entry := range m.history {
		lines := strings.Split(entry.input, "\n")
		for i, line := range lines {
			if i == 0 {
				s.WriteString(m.applyStyle(promptStyle, Prompt))
			} else {
				s.WriteString(m.applyStyle(promptStyle, ContPrompt))
			}
			s.WriteString(m.highlightCode(line))
			s.WriteString("\n")
		}

		if entry.isError {
			switch entry.errorType {
			case ParseError:
				formatError(&parseErrorStyle, &entry, &s, m.options.NoColor)
			case RuntimeError:
				formatError(&runtimeErrorStyle, &entry, &s, m.options.NoColor)
			default:
				s.WriteString(m.applyStyle(errorStyle, entry.output))
			}
		} else {
			s.WriteString(m.applyStyle(resultStyle, entry.output))
		}

		if entry.evaluationTime > 10*time.Millisecond {
			timeStr := fmt.Sprintf(" (%.2fs)", entry.evaluationTime.Seconds())
			s.WriteString(m.applyStyle(historyStyle, timeStr))
		}

		s.WriteString("\n\n")
	}

	if m.evaluating {
		s.WriteString(m.applyStyle(promptStyle, Prompt))
		s.WriteString(m.highlightCode(m.currentInput))
		s.WriteString("\n")
		s.WriteString(m.spinner.View())
		s.WriteString(" Evaluating...")
		s.WriteString("\n\n")
	}

	if m.isMultiline && !m.evaluating {
		s.WriteString(m.applyStyle(historyStyle, "Current multiline input:\n"))
		s.WriteString(m.highlightCode(m.multilineBuffer))
		s.WriteString("\n")
	}

	if !m.evaluating {
		if m.isMultiline {
			m.textInput.Prompt = m.applyStyle(promptStyle, ContPrompt)
		} else {
			m.textInput.Prompt = m.applyStyle(promptStyle, Prompt)
		}
		s.WriteString(m.textInput.View())
		s.WriteString("\n")
	}

	helpText := "\nPress Esc or Ctrl+C/D to exit"
	if m.isMultiline {
		helpText += " | Multiline mode: Enter empty line to evaluate or continue typing"
	} else {
		helpText += " | Multiline input supported for unbalanced brackets"
	}
	s.WriteString(m.applyStyle(historyStyle, helpText))

	return s.String()
}

// highlightCode applies syntax highlighting to a single augo source snippet.
// A lexing error falls back to the raw, unhighlighted text.
func (m model) highlightCode(code string) string {
	in := input.OpenString("<repl>", code)
	l := lexer.New(in)

	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return code
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	if len(toks) == 0 {
		return code
	}

	isKeyword := func(t token.Token) bool {
		switch t.Kind {
		case token.IF, token.ELSE, token.IN, token.FOR, token.WHILE, token.VAR,
			token.FUNC, token.RETURN, token.BREAK, token.CONTINUE,
			token.TRUE, token.FALSE, token.NONE, token.IMPORT:
			return true
		}
		return false
	}
	isOperator := func(t token.Token) bool {
		return token.Arity(t.Kind) > 0 || token.IsAssignOp(t.Kind)
	}
	isDelimiter := func(t token.Token) bool {
		switch t.Kind {
		case token.COMMA, token.COLON, token.SEMICOLON, token.DOT,
			token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE,
			token.LBRACKET, token.RBRACKET:
			return true
		}
		return false
	}

	var s strings.Builder
	for i := range len(toks) - 1 {
		tok := toks[i]
		if tok.Kind == token.EOF {
			continue
		}
		switch {
		case isKeyword(tok):
			s.WriteString(m.applyStyle(keywordStyle, tok.Literal))
		case tok.Kind == token.IDENT:
			s.WriteString(m.applyStyle(identifierStyle, tok.Literal))
		case tok.Kind == token.INT || tok.Kind == token.HEX || tok.Kind == token.BINARY ||
			tok.Kind == token.FLOAT || tok.Kind == token.CHAR:
			s.WriteString(m.applyStyle(literalStyle, tok.Literal))
		case tok.Kind == token.STRING:
			s.WriteString(m.applyStyle(stringStyle, "\""+tok.Literal+"\""))
		case isOperator(tok):
			s.WriteString(m.applyStyle(operatorStyle, tok.Literal))
		case isDelimiter(tok):
			s.WriteString(m.applyStyle(delimiterStyle, tok.Literal))
		default:
			s.WriteString(tok.Literal)
		}

		next := toks[i+1]
		if !isDelimiter(next) && next.Kind != token.DOT && tok.Kind != token.DOT &&
			!(tok.Kind == token.LPAREN || tok.Kind == token.LBRACKET) {
			s.WriteString(" ")
		}
	}

	return s.String()
}
