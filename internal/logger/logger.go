// Package logger is the diagnostic message model shared by every compiler
// phase (parser, syntax transformer, import resolver, macro expander,
// lowerer, printer). It is deliberately small: a message kind, a location
// in a named source, and a renderer that looks like clang's error format.
package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

type LogLevel int8

const (
	LevelNone LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelSilent
)

type MsgKind uint8

const (
	Error MsgKind = iota
	Warning
	Note
)

func (kind MsgKind) String() string {
	switch kind {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		panic("internal error: unknown MsgKind")
	}
}

// Phase identifies which pipeline stage produced a message. Kept as a
// plain string type (not a closed enum) so new phases never require a
// logger change.
type Phase string

const (
	PhaseParse   Phase = "parse"
	PhaseSyntax  Phase = "syntax"
	PhaseResolve Phase = "resolve"
	PhaseMacro   Phase = "macro"
	PhaseLower   Phase = "lower"
	PhaseCodeGen Phase = "codegen"
)

type Msg struct {
	Kind  MsgKind
	Phase Phase
	Data  MsgData
	Notes []MsgData
}

type MsgData struct {
	Text     string
	Location *MsgLocation

	// The offending form or path, attached for structured diagnostics.
	// Not rendered by String(); consumers that want it read it directly.
	UserDetail interface{}
}

type MsgLocation struct {
	File     string
	Line     int // 1-based
	Column   int // 0-based, in bytes
	Length   int // in bytes
	LineText string
}

// Loc is a 0-based byte offset into a Source's contents.
type Loc struct {
	Start int32
}

type Range struct {
	Loc Loc
	Len int32
}

func (r Range) End() int32 {
	return r.Loc.Start + r.Len
}

type Source struct {
	Index uint32

	// KeyPath is the absolute, platform-dependent path used as a cache and
	// Environment key. Never shown to the user.
	KeyPath string

	// PrettyPath is the path used in diagnostics, relative to the
	// invocation's working directory when possible.
	PrettyPath string

	Contents string
}

func (s *Source) TextForRange(r Range) string {
	return s.Contents[r.Loc.Start : r.Loc.Start+r.Len]
}

// LocationForLoc walks the source text to find the 1-based line, 0-based
// column, and the full text of the line containing loc. Used only for
// diagnostics, so a linear scan is fine.
func (s *Source) LocationForLoc(loc Loc) MsgLocation {
	line := 1
	lineStart := 0
	for i := 0; i < int(loc.Start) && i < len(s.Contents); i++ {
		if s.Contents[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	lineEnd := len(s.Contents)
	if idx := strings.IndexByte(s.Contents[lineStart:], '\n'); idx >= 0 {
		lineEnd = lineStart + idx
	}
	return MsgLocation{
		File:     s.PrettyPath,
		Line:     line,
		Column:   int(loc.Start) - lineStart,
		LineText: s.Contents[lineStart:lineEnd],
	}
}

func RangeData(source *Source, r Range, text string) MsgData {
	data := MsgData{Text: text}
	if source != nil {
		loc := source.LocationForLoc(r.Loc)
		loc.Length = int(r.Len)
		data.Location = &loc
	}
	return data
}

// Log accumulates messages as they are produced. Single-threaded callers
// use it directly; concurrent import resolution (see internal/resolver)
// serializes through the mutex captured here.
type Log struct {
	AddMsg    func(Msg)
	HasErrors func() bool
	Done      func() []Msg
}

// NewDeferLog creates a Log that only accumulates messages in memory and
// never prints. Callers render Done() themselves, e.g. to implement the
// "partial success per file" policy (surface the first three errors).
func NewDeferLog() Log {
	var mutex sync.Mutex
	var msgs []Msg
	hasErrors := false

	return Log{
		AddMsg: func(msg Msg) {
			mutex.Lock()
			defer mutex.Unlock()
			msgs = append(msgs, msg)
			if msg.Kind == Error {
				hasErrors = true
			}
		},
		HasErrors: func() bool {
			mutex.Lock()
			defer mutex.Unlock()
			return hasErrors
		},
		Done: func() []Msg {
			mutex.Lock()
			defer mutex.Unlock()
			sorted := make([]Msg, len(msgs))
			copy(sorted, msgs)
			sort.SliceStable(sorted, func(i, j int) bool {
				ai, aj := sorted[i].Data.Location, sorted[j].Data.Location
				if ai == nil || aj == nil {
					return ai != nil
				}
				if ai.File != aj.File {
					return ai.File < aj.File
				}
				return ai.Line < aj.Line
			})
			return sorted
		},
	}
}

type TerminalInfo struct {
	IsTTY           bool
	UseColorEscapes bool
	Width           int
	Height          int
}

// NewStderrLog renders messages to stderr as they arrive, in clang-like
// format, honoring the terminal width reported by GetTerminalInfo.
func NewStderrLog(level LogLevel) Log {
	var mutex sync.Mutex
	errors := 0
	warnings := 0
	terminalInfo := GetTerminalInfo(os.Stderr)

	return Log{
		AddMsg: func(msg Msg) {
			mutex.Lock()
			defer mutex.Unlock()
			switch msg.Kind {
			case Error:
				errors++
			case Warning:
				warnings++
			}
			if level <= msg.levelFloor() {
				writeStringWithColor(os.Stderr, msg.String(terminalInfo))
			}
		},
		HasErrors: func() bool {
			mutex.Lock()
			defer mutex.Unlock()
			return errors > 0
		},
		Done: func() []Msg { return nil },
	}
}

func (msg Msg) levelFloor() LogLevel {
	switch msg.Kind {
	case Error:
		return LevelError
	case Warning:
		return LevelWarning
	default:
		return LevelInfo
	}
}

func (msg Msg) String(terminalInfo TerminalInfo) string {
	var sb strings.Builder
	loc := msg.Data.Location

	if loc != nil {
		fmt.Fprintf(&sb, "%s:%d:%d: ", loc.File, loc.Line, loc.Column+1)
	}
	fmt.Fprintf(&sb, "%s [%s]: %s\n", msg.Kind.String(), msg.Phase, msg.Data.Text)

	if loc != nil && loc.LineText != "" {
		width := terminalInfo.Width
		line := loc.LineText
		if width > 0 && len(line) > width {
			line = line[:width]
		}
		sb.WriteString("  " + line + "\n")
		if loc.Column >= 0 {
			sb.WriteString("  " + strings.Repeat(" ", loc.Column) + "^\n")
		}
	}

	for _, note := range msg.Notes {
		fmt.Fprintf(&sb, "  note: %s\n", note.Text)
	}

	return sb.String()
}
