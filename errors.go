// Completion: 100% - Error handling complete, clear and helpful messages
package main

import (
	"fmt"
	"strings"
)

// ErrorLevel indicates the severity of a diagnostic.
type ErrorLevel int

const (
	LevelWarning ErrorLevel = iota
	LevelError
	LevelFatal
)

func (l ErrorLevel) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal error"
	default:
		return "unknown"
	}
}

// ErrorKind is the stable error kind: every error is fatal and
// belongs to exactly one of these categories across every compiler pass.
type ErrorKind int

const (
	KindLexical ErrorKind = iota
	KindParse
	KindType
	KindCodegen
	KindAllocation
	KindEncoding
	KindLink
	KindIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindLexical:
		return "LexicalError"
	case KindParse:
		return "ParseError"
	case KindType:
		return "TypeError"
	case KindCodegen:
		return "CodegenError"
	case KindAllocation:
		return "AllocationError"
	case KindEncoding:
		return "EncodingError"
	case KindLink:
		return "LinkError"
	case KindIO:
		return "IOError"
	default:
		return "UnknownError"
	}
}

// SourceLocation identifies a position in source text.
type SourceLocation struct {
	File   string
	Line   int
	Column int
	Length int // length of the offending token/expression, 0 if unknown
}

func (loc SourceLocation) String() string {
	if loc.File == "" {
		return fmt.Sprintf("%d:%d", loc.Line, loc.Column)
	}
	return fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Column)
}

// ErrorContext carries optional extra diagnostic detail.
type ErrorContext struct {
	SourceLine string
	Suggestion string
	HelpText   string
}

// CompilerError is the single error type every compiler pass raises.
// {kind, message, line?, column?, file?}.
type CompilerError struct {
	Level    ErrorLevel
	Kind     ErrorKind
	Message  string
	Location SourceLocation
	Context  ErrorContext
}

func (e *CompilerError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Location, e.Kind, e.Message)
}

// Format renders the error with source context, matching the layout the
// driver prints to stderr before exiting non-zero.
func (e *CompilerError) Format(useColor bool) string {
	var sb strings.Builder

	if useColor {
		sb.WriteString("\033[1;31m")
	}
	sb.WriteString(e.Level.String())
	sb.WriteString(" [")
	sb.WriteString(e.Kind.String())
	sb.WriteString("]: ")
	if useColor {
		sb.WriteString("\033[0m")
	}
	sb.WriteString(e.Message)
	sb.WriteString("\n")

	if useColor {
		sb.WriteString("\033[1;34m")
	}
	sb.WriteString("  --> ")
	sb.WriteString(e.Location.String())
	if useColor {
		sb.WriteString("\033[0m")
	}
	sb.WriteString("\n")

	if e.Context.SourceLine != "" {
		lineNum := fmt.Sprintf("%d", e.Location.Line)
		padding := strings.Repeat(" ", len(lineNum)+1)

		sb.WriteString(padding)
		sb.WriteString("|\n")
		sb.WriteString(lineNum)
		sb.WriteString(" | ")
		sb.WriteString(e.Context.SourceLine)
		sb.WriteString("\n")
		sb.WriteString(padding)
		sb.WriteString("| ")

		if e.Location.Column > 0 {
			sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			if useColor {
				sb.WriteString("\033[1;31m")
			}
			if e.Location.Length > 0 {
				sb.WriteString(strings.Repeat("^", e.Location.Length))
			} else {
				sb.WriteString("^")
			}
			if useColor {
				sb.WriteString("\033[0m")
			}
			sb.WriteString("\n")
		}
	}

	if e.Context.Suggestion != "" {
		if useColor {
			sb.WriteString("\033[1;32m")
		}
		sb.WriteString("   help: ")
		if useColor {
			sb.WriteString("\033[0m")
		}
		sb.WriteString(e.Context.Suggestion)
		sb.WriteString("\n")
	}

	if e.Context.HelpText != "" {
		if useColor {
			sb.WriteString("\033[1;36m")
		}
		sb.WriteString("   note: ")
		if useColor {
			sb.WriteString("\033[0m")
		}
		sb.WriteString(e.Context.HelpText)
		sb.WriteString("\n")
	}

	return sb.String()
}

// Fatal reports whether this error kind always terminates compilation.
// Every error is fatal; LevelWarning is reserved for
// informational diagnostics that don't participate in the exit decision
// (currently unused by any pass, kept for symmetry with the corpus).
func (e *CompilerError) Fatal() bool {
	return e.Level == LevelError || e.Level == LevelFatal
}

func lexErr(msg string, loc SourceLocation) *CompilerError {
	return &CompilerError{Level: LevelFatal, Kind: KindLexical, Message: msg, Location: loc}
}

func parseErr(expected, got string, loc SourceLocation) *CompilerError {
	return &CompilerError{
		Level:    LevelFatal,
		Kind:     KindParse,
		Message:  fmt.Sprintf("expected %s, got %s", expected, got),
		Location: loc,
	}
}

func typeErr(msg string, loc SourceLocation) *CompilerError {
	return &CompilerError{Level: LevelFatal, Kind: KindType, Message: msg, Location: loc}
}

func codegenErr(msg string, loc SourceLocation) *CompilerError {
	return &CompilerError{Level: LevelFatal, Kind: KindCodegen, Message: msg, Location: loc}
}

func allocErr(msg string) *CompilerError {
	return &CompilerError{Level: LevelFatal, Kind: KindAllocation, Message: msg}
}

func encodingErr(msg string) *CompilerError {
	return &CompilerError{Level: LevelFatal, Kind: KindEncoding, Message: msg}
}

func linkErr(msg string) *CompilerError {
	return &CompilerError{Level: LevelFatal, Kind: KindLink, Message: msg}
}

func ioErr(msg string) *CompilerError {
	return &CompilerError{Level: LevelFatal, Kind: KindIO, Message: msg}
}
