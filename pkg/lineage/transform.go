package lineage

import (
	"strings"
)

// TransformCall is one recognized function application found in the SQL text.
type TransformCall struct {
	Function string // as spelled in the source
	Argument string // verbatim text between the parentheses
	Offset   int    // byte offset of the function name
}

// String renders the call as Function(Argument).
func (c TransformCall) String() string {
	return c.Function + "(" + c.Argument + ")"
}

// scanState is the state of the transform scanner.
type scanState int

const (
	stateOutside scanState = iota
	stateWord
	stateString
	stateQuotedIdent
	stateLineComment
	stateBlockComment
)

// openCall is a recognized call whose closing paren has not been seen yet.
type openCall struct {
	index    int // into the result slice
	depth    int // paren depth inside the call
	argStart int
}

// DetectTransforms scans sql for calls of the given functions and returns them
// in source order. A call is a recognized name on a word boundary followed
// immediately by "(". Its argument runs to the matching ")", counting nested
// parens and ignoring parens inside string literals, quoted identifiers and
// comments. Calls nested in another call's argument are reported as well.
// Calls without a closing paren are dropped.
func DetectTransforms(sql string, funcs []string) []TransformCall {
	known := make(map[string]struct{}, len(funcs))
	for _, f := range funcs {
		known[strings.ToUpper(f)] = struct{}{}
	}

	var (
		calls     []TransformCall
		closed    []bool
		open      []openCall
		state     = stateOutside
		quote     byte
		wordStart int
		depth     int
	)

	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		next := byte(0)
		if i+1 < len(sql) {
			next = sql[i+1]
		}

		switch state {
		case stateOutside:
			switch {
			case ch == '\'':
				state = stateString
			case ch == '"' || ch == '`':
				state, quote = stateQuotedIdent, ch
			case ch == '-' && next == '-':
				state = stateLineComment
				i++
			case ch == '/' && next == '*':
				state = stateBlockComment
				i++
			case isWordByte(ch):
				state, wordStart = stateWord, i
			case ch == '(':
				depth++
			case ch == ')':
				if n := len(open); n > 0 && open[n-1].depth == depth {
					c := open[n-1]
					calls[c.index].Argument = sql[c.argStart:i]
					closed[c.index] = true
					open = open[:n-1]
				}
				if depth > 0 {
					depth--
				}
			}

		case stateWord:
			if isWordByte(ch) {
				continue
			}
			state = stateOutside
			if ch == '(' {
				if _, ok := known[strings.ToUpper(sql[wordStart:i])]; ok {
					open = append(open, openCall{index: len(calls), depth: depth + 1, argStart: i + 1})
					calls = append(calls, TransformCall{Function: sql[wordStart:i], Offset: wordStart})
					closed = append(closed, false)
				}
			}
			i-- // let stateOutside handle ch

		case stateString:
			if ch == '\'' {
				if next == '\'' {
					i++
				} else {
					state = stateOutside
				}
			}

		case stateQuotedIdent:
			if ch == quote {
				if next == quote {
					i++
				} else {
					state = stateOutside
				}
			}

		case stateLineComment:
			if ch == '\n' {
				state = stateOutside
			}

		case stateBlockComment:
			if ch == '*' && next == '/' {
				state = stateOutside
				i++
			}
		}
	}

	result := make([]TransformCall, 0, len(calls))
	for i, c := range calls {
		if closed[i] {
			result = append(result, c)
		}
	}
	return result
}

// isWordByte reports whether ch can be part of an identifier or number.
func isWordByte(ch byte) bool {
	return ch == '_' || ch == '$' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') || ch >= 0x80
}
