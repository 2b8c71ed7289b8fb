// Package grammar tokenizes single lines of prompt text into scope-labeled
// tokens. The scope strings are a contract shared with the completion
// engine; behavior downstream is defined by exact label matches, so the
// vocabulary here is fixed.
package grammar

// Scope labels produced by TokenizeLine.
const (
	ScopeComment      = "comment.line.prompt"
	ScopeNetwork      = "meta.structure.network.prompt"
	ScopeNetworkBegin = "punctuation.definition.network.begin.prompt"
	ScopeNetworkEnd   = "punctuation.definition.network.end.prompt"
	ScopeNetworkType  = "meta.embedded.network.type.prompt"
	ScopeNetworkModel = "meta.embedded.network.model.prompt"
	ScopeSeparator    = "punctuation.separator.variable.prompt"
	ScopeWeight       = "constant.numeric.weight.prompt"
	ScopeTag          = "meta.tag.prompt"
	ScopeTagSeparator = "punctuation.separator.tag.prompt"
	ScopeGroup        = "punctuation.section.group.prompt"
)

// Token is one grammatical unit of a line. Offsets are line relative and End
// is exclusive. Scopes lists the labels that apply, outermost first.
type Token struct {
	Start  int
	End    int
	Scopes []string
}

// HasScope reports whether the token carries the exact scope label.
func (t Token) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Text returns the token's substring of line, clamped to the line bounds.
func (t Token) Text(line string) string {
	start, end := t.Start, t.End
	if start < 0 {
		start = 0
	}
	if end > len(line) {
		end = len(line)
	}
	if start >= end {
		return ""
	}
	return line[start:end]
}

// TokenizeLine scans one line into an ordered, non-overlapping token
// sequence. Whitespace between tokens is not covered. A comment runs to the
// end of the line and is always the final token.
func TokenizeLine(line string) []Token {
	var tokens []Token
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case isCommentStart(line, i):
			tokens = append(tokens, Token{Start: i, End: len(line), Scopes: []string{ScopeComment}})
			return tokens
		case c == '<':
			var network []Token
			i, network = scanNetwork(line, i)
			tokens = append(tokens, network...)
		case c == ',':
			tokens = append(tokens, Token{Start: i, End: i + 1, Scopes: []string{ScopeTagSeparator}})
			i++
		case c == '(' || c == ')':
			tokens = append(tokens, Token{Start: i, End: i + 1, Scopes: []string{ScopeGroup}})
			i++
		default:
			start := i
			for i < len(line) && !isTagBoundary(line, i) {
				i++
			}
			tokens = append(tokens, Token{Start: start, End: i, Scopes: []string{ScopeTag}})
		}
	}
	return tokens
}

func isCommentStart(line string, i int) bool {
	if line[i] == '#' {
		return true
	}
	return line[i] == '/' && i+1 < len(line) && line[i+1] == '/'
}

func isTagBoundary(line string, i int) bool {
	switch line[i] {
	case ' ', '\t', ',', '(', ')', '<':
		return true
	}
	return isCommentStart(line, i)
}

func netScopes(scope string) []string {
	return []string{ScopeNetwork, scope}
}

// scanNetwork tokenizes an extra network reference from its opening angle
// bracket: <type:model> or <type:model:weight>. A reference cut off by the
// end of the line, as happens while it is being typed, still yields tokens
// for the segments that exist.
func scanNetwork(line string, start int) (int, []Token) {
	tokens := []Token{{Start: start, End: start + 1, Scopes: netScopes(ScopeNetworkBegin)}}
	segment := 0
	i := start + 1
	for i < len(line) {
		switch line[i] {
		case ':':
			tokens = append(tokens, Token{Start: i, End: i + 1, Scopes: netScopes(ScopeSeparator)})
			segment++
			i++
		case '>':
			tokens = append(tokens, Token{Start: i, End: i + 1, Scopes: netScopes(ScopeNetworkEnd)})
			return i + 1, tokens
		default:
			first := i
			for i < len(line) && line[i] != ':' && line[i] != '>' {
				i++
			}
			scope := ScopeNetworkType
			if segment == 1 {
				scope = ScopeNetworkModel
			} else if segment >= 2 {
				scope = ScopeWeight
			}
			tokens = append(tokens, Token{Start: first, End: i, Scopes: netScopes(scope)})
		}
	}
	return i, tokens
}
