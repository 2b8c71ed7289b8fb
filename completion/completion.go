// Package completion turns a caret position in a line of prompt text into a
// completion request: either a plain tag or an extra network reference with
// its resolved subtype. It produces requests only; showing and filling the
// suggestion list belongs to the consumer.
package completion

import (
	"strings"

	"github.com/sandmoen/comfyforge/grammar"
)

// Kind classifies what a request completes.
type Kind int

const (
	KindTag Kind = iota
	KindExtraNetwork
)

func (k Kind) String() string {
	if k == KindExtraNetwork {
		return "ExtraNetwork"
	}
	return "Tag"
}

// NetworkType is the extra network subtype resolved from the reference's
// type keyword.
type NetworkType int

const (
	NetworkLora NetworkType = iota
	NetworkLyCORIS
	NetworkEmbedding
)

func (n NetworkType) String() string {
	switch n {
	case NetworkLyCORIS:
		return "LyCORIS"
	case NetworkEmbedding:
		return "Embedding"
	}
	return "Lora"
}

var networkTypes = map[string]NetworkType{
	"lora":      NetworkLora,
	"lyco":      NetworkLyCORIS,
	"embedding": NetworkEmbedding,
}

// Request describes one completion to offer. ReplaceStart and ReplaceEnd are
// document-absolute offsets of the span a chosen suggestion replaces; Text
// is the literal span content typed so far.
type Request struct {
	ReplaceStart int
	ReplaceEnd   int
	Kind         Kind
	Network      *NetworkType
	Text         string
}

// Locate finds the completable token under the caret. lineStart is the
// line's offset in the document, caret is relative to the line. A nil
// request means nothing should be offered.
//
// A token's range contains the caret inclusively on both ends, and the first
// containing token in scan order wins. Any comment token on the line blocks
// completion entirely, wherever the caret is.
func Locate(line string, lineStart, caret int) *Request {
	tokens := grammar.TokenizeLine(line)

	index := -1
	for i := range tokens {
		if tokens[i].HasScope(grammar.ScopeComment) {
			return nil
		}
		if index < 0 && tokens[i].Start <= caret && caret <= tokens[i].End {
			index = i
		}
	}
	if index < 0 {
		return nil
	}
	current := tokens[index]

	start := clamp(lineStart+current.Start, lineStart, lineStart+len(line))
	end := clamp(lineStart+current.End, lineStart, lineStart+len(line))

	// Caret on a separator inside a network reference whose type keyword
	// precedes it: the model name is not there yet, so the request carries
	// empty text and replaces nothing, inserting at the caret.
	if current.HasScope(grammar.ScopeNetwork) && current.HasScope(grammar.ScopeSeparator) && index >= 1 {
		prev := tokens[index-1]
		if prev.HasScope(grammar.ScopeNetwork) && prev.HasScope(grammar.ScopeNetworkType) {
			network, ok := lookupNetworkType(prev.Text(line))
			if !ok {
				return nil
			}
			at := clamp(lineStart+caret, lineStart, lineStart+len(line))
			return &Request{
				ReplaceStart: at,
				ReplaceEnd:   at,
				Kind:         KindExtraNetwork,
				Network:      &network,
			}
		}
	}

	// Caret in a partially typed model name: the type keyword sits two
	// tokens back, past the separator.
	if current.HasScope(grammar.ScopeNetworkModel) {
		if index < 2 {
			return nil
		}
		network, ok := lookupNetworkType(tokens[index-2].Text(line))
		if !ok {
			return nil
		}
		return &Request{
			ReplaceStart: start,
			ReplaceEnd:   end,
			Kind:         KindExtraNetwork,
			Network:      &network,
			Text:         current.Text(line),
		}
	}

	return &Request{
		ReplaceStart: start,
		ReplaceEnd:   end,
		Kind:         KindTag,
		Text:         current.Text(line),
	}
}

func lookupNetworkType(text string) (NetworkType, bool) {
	n, ok := networkTypes[strings.ToLower(strings.TrimSpace(text))]
	return n, ok
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
