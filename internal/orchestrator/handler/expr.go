package handler

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenReference tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
)

// exprToken is one alternative of a fallback chain: either a $-reference
// (text holds the raw path) or a parsed literal (value holds it).
type exprToken struct {
	kind  tokenKind
	text  string
	value any
}

// tokenizeFallbackChain splits a fallback expression on || and classifies
// each alternative. Empty alternatives are dropped.
func tokenizeFallbackChain(expr string) []exprToken {
	alternatives := splitFallbackChain(expr)
	tokens := make([]exprToken, 0, len(alternatives))
	for _, alternative := range alternatives {
		alternative = strings.TrimSpace(alternative)
		if alternative == "" {
			continue
		}
		tokens = append(tokens, classifyAlternative(alternative))
	}
	return tokens
}

// splitFallbackChain splits on || separators that sit outside quoted
// literals, so a || inside "..." or '...' stays part of its alternative.
func splitFallbackChain(expr string) []string {
	alternatives := make([]string, 0, 2)
	var quote byte
	start := 0
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '|' && i+1 < len(expr) && expr[i+1] == '|':
			alternatives = append(alternatives, expr[start:i])
			i++
			start = i + 1
		}
	}
	return append(alternatives, expr[start:])
}

func classifyAlternative(alternative string) exprToken {
	if strings.HasPrefix(alternative, "$") {
		return exprToken{kind: tokenReference, text: alternative}
	}
	if len(alternative) >= 2 {
		first, last := alternative[0], alternative[len(alternative)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return exprToken{kind: tokenString, value: alternative[1 : len(alternative)-1]}
		}
	}
	switch alternative {
	case "true":
		return exprToken{kind: tokenBool, value: true}
	case "false":
		return exprToken{kind: tokenBool, value: false}
	case "null", "none", "None":
		return exprToken{kind: tokenNull, value: nil}
	}
	if number, ok := parseNumber(alternative); ok {
		return exprToken{kind: tokenNumber, value: number}
	}
	// bare words count as unquoted string literals
	return exprToken{kind: tokenString, value: alternative}
}

// parseNumber parses integral literals to int64 and everything else to
// float64, mirroring how JSON-decoded request data carries numbers.
func parseNumber(text string) (any, bool) {
	if integer, err := strconv.ParseInt(text, 10, 64); err == nil {
		return integer, true
	}
	if float, err := strconv.ParseFloat(text, 64); err == nil {
		return float, true
	}
	return nil, false
}

// templateSegment is one piece of a response template string: literal text
// or the path inside a {path} placeholder.
type templateSegment struct {
	placeholder bool
	text        string
}

// tokenizeTemplate splits a template string into text and placeholder
// segments. An unterminated brace is kept as literal text.
func tokenizeTemplate(template string) []templateSegment {
	segments := make([]templateSegment, 0, 2)
	remaining := template
	for {
		start := strings.Index(remaining, "{")
		if start < 0 {
			break
		}
		length := strings.Index(remaining[start:], "}")
		if length < 0 {
			break
		}
		if start > 0 {
			segments = append(segments, templateSegment{text: remaining[:start]})
		}
		segments = append(segments, templateSegment{placeholder: true, text: remaining[start+1 : start+length]})
		remaining = remaining[start+length+1:]
	}
	if remaining != "" {
		segments = append(segments, templateSegment{text: remaining})
	}
	return segments
}
