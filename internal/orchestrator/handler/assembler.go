package handler

import (
	"fmt"
	"strings"

	"github.com/Meesho/BharatMLStack/weaver/internal/registry"
)

// Assemble shapes the final response from the results map. A response
// template wins over the legacy response mapping; with neither configured,
// the primary source's value (when present) or the raw results come back
// unchanged.
func Assemble(endpoint *registry.EndpointConfig, results map[string]any) any {
	if endpoint.ResponseTemplate != nil {
		return renderTemplate(endpoint.ResponseTemplate, results)
	}
	if len(endpoint.ResponseMapping) > 0 {
		return renderMapping(endpoint.ResponseMapping, results)
	}
	if endpoint.PrimarySource != "" {
		if value, ok := results[endpoint.PrimarySource]; ok {
			return value
		}
	}
	return results
}

// renderTemplate walks the template recursively. A string that is exactly
// one {path} placeholder substitutes the resolved value with its type
// preserved; a string mixing placeholders with other text interpolates
// each fragment stringified. Other scalars pass through.
func renderTemplate(template any, results map[string]any) any {
	switch node := template.(type) {
	case map[string]any:
		rendered := make(map[string]any, len(node))
		for key, child := range node {
			rendered[key] = renderTemplate(child, results)
		}
		return rendered
	case []any:
		rendered := make([]any, len(node))
		for i, child := range node {
			rendered[i] = renderTemplate(child, results)
		}
		return rendered
	case string:
		return renderTemplateString(node, results)
	default:
		return node
	}
}

func renderTemplateString(text string, results map[string]any) any {
	segments := tokenizeTemplate(text)
	if len(segments) == 1 && segments[0].placeholder {
		return lookupResultsPath(segments[0].text, results)
	}
	var builder strings.Builder
	for _, segment := range segments {
		if !segment.placeholder {
			builder.WriteString(segment.text)
			continue
		}
		builder.WriteString(stringify(lookupResultsPath(segment.text, results)))
	}
	return builder.String()
}

func stringify(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%v", value)
}

// renderMapping implements the legacy response_mapping mode: target field →
// fallback-chain expression resolved against the results map. Nested maps
// recurse; an expression with no matching alternative omits its target
// field.
func renderMapping(mapping map[string]any, results map[string]any) map[string]any {
	response := make(map[string]any, len(mapping))
	for target, expr := range mapping {
		if nested, ok := expr.(map[string]any); ok {
			response[target] = renderMapping(nested, results)
			continue
		}
		text, ok := expr.(string)
		if !ok {
			continue
		}
		if value, matched := evaluateMappingExpression(text, results); matched {
			response[target] = value
		}
	}
	return response
}

func evaluateMappingExpression(expr string, results map[string]any) (any, bool) {
	for _, token := range tokenizeFallbackChain(expr) {
		if token.kind != tokenReference {
			return token.value, true
		}
		value := lookupResultsPath(strings.TrimPrefix(token.text, "$"), results)
		if !isEmptyValue(value) {
			return value, true
		}
	}
	return nil, false
}
