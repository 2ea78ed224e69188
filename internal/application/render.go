package application

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/bnema/continuity/internal/domain"
)

// RenderFormat selects the output shape of an assembled bundle.
type RenderFormat string

const (
	FormatMarkdown RenderFormat = "markdown"
	FormatText     RenderFormat = "text"
	FormatJSON     RenderFormat = "json"
)

// DefaultCompressionMaxLen caps a single item's rendered content.
const DefaultCompressionMaxLen = 2000

const truncationMarker = " [truncated]"

var whitespaceRuns = regexp.MustCompile(`\s+`)

// compress collapses whitespace runs and hard-truncates to maxLen runes,
// appending an explicit marker. Compression happens only at render time so
// cached and validated items keep their original content.
func compress(content string, maxLen int) string {
	collapsed := strings.TrimSpace(whitespaceRuns.ReplaceAllString(content, " "))
	if maxLen <= 0 {
		maxLen = DefaultCompressionMaxLen
	}
	runes := []rune(collapsed)
	if len(runes) <= maxLen {
		return collapsed
	}
	return string(runes[:maxLen]) + truncationMarker
}

// Render produces the bundle in the requested format. The item list is
// expected to be validated and sorted already; rendering only compresses and
// shapes it.
func Render(bundle domain.ContextBundle, format RenderFormat, maxLen int) (string, error) {
	switch format {
	case FormatMarkdown, "":
		return renderMarkdown(bundle, maxLen), nil
	case FormatText:
		return renderText(bundle, maxLen), nil
	case FormatJSON:
		return renderJSON(bundle, maxLen)
	default:
		return "", fmt.Errorf("unsupported render format %q", format)
	}
}

func renderMarkdown(bundle domain.ContextBundle, maxLen int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Context (%s)\n", bundle.Strategy)
	for _, item := range bundle.Items {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", item.Title, compress(item.Content, maxLen))
	}
	return b.String()
}

func renderText(bundle domain.ContextBundle, maxLen int) string {
	var b strings.Builder
	for i, item := range bundle.Items {
		if i > 0 {
			b.WriteString("\n")
		}
		title := strings.ToUpper(item.Title)
		b.WriteString(title)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", len(title)))
		b.WriteString("\n")
		b.WriteString(compress(item.Content, maxLen))
		b.WriteString("\n")
	}
	return b.String()
}

func renderJSON(bundle domain.ContextBundle, maxLen int) (string, error) {
	out := cloneBundle(bundle)
	for i := range out.Items {
		out.Items[i].Content = compress(out.Items[i].Content, maxLen)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode bundle: %w", err)
	}
	return string(data), nil
}
