package application

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/continuity/internal/domain"
)

func TestCompressCollapsesWhitespace(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "one two three", compress("  one\t\ttwo\n\n  three ", 100))
}

func TestCompressTruncatesAtRuneBoundary(t *testing.T) {
	t.Parallel()
	content := strings.Repeat("é", 50)
	got := compress(content, 10)
	assert.Equal(t, strings.Repeat("é", 10)+" [truncated]", got)
}

func TestCompressShortContentUntouched(t *testing.T) {
	t.Parallel()
	got := compress("short", 2000)
	assert.Equal(t, "short", got)
	assert.NotContains(t, got, "[truncated]")
}

func testBundle() domain.ContextBundle {
	return domain.ContextBundle{
		Strategy: StrategyStandard,
		Query:    "storage decision",
		Items: []domain.ContextItem{
			{Type: ProviderSession, ID: "1", Title: "Active session", Content: "alpha  beta", Priority: 0.8},
			{Type: ProviderBoundary, ID: "2", Title: "Boundary state", Content: "gamma", Priority: 0.6},
		},
		Success:     true,
		GeneratedAt: time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC),
	}
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()
	out, err := Render(testBundle(), FormatMarkdown, 0)
	require.NoError(t, err)
	assert.Contains(t, out, "# Context (standard)")
	assert.Contains(t, out, "## Active session\n\nalpha beta")
	assert.Contains(t, out, "## Boundary state")
}

func TestRenderEmptyFormatDefaultsToMarkdown(t *testing.T) {
	t.Parallel()
	out, err := Render(testBundle(), "", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Context"))
}

func TestRenderText(t *testing.T) {
	t.Parallel()
	out, err := Render(testBundle(), FormatText, 0)
	require.NoError(t, err)
	assert.Contains(t, out, "ACTIVE SESSION\n"+strings.Repeat("-", len("ACTIVE SESSION"))+"\nalpha beta")
	assert.Contains(t, out, "BOUNDARY STATE")
}

func TestRenderJSON(t *testing.T) {
	t.Parallel()
	out, err := Render(testBundle(), FormatJSON, 0)
	require.NoError(t, err)

	var decoded domain.ContextBundle
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "standard", decoded.Strategy)
	require.Len(t, decoded.Items, 2)
	assert.Equal(t, "alpha beta", decoded.Items[0].Content, "content compressed in JSON output too")
}

func TestRenderJSONDoesNotMutateBundle(t *testing.T) {
	t.Parallel()
	bundle := testBundle()
	bundle.Items[0].Content = strings.Repeat("x", 30)

	_, err := Render(bundle, FormatJSON, 10)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 30), bundle.Items[0].Content)
}

func TestRenderUnsupportedFormat(t *testing.T) {
	t.Parallel()
	_, err := Render(testBundle(), "yaml", 0)
	assert.Error(t, err)
}

func TestRenderTruncationWithCustomLimit(t *testing.T) {
	t.Parallel()
	bundle := testBundle()
	bundle.Items = bundle.Items[:1]
	bundle.Items[0].Content = strings.Repeat("a", 50)

	out, err := Render(bundle, FormatMarkdown, 10)
	require.NoError(t, err)
	assert.Contains(t, out, strings.Repeat("a", 10)+" [truncated]")
}
