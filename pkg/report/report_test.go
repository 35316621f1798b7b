package report

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostaudit/hostaudit/pkg/sections"
)

var fixedTime = time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)

func testMeta() Metadata {
	return Metadata{
		RunID:       "7c2f0f4e-run",
		Hostname:    "host-a",
		GeneratedAt: fixedTime,
		Duration:    42 * time.Second,
	}
}

// renderRaw renders with compression off so text can be found in the bytes.
func renderRaw(t *testing.T, set *sections.Set, meta Metadata) []byte {
	t.Helper()
	r := New(Config{})
	r.noCompress = true
	raw, err := r.RenderBytes(set, meta)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, []byte("%PDF-")), "missing PDF header")
	return raw
}

func pageCount(t *testing.T, raw []byte) int {
	t.Helper()
	n, err := pdfapi.PageCount(bytes.NewReader(raw), nil)
	require.NoError(t, err)
	return n
}

func TestRenderValidPDF(t *testing.T) {
	set := sections.ParseString("###\n1. Kernel\nLinux x86_64\n###\n2. Users\nroot\n###")
	raw := renderRaw(t, set, testMeta())

	require.NoError(t, pdfapi.Validate(bytes.NewReader(raw), nil))
	assert.Equal(t, 1, pageCount(t, raw))
}

func TestRenderContainsHeadingsAndMetadata(t *testing.T) {
	set := sections.ParseString("1. Linux Kernel Information\nLinux host 6.1.0 x86_64\n###\n2. Users\nroot\nalice\n###\n")
	raw := string(renderRaw(t, set, testMeta()))

	for _, want := range []string{
		"Linux System Audit Report",
		"Section 1: Linux Kernel Information",
		"Section 2: Users",
		"Linux host 6.1.0 x86_64",
		"alice",
		"host-a",
		"2024-03-09T14:30:00Z",
		"7c2f0f4e-run",
		"42.0s",
	} {
		assert.Contains(t, raw, want)
	}
}

func TestRenderSectionOrderFollowsSet(t *testing.T) {
	set := sections.ParseString("9. Nine\nx\n###\n3. Three\ny\n###\n")
	raw := string(renderRaw(t, set, testMeta()))

	nine := strings.Index(raw, "Section 9: Nine")
	three := strings.Index(raw, "Section 3: Three")
	require.NotEqual(t, -1, nine)
	require.NotEqual(t, -1, three)
	assert.Less(t, nine, three)
}

func TestRenderPaginatesLongContent(t *testing.T) {
	var b strings.Builder
	b.WriteString("1. Packages\n")
	for i := 0; i < 600; i++ {
		fmt.Fprintf(&b, "package-%04d 1.0.%d amd64\n", i, i)
	}
	b.WriteString("###\n")

	raw := renderRaw(t, sections.ParseString(b.String()), testMeta())
	require.NoError(t, pdfapi.Validate(bytes.NewReader(raw), nil))
	assert.GreaterOrEqual(t, pageCount(t, raw), 5)
	assert.Contains(t, string(raw), "package-0599")
}

func TestRenderFooterPageNumbers(t *testing.T) {
	var b strings.Builder
	b.WriteString("1. Long\n")
	for i := 0; i < 200; i++ {
		b.WriteString("line\n")
	}
	raw := string(renderRaw(t, sections.ParseString(b.String()), testMeta()))

	n := pageCount(t, []byte(raw))
	require.Greater(t, n, 1)
	assert.Contains(t, raw, fmt.Sprintf("page 1 of %d", n))
	assert.NotContains(t, raw, "{nb}")
}

func TestRenderEmptySet(t *testing.T) {
	raw := renderRaw(t, sections.NewSet(), testMeta())
	require.NoError(t, pdfapi.Validate(bytes.NewReader(raw), nil))
	assert.Contains(t, string(raw), "The audit produced no sections.")
}

func TestRenderEmptySectionPlaceholder(t *testing.T) {
	raw := string(renderRaw(t, sections.ParseString("4. Quiet\n###\n"), testMeta()))
	assert.Contains(t, raw, "Section 4: Quiet")
	assert.Contains(t, raw, emptyContent)
}

func TestRenderIsDeterministic(t *testing.T) {
	set := sections.ParseString("1. A\na\n###\n2. B\nb\n###\n")
	first := renderRaw(t, set, testMeta())
	second := renderRaw(t, set, testMeta())
	assert.True(t, bytes.Equal(first, second), "identical inputs must render identical bytes")

	meta := testMeta()
	meta.GeneratedAt = fixedTime.Add(time.Hour)
	third := renderRaw(t, set, meta)
	assert.False(t, bytes.Equal(first, third))
}

func TestRenderCompressedByDefault(t *testing.T) {
	set := sections.ParseString("1. Heading\nunique-content-marker\n###\n")
	raw, err := New(Config{}).RenderBytes(set, testMeta())
	require.NoError(t, err)
	require.NoError(t, pdfapi.Validate(bytes.NewReader(raw), nil))
	assert.NotContains(t, string(raw), "unique-content-marker")
}

func TestRenderCustomTitle(t *testing.T) {
	r := New(Config{Title: "Quarterly Host Review"})
	r.noCompress = true
	raw, err := r.RenderBytes(sections.NewSet(), testMeta())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Quarterly Host Review")
}

func TestRenderNonLatinText(t *testing.T) {
	set := sections.ParseString("1. Locale\nStraße ✓ café\n###\n")
	raw := renderRaw(t, set, testMeta())
	require.NoError(t, pdfapi.Validate(bytes.NewReader(raw), nil))
	assert.Contains(t, string(raw), "Stra\xdfe ? caf\xe9")
}

func TestRenderBookmarksAreUTF16(t *testing.T) {
	set := sections.ParseString("7. €\ncost\n###\n")
	raw := renderRaw(t, set, testMeta())
	require.NoError(t, pdfapi.Validate(bytes.NewReader(raw), nil))

	want := "/Title (\xfe\xff\x00S\x00e\x00c\x00t\x00i\x00o\x00n\x00 \x007\x00:\x00 \x20\xac)"
	assert.Contains(t, string(raw), want)
	assert.NotContains(t, string(raw), "/Title (Section 7: \x80)")
}

func TestOutlineText(t *testing.T) {
	assert.Equal(t, "\xfe\xff\x00A", outlineText("A"))
	assert.Equal(t, "\xfe\xff\x20\x1c\x00x\x20\x1d", outlineText("“x”"))
	assert.Equal(t, "\xfe\xff\xd8\x3d\xde\x00", outlineText("😀"))
}

func TestEncode(t *testing.T) {
	assert.Equal(t, "plain", encode("plain"))
	assert.Equal(t, "\x80", encode("€"))
	assert.Equal(t, "?", encode("日"))
}

func TestPreformat(t *testing.T) {
	assert.Equal(t, "a   b", preformat("a\tb"))
	assert.Equal(t, "    x\nab  y", preformat("\tx\nab\ty"))
	assert.Equal(t, "esc [0m", preformat("esc\x1b[0m"))
}

func TestRenderZeroTimeUsesNow(t *testing.T) {
	meta := testMeta()
	meta.GeneratedAt = time.Time{}
	raw := renderRaw(t, sections.NewSet(), meta)
	assert.Contains(t, string(raw), fmt.Sprintf("%d-", time.Now().UTC().Year()))
}
