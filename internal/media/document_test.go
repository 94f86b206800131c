package media

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDocumentText_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("meeting notes about quarterly planning"), 0o644))

	text, err := ExtractDocumentText(path)
	require.NoError(t, err)
	assert.Equal(t, "meeting notes about quarterly planning", text)
}

func TestExtractDocumentText_Markdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readme.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n\nBody text."), 0o644))

	text, err := ExtractDocumentText(path)
	require.NoError(t, err)
	assert.Contains(t, text, "Body text.")
}

func TestExtractDocumentText_TruncatesLongDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	long := strings.Repeat("a", MaxDocumentChars+5000)
	require.NoError(t, os.WriteFile(path, []byte(long), 0o644))

	text, err := ExtractDocumentText(path)
	require.NoError(t, err)
	assert.Len(t, text, MaxDocumentChars)
}

func TestExtractDocumentText_Docx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.docx")
	writeDocx(t, path, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	text, err := ExtractDocumentText(path)
	require.NoError(t, err)
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second paragraph.")
}

func TestExtractDocumentText_DocxMissingBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = ExtractDocumentText(path)
	assert.Error(t, err)
}

func TestExtractDocumentText_MissingFile(t *testing.T) {
	_, err := ExtractDocumentText("/nonexistent/file.txt")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abcd", 2))
	assert.Equal(t, "", Truncate("", 5))
}

func TestTruncate_NeverSplitsRunes(t *testing.T) {
	// "é" is two bytes; a byte cut at 2 would land inside it.
	assert.Equal(t, "a", Truncate("aé", 2))
	assert.Equal(t, "aé", Truncate("aé", 3))
	assert.Equal(t, "日本", Truncate("日本語", 7))

	long := strings.Repeat("ü", MaxDocumentChars)
	out := Truncate(long, MaxDocumentChars)
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), MaxDocumentChars)
}

func writeDocx(t *testing.T, path, documentXML string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}
