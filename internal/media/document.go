package media

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// MaxDocumentChars bounds how much extracted document text flows into
// feature extraction and embedding. Longer documents are truncated before
// any downstream processing.
const MaxDocumentChars = 20000

// ExtractDocumentText reads the text content of a document file, picking
// the reader by extension: plain read for .txt/.md, structured extraction
// for .pdf and .docx. The result is truncated to MaxDocumentChars.
func ExtractDocumentText(path string) (string, error) {
	var (
		text string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = extractPDFText(path)
	case ".docx":
		text, err = extractDocxText(path)
	default:
		text, err = extractPlainText(path)
	}
	if err != nil {
		return "", err
	}

	return Truncate(text, MaxDocumentChars), nil
}

// Truncate bounds s to at most max bytes without splitting a UTF-8 rune:
// the cut backs off to the nearest rune boundary so downstream feature
// extraction never sees a trailing invalid byte.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func extractPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", path, err)
	}
	return string(data), nil
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %w", path, err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, r); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", path, err)
	}
	return sb.String(), nil
}

// extractDocxText pulls visible text out of the main document part of a
// Word archive. Only w:t runs matter; paragraph boundaries become
// newlines.
func extractDocxText(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx %s: %w", path, err)
	}
	defer func() { _ = archive.Close() }()

	var doc *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("docx %s: missing word/document.xml", path)
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open docx body %s: %w", path, err)
	}
	defer func() { _ = rc.Close() }()

	var sb strings.Builder
	decoder := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx body %s: %w", path, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
