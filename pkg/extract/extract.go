// Package extract turns uploaded files into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("file is empty")
	ErrNoText          = errors.New("could not extract text from file")
)

// Extractor maps lowercase file extensions to parsers.
type Extractor struct {
	parsers map[string]func([]byte) (string, error)
}

func New(allowed []string) *Extractor {
	all := map[string]func([]byte) (string, error){
		".pdf": parsePDF,
		".txt": parsePlain,
		".md":  parseMarkdown,
	}

	e := &Extractor{parsers: make(map[string]func([]byte) (string, error))}
	for _, ext := range allowed {
		ext = strings.ToLower(ext)
		if fn, ok := all[ext]; ok {
			e.parsers[ext] = fn
		}
	}
	return e
}

func (e *Extractor) Supports(filename string) bool {
	_, ok := e.parsers[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract returns the text of data, choosing the parser from filename's
// extension. The result is never blank when err is nil.
func (e *Extractor) Extract(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	parse, ok := e.parsers[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}

	text, err := parse(data)
	if err != nil {
		return "", err
	}
	text = sanitizeUTF8(text)
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

// FileType is the extension without the dot, as stored on documents.
func FileType(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

func parsePlain(data []byte) (string, error) {
	return string(data), nil
}

// parseMarkdown keeps the markdown source but drops inline HTML tags,
// which only add noise to keyword matching.
func parseMarkdown(data []byte) (string, error) {
	if !bytes.ContainsRune(data, '<') {
		return string(data), nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse markdown html: %w", err)
	}
	doc.Find("script, style").Remove()
	return doc.Text(), nil
}

func parsePDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
