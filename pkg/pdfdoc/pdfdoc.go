// Package pdfdoc extracts text, metadata and preview images from PDF
// documents. It prefers the poppler command line tools when present and
// falls back to a pure Go parser.
package pdfdoc

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"readaloud/pkg/domain"
)

// ErrInvalidPage is returned when a page index falls outside the document.
var ErrInvalidPage = errors.New("page index out of range")

// ErrNoText is returned when a document yields no extractable text.
var ErrNoText = errors.New("no text extracted from pdf")

// PageCount returns the number of pages in the document.
func PageCount(path string) (int, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()
	return reader.NumPage(), nil
}

// PageText extracts the text of a single zero-based page.
func PageText(path string, page int) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	total := reader.NumPage()
	if page < 0 || page >= total {
		return "", fmt.Errorf("%w: page %d of %d", ErrInvalidPage, page, total)
	}

	// pdftotext handles complex layouts and CJK better, try it first.
	if text, err := pageTextWithPdftotext(path, page); err == nil && text != "" {
		return text, nil
	}

	p := reader.Page(page + 1)
	if p.V.IsNull() {
		return "", nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract page %d: %w", page, err)
	}
	return normalizeText(text), nil
}

// AllText extracts the full text of the document.
func AllText(path string) (string, error) {
	if text, err := allTextWithPdftotext(path); err == nil && text != "" {
		return text, nil
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	var parts []string
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely
			continue
		}
		text = normalizeText(text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoText
	}
	return strings.Join(parts, " "), nil
}

// Metadata reads the document information dictionary.
func Metadata(path string) (domain.BookMetadata, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return domain.BookMetadata{}, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return domain.BookMetadata{}, nil
	}
	return domain.BookMetadata{
		Title:        infoString(info, "Title"),
		Author:       infoString(info, "Author"),
		Subject:      infoString(info, "Subject"),
		Creator:      infoString(info, "Creator"),
		Producer:     infoString(info, "Producer"),
		Keywords:     infoString(info, "Keywords"),
		CreationDate: infoString(info, "CreationDate"),
		ModDate:      infoString(info, "ModDate"),
	}, nil
}

func infoString(info pdf.Value, key string) string {
	v := info.Key(key)
	if v.IsNull() || v.Kind() != pdf.String {
		return ""
	}
	return strings.TrimSpace(v.Text())
}

func pageTextWithPdftotext(path string, page int) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("pdftotext not found: %w", err)
	}
	n := strconv.Itoa(page + 1)
	cmd := exec.Command("pdftotext", "-f", n, "-l", n, "-enc", "UTF-8", path, "-")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return normalizeText(string(output)), nil
}

func allTextWithPdftotext(path string) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", fmt.Errorf("pdftotext not found: %w", err)
	}
	cmd := exec.Command("pdftotext", "-enc", "UTF-8", path, "-")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return normalizeText(string(output)), nil
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}
