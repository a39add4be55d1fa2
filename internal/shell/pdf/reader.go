// Package pdf reads invoice documents and yields per-page text.
package pdf

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/wudi/pdfkit/extractor"
	"github.com/wudi/pdfkit/ir"

	"github.com/artpar/invoicemill/internal/core/invoice"
)

// ErrEncrypted marks documents whose content cannot be read.
var ErrEncrypted = errors.New("document is encrypted")

// Reader extracts page text from PDF documents.
type Reader struct{}

// NewReader returns a Reader.
func NewReader() *Reader {
	return &Reader{}
}

// ReadFile opens a PDF on disk and extracts all page text.
func (r *Reader) ReadFile(ctx context.Context, path string) ([]invoice.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return r.Read(ctx, f)
}

// Read extracts the text of every page, 1-based and in document order.
// Pages without any text are still returned, with empty content, so
// page numbers in downstream records match the document. The parser
// seeks within the document, hence io.ReaderAt.
func (r *Reader) Read(ctx context.Context, src io.ReaderAt) ([]invoice.Page, error) {
	pipe := ir.NewDefault()
	doc, err := pipe.Parse(ctx, src)
	if err != nil {
		return nil, errors.Wrap(err, "parse pdf")
	}

	dec := doc.Decoded()
	if dec == nil {
		return nil, errors.New("pipeline produced no decoded document")
	}

	ext, err := extractor.New(dec)
	if err != nil {
		return nil, errors.Wrap(err, "init extractor")
	}

	meta := ext.ExtractMetadata()
	if meta.Encrypted {
		return nil, ErrEncrypted
	}

	texts, err := ext.ExtractText()
	if err != nil {
		return nil, errors.Wrap(err, "extract text")
	}

	pageCount := meta.PageCount
	for _, pt := range texts {
		if pt.Page+1 > pageCount {
			pageCount = pt.Page + 1
		}
	}

	// The extractor omits pages with no text. Lay the extracted pages
	// onto the full page range so numbering stays monotonic.
	pages := make([]invoice.Page, pageCount)
	for i := range pages {
		pages[i] = invoice.Page{Number: i + 1}
	}
	for _, pt := range texts {
		if pt.Page >= 0 && pt.Page < pageCount {
			pages[pt.Page].Text = pt.Content
		}
	}
	return pages, nil
}
