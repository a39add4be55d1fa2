package pdf

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/invoicemill/internal/core/invoice"
)

// The parser needs random access to the document, so Read takes an
// io.ReaderAt rather than a stream.
var _ func(context.Context, io.ReaderAt) ([]invoice.Page, error) = NewReader().Read

func TestReadRejectsGarbage(t *testing.T) {
	r := NewReader()
	_, err := r.Read(context.Background(), bytes.NewReader([]byte("not a pdf")))
	require.Error(t, err)
}

func TestReadFileMissing(t *testing.T) {
	r := NewReader()
	_, err := r.ReadFile(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open")
}
