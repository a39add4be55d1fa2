// Package e2e exercises the full stack: HTTP API, store, and the job
// processing worker, against a real in-memory database.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/invoicemill/internal/shell/api"
	"github.com/artpar/invoicemill/internal/shell/store"
	"github.com/artpar/invoicemill/internal/shell/workers"
)

type stack struct {
	store     store.Store
	server    *httptest.Server
	processor *workers.Processor
	uploadDir string
}

func newStack(t *testing.T) *stack {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	uploadDir := t.TempDir()
	handler := api.NewHandler(s, nil, uploadDir)
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	processor := workers.NewProcessor(s, nil, workers.ProcessorConfig{
		UploadDir: uploadDir,
		OutputDir: t.TempDir(),
	}, nil)

	return &stack{
		store:     s,
		server:    server,
		processor: processor,
		uploadDir: uploadDir,
	}
}

func (st *stack) upload(t *testing.T, filename, format string, content []byte) map[string]any {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	if format != "" {
		require.NoError(t, mw.WriteField("format", format))
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(st.server.URL+"/api/v1/jobs", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func (st *stack) getJob(t *testing.T, id string) (int, map[string]any) {
	t.Helper()

	resp, err := http.Get(st.server.URL + "/api/v1/jobs/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &decoded))
	}
	return resp.StatusCode, decoded
}

func TestSmoke_UploadAndStatus(t *testing.T) {
	st := newStack(t)

	created := st.upload(t, "invoice.pdf", "csv", []byte("%PDF-1.4 minimal"))
	id, ok := created["id"].(string)
	require.True(t, ok)
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, "csv", created["format"])

	code, fetched := st.getJob(t, id)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "invoice.pdf", fetched["filename"])
}

func TestSmoke_ProcessingFailureSurfacesOnJob(t *testing.T) {
	st := newStack(t)

	// An upload that is not a parseable document must fail the job, not
	// wedge the queue.
	created := st.upload(t, "broken.pdf", "", []byte("definitely not a pdf"))
	id := created["id"].(string)

	require.NoError(t, st.processor.ProcessOnce(context.Background()))

	code, fetched := st.getJob(t, id)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "failed", fetched["status"])
	assert.NotEmpty(t, fetched["error_message"])

	// The download endpoint reflects the terminal state
	resp, err := http.Get(st.server.URL + "/api/v1/jobs/" + id + "/download")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSmoke_DeleteRemovesJob(t *testing.T) {
	st := newStack(t)

	created := st.upload(t, "invoice.pdf", "xlsx", []byte("%PDF-1.4 minimal"))
	id := created["id"].(string)

	req, err := http.NewRequest(http.MethodDelete, st.server.URL+"/api/v1/jobs/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	code, _ := st.getJob(t, id)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSmoke_ListPagination(t *testing.T) {
	st := newStack(t)

	for i := 0; i < 3; i++ {
		st.upload(t, fmt.Sprintf("invoice-%d.pdf", i), "", []byte("%PDF-1.4"))
	}

	resp, err := http.Get(st.server.URL + "/api/v1/jobs?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed struct {
		Jobs  []map[string]any `json:"jobs"`
		Total int              `json:"total"`
		Limit int              `json:"limit"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	assert.Len(t, listed.Jobs, 2)
	assert.Equal(t, 3, listed.Total)
	assert.Equal(t, 2, listed.Limit)
}
