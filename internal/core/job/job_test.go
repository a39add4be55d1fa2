package job

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	j := New("invoice.pdf", FormatCSV)

	assert.True(t, strings.HasPrefix(j.ID, "job_"))
	assert.Len(t, j.ID, 12)
	assert.Equal(t, "invoice.pdf", j.Filename)
	assert.Equal(t, j.ID+"_invoice.pdf", j.StoredName)
	assert.Equal(t, FormatCSV, j.Format)
	assert.Equal(t, StatusPending, j.Status)
	assert.False(t, j.CreatedAt.IsZero())
	assert.False(t, j.Terminal())
}

func TestNewUniqueIDs(t *testing.T) {
	a := New("a.pdf", FormatXLSX)
	b := New("a.pdf", FormatXLSX)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.StoredName, b.StoredName)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatXLSX, false},
		{"csv", FormatCSV, false},
		{"xlsx", FormatXLSX, false},
		{"pdf", "", true},
		{"CSV", "", true},
	}
	for _, tt := range tests {
		t.Run("format "+tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatExtension(t *testing.T) {
	assert.Equal(t, ".csv", FormatCSV.Extension())
	assert.Equal(t, ".xlsx", FormatXLSX.Extension())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusProcessing))
	assert.True(t, CanTransition(StatusPending, StatusFailed))
	assert.True(t, CanTransition(StatusProcessing, StatusCompleted))
	assert.True(t, CanTransition(StatusProcessing, StatusFailed))
	assert.False(t, CanTransition(StatusCompleted, StatusProcessing))
	assert.False(t, CanTransition(StatusFailed, StatusPending))
	assert.False(t, CanTransition(StatusPending, StatusCompleted))
}

func TestTerminal(t *testing.T) {
	assert.True(t, (&Job{Status: StatusCompleted}).Terminal())
	assert.True(t, (&Job{Status: StatusFailed}).Terminal())
	assert.False(t, (&Job{Status: StatusProcessing}).Terminal())
}
