package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestReport_Counts(t *testing.T) {
	r := &IngestReport{Results: []FileResult{
		{Name: "a.txt", DocumentID: "1", Chunks: 3},
		{Name: "b.bin", Err: ErrUnsupportedType},
		{Name: "c.txt", Duplicate: true},
		{Name: "d.txt", Err: ErrProviderError},
	}}

	assert.Equal(t, 1, r.Succeeded())
	assert.Equal(t, 2, r.Failed())

	err := r.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.ErrorIs(t, err, ErrProviderError)
	assert.Contains(t, err.Error(), "b.bin")
	assert.Contains(t, err.Error(), "d.txt")
}

func TestIngestReport_NoErrors(t *testing.T) {
	r := &IngestReport{Results: []FileResult{{Name: "a.txt"}}}
	assert.NoError(t, r.Err())
	assert.Equal(t, 0, r.Failed())
}
