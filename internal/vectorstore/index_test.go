package vectorstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEntries(t *testing.T) {
	entries := make([]Entry, 250)

	chunks := chunkEntries(entries, 100)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 50)

	assert.Nil(t, chunkEntries(nil, 100))

	// Invalid size falls back to the default.
	chunks = chunkEntries(entries, 0)
	require.Len(t, chunks, 3)
}

func TestBatchUpsertError(t *testing.T) {
	cause := errors.New("disk full")
	err := &BatchUpsertError{
		Succeeded:   []int{0, 1},
		FailedBatch: 2,
		Err:         cause,
	}

	assert.Contains(t, err.Error(), "batch 2")
	assert.Contains(t, err.Error(), "2 batches committed")
	assert.ErrorIs(t, err, cause)

	var batchErr *BatchUpsertError
	require.ErrorAs(t, error(err), &batchErr)
	assert.Equal(t, []int{0, 1}, batchErr.Succeeded)
}
