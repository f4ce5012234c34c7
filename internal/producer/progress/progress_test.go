package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Clone(t *testing.T) {
	lastProcessed := int64(12)
	changeID := int64(500)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(time.Hour)

	orig := &Record{
		TypeID:              915,
		Mode:                ModeUpdates,
		LastProcessedID:     &lastProcessed,
		ChangeID:            &changeID,
		BackfillStartedAt:   &started,
		BackfillCompletedAt: &completed,
		LastError:           "previous failure",
		UpdatedAt:           completed,
	}

	clone := orig.Clone()
	require.Equal(t, orig, clone)

	// Mutating the clone's pointer fields must not touch the original.
	*clone.LastProcessedID = 99
	*clone.ChangeID = 999
	clone.Mode = ModeBackfill

	assert.Equal(t, int64(12), *orig.LastProcessedID)
	assert.Equal(t, int64(500), *orig.ChangeID)
	assert.Equal(t, ModeUpdates, orig.Mode)
}

func TestRecord_CloneNil(t *testing.T) {
	var rec *Record
	assert.Nil(t, rec.Clone())
}

func TestRecord_CloneSparse(t *testing.T) {
	clone := (&Record{TypeID: 915, Mode: ModeBackfill}).Clone()
	assert.Nil(t, clone.LastProcessedID)
	assert.Nil(t, clone.ChangeID)
	assert.Nil(t, clone.BackfillStartedAt)
	assert.Nil(t, clone.BackfillCompletedAt)
}
