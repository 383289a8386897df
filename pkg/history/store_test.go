package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans", "history.json")

	s, err := Open(path, 0)
	require.NoError(t, err)
	assert.Zero(t, s.Len())

	saved, err := s.Save(Record{Value: "TABLE-12", Format: "QR_CODE", Type: "text"})
	require.NoError(t, err)
	_, err = uuid.Parse(saved.ID)
	assert.NoError(t, err, "generated id must be a uuid")
	assert.False(t, saved.DetectedAt.IsZero())

	reopened, err := Open(path, 0)
	require.NoError(t, err)
	got, ok := reopened.Get(saved.ID)
	require.True(t, ok)
	assert.Equal(t, "TABLE-12", got.Value)
	assert.True(t, saved.DetectedAt.Equal(got.DetectedAt))
}

func TestRecentNewestFirstAndLimit(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.json"), 3)
	require.NoError(t, err)

	base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	for i, v := range []string{"a", "b", "c", "d"} {
		_, err := s.Save(Record{Value: v, DetectedAt: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, s.Len(), "oldest record is trimmed")

	recent := s.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "d", recent[0].Value)
	assert.Equal(t, "c", recent[1].Value)

	all := s.Recent(0)
	require.Len(t, all, 3)
	assert.Equal(t, "b", all[2].Value)
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path, 0)
	assert.Error(t, err)
}
