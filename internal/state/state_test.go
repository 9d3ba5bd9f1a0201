package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCursor(t *testing.T) {
	st := newTestStore(t)

	cursor, err := st.Cursor("dbid:abc")
	require.NoError(t, err)
	assert.Equal(t, "", cursor)

	require.NoError(t, st.SetCursor("dbid:abc", "c1"))
	require.NoError(t, st.SetCursor("dbid:abc", "c2"))
	require.NoError(t, st.SetCursor("dbid:other", "z"))

	cursor, err = st.Cursor("dbid:abc")
	require.NoError(t, err)
	assert.Equal(t, "c2", cursor)
}

func TestReopenKeepsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.SetValue("k", "v"))
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()
	v, err := st.GetValue("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestRuns(t *testing.T) {
	st := newTestStore(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, st.RecordRun(RunRecord{
			ID:         id,
			Source:     "local",
			Trigger:    "manual",
			Started:    base.Add(time.Duration(i) * time.Hour),
			Finished:   base.Add(time.Duration(i)*time.Hour + time.Minute),
			Candidates: 3,
			Processed:  i,
		}))
	}
	require.NoError(t, st.RecordRun(RunRecord{ID: "r2", Source: "cloud", Started: base.Add(time.Hour), Finished: base.Add(2 * time.Hour), Error: "source unavailable"}))

	runs, err := st.RecentRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, 2, runs[0].Processed)
	assert.True(t, base.Add(2*time.Hour).Equal(runs[0].Started))
	assert.Equal(t, "r2", runs[1].ID)
	assert.Equal(t, "cloud", runs[1].Source)
	assert.Equal(t, "source unavailable", runs[1].Error)

	runs, err = st.RecentRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}
