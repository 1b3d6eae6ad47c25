package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

// TestPutGet tests the basic upsert and lookup cycle
func TestPutGet(t *testing.T) {
	j := testJournal(t)

	require.NoError(t, j.Put(&Entry{
		MessageID: "1724500000-0",
		Action:    "deploy_agent",
		AgentName: "my-agent",
		BuildID:   "build-42",
	}))

	entry, err := j.Get("1724500000-0")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "deploy_agent", entry.Action)
	assert.Equal(t, "build-42", entry.BuildID)
	assert.False(t, entry.FirstSeen.IsZero())
	assert.False(t, entry.Completed)
}

// TestGetUnknownMessage tests that an unseen message yields nil, not an
// error
func TestGetUnknownMessage(t *testing.T) {
	j := testJournal(t)

	entry, err := j.Get("never-seen")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

// TestPutPreservesFirstSeen tests that updates keep the original
// first-seen stamp
func TestPutPreservesFirstSeen(t *testing.T) {
	j := testJournal(t)

	entry := &Entry{MessageID: "m-1", Action: "deploy_agent"}
	require.NoError(t, j.Put(entry))
	firstSeen := entry.FirstSeen

	time.Sleep(10 * time.Millisecond)
	entry.DeploymentID = "deploy-7"
	entry.Completed = true
	require.NoError(t, j.Put(entry))

	got, err := j.Get("m-1")
	require.NoError(t, err)
	assert.Equal(t, firstSeen.Unix(), got.FirstSeen.Unix())
	assert.True(t, got.UpdatedAt.After(got.FirstSeen) || got.UpdatedAt.Equal(got.FirstSeen))
	assert.True(t, got.Completed)
}

// TestListAndDelete tests enumeration and removal
func TestListAndDelete(t *testing.T) {
	j := testJournal(t)

	require.NoError(t, j.Put(&Entry{MessageID: "m-1", Action: "deploy_agent"}))
	require.NoError(t, j.Put(&Entry{MessageID: "m-2", Action: "update_agent"}))

	entries, err := j.List()
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	require.NoError(t, j.Delete("m-1"))
	entries, err = j.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "m-2", entries[0].MessageID)
}

// TestPrune tests that only completed entries behind the cutoff are
// pruned and open entries always survive
func TestPrune(t *testing.T) {
	j := testJournal(t)

	require.NoError(t, j.Put(&Entry{MessageID: "done-1", Completed: true}))
	require.NoError(t, j.Put(&Entry{MessageID: "open-1"}))
	require.NoError(t, j.Put(&Entry{MessageID: "done-2", Completed: true}))

	// cutoff in the past touches nothing
	pruned, err := j.Prune(time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, pruned)

	// cutoff in the future prunes every completed entry
	pruned, err = j.Prune(time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	remaining, err := j.List()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "open-1", remaining[0].MessageID)
}

// TestCounts tests the open/completed split
func TestCounts(t *testing.T) {
	j := testJournal(t)

	require.NoError(t, j.Put(&Entry{MessageID: "m-1"}))
	require.NoError(t, j.Put(&Entry{MessageID: "m-2", Completed: true}))
	require.NoError(t, j.Put(&Entry{MessageID: "m-3", Completed: true}))

	open, completed, err := j.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1, open)
	assert.Equal(t, 2, completed)
}
