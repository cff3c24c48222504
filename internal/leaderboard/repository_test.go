package leaderboard

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(username string, offset time.Duration) Completion {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return Completion{
		Username:        username,
		SolvedAt:        base.Add(offset),
		TimeToSolve:     offset,
		AttemptsToSolve: 10,
	}
}

func TestLedgerAppendPreservesOrder(t *testing.T) {
	l := NewLedger()
	l.Append(newEntry("alice", time.Minute))
	l.Append(newEntry("bob", 2*time.Minute))
	l.Append(newEntry("carol", 3*time.Minute))

	entries := l.Snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, "alice", entries[0].Username)
	assert.Equal(t, "bob", entries[1].Username)
	assert.Equal(t, "carol", entries[2].Username)
	assert.Equal(t, 3, l.Len())
}

func TestLedgerSnapshotIsCopy(t *testing.T) {
	l := NewLedger()
	l.Append(newEntry("alice", time.Minute))

	snapshot := l.Snapshot()
	l.Append(newEntry("bob", 2*time.Minute))

	// 先前的快照不会被后续追加改变
	assert.Len(t, snapshot, 1)
	assert.Equal(t, 2, l.Len())

	snapshot[0].Username = "mallory"
	assert.Equal(t, "alice", l.Snapshot()[0].Username)
}

func TestLedgerRemoveByUsername(t *testing.T) {
	l := NewLedger()
	l.Append(newEntry("alice", time.Minute))
	l.Append(newEntry("bob", 2*time.Minute))
	l.Append(newEntry("carol", 3*time.Minute))

	assert.True(t, l.RemoveByUsername("bob"))
	assert.False(t, l.RemoveByUsername("bob"))

	// 其余条目保持原有顺序
	entries := l.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].Username)
	assert.Equal(t, "carol", entries[1].Username)
}

func TestLedgerConcurrentAppends(t *testing.T) {
	l := NewLedger()

	const goroutines = 100
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			l.Append(newEntry(fmt.Sprintf("user%03d", i), time.Duration(i)*time.Second))
		}(i)
	}
	wg.Wait()

	entries := l.Snapshot()
	require.Len(t, entries, goroutines)
	seen := make(map[string]struct{}, goroutines)
	for _, entry := range entries {
		seen[entry.Username] = struct{}{}
	}
	assert.Len(t, seen, goroutines)
}

func TestLedgerMarkPersisted(t *testing.T) {
	l := NewLedger()
	l.Append(newEntry("alice", time.Minute))
	l.Append(newEntry("bob", 2*time.Minute))

	persisted := l.Snapshot()
	persisted[0].ID = 11
	persisted[1].ID = 12
	l.MarkPersisted(persisted)

	entries := l.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, uint(11), entries[0].ID)
	assert.Equal(t, uint(12), entries[1].ID)

	// 已经带ID的条目不会被改写
	persisted[0].ID = 99
	l.MarkPersisted(persisted)
	assert.Equal(t, uint(11), l.Snapshot()[0].ID)

	// 新追加的条目不受此前回填影响
	l.Append(newEntry("carol", 3*time.Minute))
	assert.Zero(t, l.Snapshot()[2].ID)
}

func TestLedgerRestore(t *testing.T) {
	l := NewLedger()
	l.Append(newEntry("stale", time.Minute))

	l.Restore([]Completion{
		newEntry("alice", time.Minute),
		newEntry("bob", 2*time.Minute),
	})

	entries := l.Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].Username)
	assert.Equal(t, "bob", entries[1].Username)
}
