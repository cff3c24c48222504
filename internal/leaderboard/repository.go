package leaderboard

import (
	"sync"
)

// Ledger 是只追加的完成账本。
// 追加顺序就是真实的解出顺序：引擎在持有用户的按键锁时调用 Append，
// 因此同一个用户不可能产生两条记录。
type Ledger struct {
	mu      sync.RWMutex
	entries []Completion
}

// NewLedger 创建一个空账本。
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append 向账本追加一条完成记录。
func (l *Ledger) Append(entry Completion) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Snapshot 返回账本的一份一致性副本，按追加顺序排列（最早解出的在前）。
// 读取方永远不会观察到写入了一半的条目。
func (l *Ledger) Snapshot() []Completion {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Completion, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len 返回账本中的条目数。
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// RemoveByUsername 删除某个用户的完成记录，其余条目保持原有顺序。
// 只在删除用户时调用，返回是否确实存在这样一条记录。
func (l *Ledger) RemoveByUsername(username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, entry := range l.entries {
		if entry.Username == username {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// MarkPersisted 把一次成功快照中数据库分配的ID回填到账本。
// 按用户名匹配，只回填尚未持久化的条目；带ID的条目在后续快照中
// 不会再被发送。
func (l *Ledger) MarkPersisted(persisted []Completion) {
	ids := make(map[string]uint, len(persisted))
	for _, entry := range persisted {
		if entry.ID != 0 {
			ids[entry.Username] = entry.ID
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].ID != 0 {
			continue
		}
		if id, ok := ids[l.entries[i].Username]; ok {
			l.entries[i].ID = id
		}
	}
}

// Restore 在启动时用持久化的记录重建账本。
// 调用方负责保证传入的切片已按解出时间排序。
func (l *Ledger) Restore(entries []Completion) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make([]Completion, len(entries))
	copy(l.entries, entries)
}
