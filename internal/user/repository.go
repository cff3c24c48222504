package user

import (
	"hash/fnv"
	"sync"
)

// shardCount 是注册表的分片数。必须是2的幂。
const shardCount = 32

// shard 是注册表的一个分片。分片锁就是其中所有用户的按键锁：
// 同一个用户的操作被串行化，不同分片上的用户互不阻塞。
type shard struct {
	mu    sync.Mutex
	users map[string]*User
}

// Registry 是按用户名分片的并发内存注册表。
// 暴力猜测意味着同一个用户会有大量并发请求，所以这里刻意不用
// 单个全局锁，而是把锁的粒度降到分片，保持跨用户的并行度。
type Registry struct {
	shards [shardCount]shard

	// 自上次快照以来发生变化/被删除的用户名，供增量备份消费
	dirtyMu sync.Mutex
	dirty   map[string]struct{}
	deleted map[string]struct{}
}

// NewRegistry 创建一个空的注册表。
func NewRegistry() *Registry {
	r := &Registry{
		dirty:   make(map[string]struct{}),
		deleted: make(map[string]struct{}),
	}
	for i := range r.shards {
		r.shards[i].users = make(map[string]*User)
	}
	return r
}

func (r *Registry) shardFor(username string) *shard {
	h := fnv.New32a()
	h.Write([]byte(username))
	return &r.shards[h.Sum32()&(shardCount-1)]
}

// InsertIfAbsent 原子地插入一个新用户。
// 如果用户名已存在则返回false，注册表保持不变。
func (r *Registry) InsertIfAbsent(u *User) bool {
	s := r.shardFor(u.Username)
	s.mu.Lock()
	if _, exists := s.users[u.Username]; exists {
		s.mu.Unlock()
		return false
	}
	s.users[u.Username] = u
	s.mu.Unlock()

	r.markDirty(u.Username)
	return true
}

// Restore 在启动时插入一个从SQLite恢复的用户，不产生脏标记。
func (r *Registry) Restore(u *User) bool {
	s := r.shardFor(u.Username)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.Username]; exists {
		return false
	}
	s.users[u.Username] = u
	return true
}

// Get 返回某个用户当前状态的一份只读快照。
func (r *Registry) Get(username string) (User, bool) {
	s := r.shardFor(username)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// Update 在持有按键锁的情况下原地修改一个用户。
// fn 执行期间，同一分片上的其他操作都会等待，因此fn内部的
// “检查-然后-写入”序列对这个用户来说是原子的。fn不得再去获取
// 注册表的其他锁。
func (r *Registry) Update(username string, fn func(*User)) bool {
	s := r.shardFor(username)
	s.mu.Lock()
	u, ok := s.users[username]
	if !ok {
		s.mu.Unlock()
		return false
	}
	fn(u)
	s.mu.Unlock()

	r.markDirty(username)
	return true
}

// Delete 移除一个用户并返回其最终状态的副本。
func (r *Registry) Delete(username string) (User, bool) {
	s := r.shardFor(username)
	s.mu.Lock()
	u, ok := s.users[username]
	if !ok {
		s.mu.Unlock()
		return User{}, false
	}
	removed := *u
	delete(s.users, username)
	s.mu.Unlock()

	r.markDeleted(username)
	return removed, true
}

// Len 返回注册表中的用户数。
func (r *Registry) Len() int {
	total := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		total += len(s.users)
		s.mu.Unlock()
	}
	return total
}

// Snapshot 逐个分片地复制所有用户状态。
// 它不是一个跨分片的一致性视点，但每个用户自身的快照都是完整的，
// 这对状态页和缓存预热来说已经足够。
func (r *Registry) Snapshot() []User {
	out := make([]User, 0, r.Len())
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for _, u := range s.users {
			out = append(out, *u)
		}
		s.mu.Unlock()
	}
	return out
}

// --- 脏标记，供增量快照消费 ---

// markDirty 不清除删除标记：同名重新创建的用户需要先删掉旧uuid的
// 行再写入新行，两个标记共同描述下一次快照要做的事。
func (r *Registry) markDirty(username string) {
	r.dirtyMu.Lock()
	defer r.dirtyMu.Unlock()
	r.dirty[username] = struct{}{}
}

func (r *Registry) markDeleted(username string) {
	r.dirtyMu.Lock()
	defer r.dirtyMu.Unlock()
	delete(r.dirty, username)
	r.deleted[username] = struct{}{}
}

// TakeDirty 原子地取走并清空当前的脏集合与删除集合。
// 快照失败时调用方必须用 RequeueDirty 把它们归还，否则增量会丢失。
func (r *Registry) TakeDirty() (dirty []string, deleted []string) {
	r.dirtyMu.Lock()
	defer r.dirtyMu.Unlock()
	dirty = make([]string, 0, len(r.dirty))
	for name := range r.dirty {
		dirty = append(dirty, name)
	}
	deleted = make([]string, 0, len(r.deleted))
	for name := range r.deleted {
		deleted = append(deleted, name)
	}
	r.dirty = make(map[string]struct{})
	r.deleted = make(map[string]struct{})
	return dirty, deleted
}

// RequeueDirty 把一次失败的快照消费的集合合并回来。
// 两个集合都无条件并回：被删除后又用同名重新创建的用户会同时带着
// 两个标记，下一次快照先删旧行再写新行。已不在注册表里的脏标记
// 由 DirtyRecords 的存在性检查过滤，不会产生虚假的行。
func (r *Registry) RequeueDirty(dirty []string, deleted []string) {
	r.dirtyMu.Lock()
	defer r.dirtyMu.Unlock()
	for _, name := range deleted {
		r.deleted[name] = struct{}{}
	}
	for _, name := range dirty {
		r.dirty[name] = struct{}{}
	}
}
