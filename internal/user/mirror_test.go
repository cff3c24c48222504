package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMirrorStaleView(t *testing.T) {
	m := NewMirror()
	upsert := func(username string, hits uint64) Event {
		return Event{Kind: EventUpsert, View: View{Username: username, TotalHits: hits}}
	}

	assert.False(t, m.staleView(upsert("alice", 1)))
	assert.False(t, m.staleView(upsert("alice", 2)))

	// 乱序到达的旧视图被丢弃，镜像不会退回解出前的状态
	assert.True(t, m.staleView(upsert("alice", 1)))

	// 相同计数的重放仍然写入
	assert.False(t, m.staleView(upsert("alice", 2)))

	// 不同用户的水位互不影响
	assert.False(t, m.staleView(upsert("bob", 1)))

	// 删除清空水位，同名重新创建的用户从零重新开始
	assert.False(t, m.staleView(Event{Kind: EventDelete, View: View{Username: "alice"}}))
	assert.False(t, m.staleView(upsert("alice", 0)))
}

func TestMirrorStaleViewSolveEvent(t *testing.T) {
	m := NewMirror()

	solve := Event{Kind: EventSolve, View: View{Username: "alice", TotalHits: 3}}
	later := Event{Kind: EventUpsert, View: View{Username: "alice", TotalHits: 5}}

	// 解出事件先于更新事件到达时正常推进水位
	assert.False(t, m.staleView(solve))
	assert.False(t, m.staleView(later))

	// 反过来到达时解出事件的视图被判为过期
	m2 := NewMirror()
	assert.False(t, m2.staleView(later))
	assert.True(t, m2.staleView(solve))
}
