package user

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lukehsiao/find-the-password/internal/leaderboard"
	"github.com/lukehsiao/find-the-password/internal/platform/database"
	"github.com/lukehsiao/find-the-password/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
)

// redisZ 把一条完成记录转换为排行榜 Sorted Set 的成员。
func redisZ(entry *leaderboard.Completion) redis.Z {
	return redis.Z{
		Score:  float64(entry.SolvedAt.UnixMilli()),
		Member: entry.Username,
	}
}

// EventKind 区分镜像事件的种类
type EventKind int

const (
	// EventUpsert 表示某个用户的视图发生了变化
	EventUpsert EventKind = iota
	// EventSolve 表示某个用户第一次解出了挑战
	EventSolve
	// EventDelete 表示某个用户被删除
	EventDelete
)

// Event 是引擎发给镜像工作者的一条更新。
// 视图和完成记录都是值副本，工作者不会再触碰注册表。
type Event struct {
	Kind       EventKind
	View       View
	Completion *leaderboard.Completion
	Totals     Totals
}

// Mirror 是Redis读镜像的单一写入者。
// 引擎通过带缓冲的channel投递事件，猜测路径因此永远不会
// 阻塞在Redis上；镜像只服务读密集的聚合端点，正确性不依赖它。
type Mirror struct {
	events        chan Event
	isShutdown    bool
	shutdownMutex sync.Mutex

	// 每个用户最后写入镜像的TotalHits水位，只由工作者Goroutine访问
	lastTotalHits map[string]uint64
}

// NewMirror 创建镜像工作者。
func NewMirror() *Mirror {
	return &Mirror{
		events:        make(chan Event, 10000),
		lastTotalHits: make(map[string]uint64),
	}
}

// Publish 非阻塞地投递一条镜像事件。
// 队列已满时放弃这条更新：镜像允许落后，下一次预热会追平。
func (m *Mirror) Publish(ev Event) {
	m.shutdownMutex.Lock()
	defer m.shutdownMutex.Unlock()
	if m.isShutdown {
		return
	}
	select {
	case m.events <- ev:
	default:
		fmt.Printf("警告: 镜像队列已满，放弃用户 %s 的更新\n", ev.View.Username)
	}
}

// Start 运行镜像工作者的主循环，直到收到优雅停机信号。
// 收到信号后先排空队列中剩余的事件，强制停机信号会中断排空。
func (m *Mirror) Start(gracefulHandle, forcefulHandle *lifecycle.Handle) {
	defer gracefulHandle.Close()
	defer forcefulHandle.Close()
	fmt.Println("Redis镜像工作者已启动。")

	for {
		select {
		case <-gracefulHandle.Done():
			fmt.Println("镜像工作者: 收到优雅停机信号，正在排空队列...")
			m.drain(forcefulHandle)
			fmt.Println("镜像工作者: 已退出。")
			return
		case ev := <-m.events:
			m.apply(ev)
		}
	}
}

// drain 关闭队列并处理其中剩余的事件。
func (m *Mirror) drain(forcefulHandle *lifecycle.Handle) {
	m.shutdownMutex.Lock()
	m.isShutdown = true
	close(m.events)
	m.shutdownMutex.Unlock()

	for ev := range m.events {
		select {
		case <-forcefulHandle.Done():
			fmt.Println("镜像工作者: 收到强制停机信号，排空被中断。")
			return
		default:
		}
		m.apply(ev)
	}
}

// staleView 判断一条事件携带的视图是否比已写入镜像的更旧。
// 引擎在释放按键锁之后才投递事件，同一用户的两条更新可能乱序到达；
// TotalHits 每次猜测都递增，可以用它识别并丢弃被反超的旧视图。
// 删除事件清空水位，同名重新创建的用户从零重新开始。
func (m *Mirror) staleView(ev Event) bool {
	if ev.Kind == EventDelete {
		delete(m.lastTotalHits, ev.View.Username)
		return false
	}
	if last, ok := m.lastTotalHits[ev.View.Username]; ok && ev.View.TotalHits < last {
		return true
	}
	m.lastTotalHits[ev.View.Username] = ev.View.TotalHits
	return false
}

// apply 把一条事件写入Redis。Redis不可用时直接跳过，
// 恢复后的预热会重建完整镜像。
func (m *Mirror) apply(ev Event) {
	stale := m.staleView(ev)

	if database.RDB == nil || !database.IsRedisHealthy() {
		return
	}

	pipe := database.RDB.TxPipeline()
	switch ev.Kind {
	case EventUpsert, EventSolve:
		if !stale {
			statsJSON, err := json.Marshal(ev.View)
			if err != nil {
				fmt.Printf("警告: 无法序列化用户 %s 的视图: %v\n", ev.View.Username, err)
				return
			}
			pipe.HSet(database.Ctx, StatsKey, ev.View.Username, string(statsJSON))
		}
		// 解出事件即使视图已过期也要写入排行榜
		if ev.Kind == EventSolve && ev.Completion != nil {
			pipe.ZAdd(database.Ctx, leaderboard.SolvedRankingKey, redisZ(ev.Completion))
		}
	case EventDelete:
		pipe.HDel(database.Ctx, StatsKey, ev.View.Username)
		pipe.ZRem(database.Ctx, leaderboard.SolvedRankingKey, ev.View.Username)
	}
	pipe.HSet(database.Ctx, TotalsKey,
		"users", ev.Totals.Users,
		"totalHits", ev.Totals.TotalHits,
		"solved", ev.Totals.Solved)

	if _, err := pipe.Exec(database.Ctx); err != nil {
		fmt.Printf("警告: 镜像写入失败 (用户 %s): %v\n", ev.View.Username, err)
	}
}

// WarmupMirror 用内存中的权威状态整体重建Redis镜像。
// 在启动时以及Redis重启恢复后调用。
func WarmupMirror(svc *Service, ledger *leaderboard.Ledger) error {
	if database.RDB == nil {
		return fmt.Errorf("Redis客户端尚未初始化")
	}

	users := svc.Registry().Snapshot()
	entries := ledger.Snapshot()
	totals := svc.Totals()

	pipe := database.RDB.TxPipeline()
	pipe.Del(database.Ctx, StatsKey, leaderboard.SolvedRankingKey, TotalsKey)
	for i := range users {
		view := users[i].View()
		statsJSON, err := json.Marshal(view)
		if err != nil {
			return fmt.Errorf("无法序列化用户 %s 的视图: %w", view.Username, err)
		}
		pipe.HSet(database.Ctx, StatsKey, view.Username, string(statsJSON))
	}
	for i := range entries {
		pipe.ZAdd(database.Ctx, leaderboard.SolvedRankingKey, redisZ(&entries[i]))
	}
	pipe.HSet(database.Ctx, TotalsKey,
		"users", totals.Users,
		"totalHits", totals.TotalHits,
		"solved", totals.Solved)

	if _, err := pipe.Exec(database.Ctx); err != nil {
		return fmt.Errorf("重建Redis镜像失败: %w", err)
	}

	fmt.Printf("成功预热 %d 个用户、%d 条完成记录到Redis。\n", len(users), len(entries))
	return nil
}
