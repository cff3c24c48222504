package user

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lukehsiao/find-the-password/internal/leaderboard"
	"github.com/lukehsiao/find-the-password/internal/password"
	"github.com/lukehsiao/find-the-password/internal/platform/config"
)

var (
	// ErrUserExists 表示创建时用户名已被占用
	ErrUserExists = errors.New("用户已存在")

	// ErrUserNotFound 表示注册表中没有这个用户名
	ErrUserNotFound = errors.New("用户不存在")
)

// EventSink 接收引擎产生的镜像事件。
// 引擎只做非阻塞的投递，绝不在猜测路径上等待任何I/O。
type EventSink interface {
	Publish(Event)
}

// Totals 是整个挑战的聚合计数快照。
type Totals struct {
	Users     int64 `json:"users"`
	TotalHits int64 `json:"totalHits"`
	Solved    int64 `json:"solved"`
}

// Service 是每用户挑战引擎。
// 它负责记录创建、候选列表物化和猜测校验，并在第一次猜对时
// 把完成记录写入账本。
type Service struct {
	cfg      config.ChallengeConfig
	registry *Registry
	ledger   *leaderboard.Ledger
	sink     EventSink

	users     atomic.Int64
	totalHits atomic.Int64
	solved    atomic.Int64
}

// NewService 创建挑战引擎。sink可以为nil（例如在测试中）。
func NewService(cfg config.ChallengeConfig, registry *Registry, ledger *leaderboard.Ledger, sink EventSink) *Service {
	return &Service{
		cfg:      cfg,
		registry: registry,
		ledger:   ledger,
		sink:     sink,
	}
}

// Registry 返回底层注册表，供备份和预热使用。
func (s *Service) Registry() *Registry {
	return s.registry
}

// Ledger 返回完成账本。
func (s *Service) Ledger() *leaderboard.Ledger {
	return s.ledger
}

// Totals 返回聚合计数的快照。
func (s *Service) Totals() Totals {
	return Totals{
		Users:     s.users.Load(),
		TotalHits: s.totalHits.Load(),
		Solved:    s.solved.Load(),
	}
}

func (s *Service) publish(ev Event) {
	if s.sink != nil {
		ev.Totals = s.Totals()
		s.sink.Publish(ev)
	}
}

// CreateUser 创建一个新用户并返回其对外视图。
// 种子由用户名和当前时间派生，正确密码立即由种子派生并固定。
func (s *Service) CreateUser(username string) (View, error) {
	now := time.Now()
	seed := password.NewSeed(username, now)

	u := &User{
		UUID:      uuid.NewString(),
		Username:  username,
		Seed:      seed,
		Secret:    password.DeriveSecret(seed, s.cfg.PasswordLength),
		CreatedAt: now,
	}
	// 插入成功后记录归注册表所有，之后的读取都必须走按键锁，
	// 所以视图要在插入之前构造
	view := u.View()

	if !s.registry.InsertIfAbsent(u) {
		return View{}, fmt.Errorf("用户名 %q: %w", username, ErrUserExists)
	}
	s.users.Add(1)

	s.publish(Event{Kind: EventUpsert, View: view})
	return view, nil
}

// GetUser 返回一个用户当前状态的对外视图。
func (s *Service) GetUser(username string) (View, error) {
	u, ok := s.registry.Get(username)
	if !ok {
		return View{}, fmt.Errorf("用户名 %q: %w", username, ErrUserNotFound)
	}
	return u.View(), nil
}

// PasswordsText 物化一个用户的完整候选密码列表。
// 输出完全由不可变的种子派生：同一个用户重复下载得到的字节完全一致。
// 每行一条候选密码，最后一行同样以换行结尾。
func (s *Service) PasswordsText(username string) (string, error) {
	u, ok := s.registry.Get(username)
	if !ok {
		return "", fmt.Errorf("用户名 %q: %w", username, ErrUserNotFound)
	}

	passwords := password.Generate(u.Seed, s.cfg.PasswordCount, s.cfg.PasswordLength)
	offset := password.PlaceSecret(passwords, u.Seed, s.cfg.OffsetWindow)
	fmt.Printf("已为用户 %s 生成 %d 条候选密码 (offset=%d)\n", username, len(passwords), offset)

	var b strings.Builder
	b.Grow(len(passwords) * (s.cfg.PasswordLength + 1))
	for _, p := range passwords {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// CheckPassword 校验一次猜测。
// 计数和“未解出→已解出”的转换都发生在按键锁内；第一次猜对时，
// 账本的追加也在同一个临界区内完成，因此并发的正确猜测只可能
// 产生一条完成记录。已解出后的重复正确猜测仍返回true，但不再
// 触及 Solve 和账本。
func (s *Service) CheckPassword(username, candidate string) (bool, View, error) {
	var (
		correct  bool
		newSolve *leaderboard.Completion
		view     View
	)

	found := s.registry.Update(username, func(u *User) {
		if u.Solve == nil {
			u.HitsBeforeSolved++
		}
		u.TotalHits++

		if candidate == u.Secret {
			correct = true
			if u.Solve == nil {
				now := time.Now()
				u.Solve = &SolveState{At: now, Attempts: u.HitsBeforeSolved}
				entry := leaderboard.Completion{
					Username:        u.Username,
					SolvedAt:        now,
					TimeToSolve:     now.Sub(u.CreatedAt),
					AttemptsToSolve: u.HitsBeforeSolved,
				}
				// 仍持有按键锁：检查与追加共同构成一个原子单元
				s.ledger.Append(entry)
				newSolve = &entry
			}
		}
		view = u.View()
	})
	if !found {
		return false, View{}, fmt.Errorf("用户名 %q: %w", username, ErrUserNotFound)
	}

	s.totalHits.Add(1)
	if newSolve != nil {
		s.solved.Add(1)
		fmt.Printf("用户 %s 已解出挑战！用时 %v，尝试 %d 次\n",
			username, newSolve.TimeToSolve.Round(time.Millisecond), newSolve.AttemptsToSolve)
		s.publish(Event{Kind: EventSolve, View: view, Completion: newSolve})
	} else {
		s.publish(Event{Kind: EventUpsert, View: view})
	}

	return correct, view, nil
}

// DeleteUser 删除一个用户。
// 如果该用户已解出，它的完成记录也会被移除，聚合计数随之回退。
func (s *Service) DeleteUser(username string) error {
	removed, ok := s.registry.Delete(username)
	if !ok {
		return fmt.Errorf("用户名 %q: %w", username, ErrUserNotFound)
	}

	s.users.Add(-1)
	s.totalHits.Add(-int64(removed.TotalHits))
	if removed.Solved() {
		s.solved.Add(-1)
		s.ledger.RemoveByUsername(username)
	}

	s.publish(Event{Kind: EventDelete, View: removed.View()})
	return nil
}

// StatusViews 返回所有用户的对外视图，按总尝试次数降序排列，
// 次数相同时按用户名排序，保证状态页的输出稳定。
func (s *Service) StatusViews() []View {
	users := s.registry.Snapshot()
	views := make([]View, 0, len(users))
	for i := range users {
		views = append(views, users[i].View())
	}
	sortStatusViews(views)
	return views
}

// sortStatusViews 按总尝试次数降序、用户名升序排列视图。
func sortStatusViews(views []View) {
	sort.Slice(views, func(i, j int) bool {
		if views[i].TotalHits != views[j].TotalHits {
			return views[i].TotalHits > views[j].TotalHits
		}
		return views[i].Username < views[j].Username
	})
}

// Restore 在启动时用持久化的记录重建注册表和聚合计数。
func (s *Service) Restore(records []UserRecord) {
	var users, hits, solved int64
	for _, rec := range records {
		u := FromRecord(rec)
		if !s.registry.Restore(u) {
			continue
		}
		users++
		hits += int64(rec.TotalHits)
		if u.Solved() {
			solved++
		}
	}
	s.users.Store(users)
	s.totalHits.Store(hits)
	s.solved.Store(solved)
}

// DirtyRecords 取走自上次快照以来变化用户的持久化模型，
// 以及被删除的用户名。快照失败时必须调用 RequeueDirty 归还。
func (s *Service) DirtyRecords() (records []UserRecord, dirty []string, deleted []string) {
	dirty, deleted = s.registry.TakeDirty()
	records = make([]UserRecord, 0, len(dirty))
	for _, name := range dirty {
		if u, ok := s.registry.Get(name); ok {
			records = append(records, u.Record())
		}
	}
	return records, dirty, deleted
}

// RequeueDirty 归还一次失败快照消费的脏集合。
func (s *Service) RequeueDirty(dirty []string, deleted []string) {
	s.registry.RequeueDirty(dirty, deleted)
}
