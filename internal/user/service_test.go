package user

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukehsiao/find-the-password/internal/leaderboard"
	"github.com/lukehsiao/find-the-password/internal/platform/config"
)

// 测试用的小参数，保持生成速度；真实默认值的形状由生成器自己的测试覆盖
func newTestService() *Service {
	cfg := config.ChallengeConfig{
		PasswordCount:  2000,
		PasswordLength: 16,
		OffsetWindow:   500,
	}
	return NewService(cfg, NewRegistry(), leaderboard.NewLedger(), nil)
}

// secretOf 从注册表里取出服务端保存的正确密码。
func secretOf(t *testing.T, s *Service, username string) string {
	t.Helper()
	u, ok := s.registry.Get(username)
	require.True(t, ok)
	return u.Secret
}

func TestCreateUserDuplicate(t *testing.T) {
	s := newTestService()

	view, err := s.CreateUser("bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", view.Username)
	assert.Nil(t, view.SolvedAt)

	_, err = s.CreateUser("bob")
	require.ErrorIs(t, err, ErrUserExists)
	assert.Equal(t, int64(1), s.Totals().Users)
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestService()
	_, err := s.GetUser("nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, _, err = s.CheckPassword("nobody", "whatever")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.PasswordsText("nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPasswordsTextShape(t *testing.T) {
	s := newTestService()
	_, err := s.CreateUser("alice")
	require.NoError(t, err)

	text, err := s.PasswordsText("alice")
	require.NoError(t, err)

	// 最后一行同样以换行结尾
	require.True(t, strings.HasSuffix(text, "\n"))
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	require.Len(t, lines, 2000)
	for _, line := range lines {
		require.Len(t, line, 16)
	}

	// 正确密码恰好出现一次，且不在首行
	secret := secretOf(t, s, "alice")
	count := 0
	for i, line := range lines {
		if line == secret {
			count++
			assert.NotZero(t, i)
		}
	}
	assert.Equal(t, 1, count)
}

func TestPasswordsTextDefaultScale(t *testing.T) {
	cfg := config.ChallengeConfig{
		PasswordCount:  60000,
		PasswordLength: 32,
		OffsetWindow:   15000,
	}
	s := NewService(cfg, NewRegistry(), leaderboard.NewLedger(), nil)
	_, err := s.CreateUser("alice")
	require.NoError(t, err)

	text, err := s.PasswordsText("alice")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	require.Len(t, lines, 60000)

	secret := secretOf(t, s, "alice")
	count := 0
	for _, line := range lines {
		require.Len(t, line, 32)
		if line == secret {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPasswordsTextDeterministic(t *testing.T) {
	s := newTestService()
	_, err := s.CreateUser("alice")
	require.NoError(t, err)

	first, err := s.PasswordsText("alice")
	require.NoError(t, err)
	second, err := s.PasswordsText("alice")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// 下载列表本身不计入任何命中
	u, err := s.GetUser("alice")
	require.NoError(t, err)
	assert.Zero(t, u.TotalHits)
}

func TestCheckPasswordLifecycle(t *testing.T) {
	s := newTestService()
	_, err := s.CreateUser("alice")
	require.NoError(t, err)
	secret := secretOf(t, s, "alice")

	// 第一次猜错
	correct, view, err := s.CheckPassword("alice", "wrong-guess")
	require.NoError(t, err)
	assert.False(t, correct)
	assert.Equal(t, uint64(1), view.HitsBeforeSolved)
	assert.Equal(t, uint64(1), view.TotalHits)
	assert.Nil(t, view.SolvedAt)
	assert.Equal(t, 0, s.ledger.Len())

	// 第二次猜对
	correct, view, err = s.CheckPassword("alice", secret)
	require.NoError(t, err)
	assert.True(t, correct)
	assert.Equal(t, uint64(2), view.HitsBeforeSolved)
	assert.Equal(t, uint64(2), view.TotalHits)
	require.NotNil(t, view.SolvedAt)

	entries := s.ledger.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Username)
	assert.Equal(t, uint64(2), entries[0].AttemptsToSolve)

	totals := s.Totals()
	assert.Equal(t, int64(1), totals.Solved)
	assert.Equal(t, int64(2), totals.TotalHits)
}

func TestCheckPasswordIdempotentAfterSolve(t *testing.T) {
	s := newTestService()
	_, err := s.CreateUser("alice")
	require.NoError(t, err)
	secret := secretOf(t, s, "alice")

	_, first, err := s.CheckPassword("alice", secret)
	require.NoError(t, err)
	require.NotNil(t, first.SolvedAt)

	// 解出后的正确猜测仍返回true，但解出状态和账本不再变化
	correct, again, err := s.CheckPassword("alice", secret)
	require.NoError(t, err)
	assert.True(t, correct)
	assert.Equal(t, *first.SolvedAt, *again.SolvedAt)
	assert.Equal(t, first.HitsBeforeSolved, again.HitsBeforeSolved)
	assert.Equal(t, first.TotalHits+1, again.TotalHits)
	assert.Equal(t, 1, s.ledger.Len())

	// 解出后的错误猜测也只增加总命中
	correct, view, err := s.CheckPassword("alice", "wrong")
	require.NoError(t, err)
	assert.False(t, correct)
	assert.Equal(t, first.HitsBeforeSolved, view.HitsBeforeSolved)
	assert.Equal(t, first.TotalHits+2, view.TotalHits)

	assert.Equal(t, int64(1), s.Totals().Solved)
}

func TestConcurrentCorrectGuessesSingleCompletion(t *testing.T) {
	s := newTestService()
	_, err := s.CreateUser("alice")
	require.NoError(t, err)
	secret := secretOf(t, s, "alice")

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			correct, _, err := s.CheckPassword("alice", secret)
			assert.NoError(t, err)
			assert.True(t, correct)
		}()
	}
	wg.Wait()

	// 不管多少并发的正确猜测，完成记录只有一条
	entries := s.ledger.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Username)

	u, err := s.GetUser("alice")
	require.NoError(t, err)
	require.NotNil(t, u.SolvedAt)
	assert.Equal(t, uint64(goroutines), u.TotalHits)
	assert.Equal(t, entries[0].AttemptsToSolve, u.HitsBeforeSolved)

	totals := s.Totals()
	assert.Equal(t, int64(1), totals.Solved)
	assert.Equal(t, int64(goroutines), totals.TotalHits)
}

func TestCheckPasswordIsolation(t *testing.T) {
	s := newTestService()
	_, err := s.CreateUser("alice")
	require.NoError(t, err)
	_, err = s.CreateUser("bob")
	require.NoError(t, err)

	// alice的密码对bob无效，反之亦然
	aliceSecret := secretOf(t, s, "alice")
	bobSecret := secretOf(t, s, "bob")

	correct, _, err := s.CheckPassword("bob", aliceSecret)
	require.NoError(t, err)
	assert.False(t, correct)

	correct, _, err = s.CheckPassword("alice", bobSecret)
	require.NoError(t, err)
	assert.False(t, correct)

	// alice解出后bob的状态不受影响
	_, _, err = s.CheckPassword("alice", aliceSecret)
	require.NoError(t, err)

	bob, err := s.GetUser("bob")
	require.NoError(t, err)
	assert.Nil(t, bob.SolvedAt)
	assert.Equal(t, uint64(1), bob.TotalHits)
	assert.Equal(t, 1, s.ledger.Len())
}

func TestDeleteUser(t *testing.T) {
	s := newTestService()
	_, err := s.CreateUser("alice")
	require.NoError(t, err)
	secret := secretOf(t, s, "alice")

	_, _, err = s.CheckPassword("alice", "wrong")
	require.NoError(t, err)
	_, _, err = s.CheckPassword("alice", secret)
	require.NoError(t, err)
	require.Equal(t, 1, s.ledger.Len())

	require.NoError(t, s.DeleteUser("alice"))

	// 完成记录和聚合计数一并回退
	assert.Equal(t, 0, s.ledger.Len())
	totals := s.Totals()
	assert.Zero(t, totals.Users)
	assert.Zero(t, totals.TotalHits)
	assert.Zero(t, totals.Solved)

	err = s.DeleteUser("alice")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// 删除后可以用同一个用户名重新注册，得到全新的挑战
	_, err = s.CreateUser("alice")
	require.NoError(t, err)
	fresh, err := s.GetUser("alice")
	require.NoError(t, err)
	assert.Nil(t, fresh.SolvedAt)
	assert.Zero(t, fresh.TotalHits)
}

func TestStatusViewsOrdering(t *testing.T) {
	s := newTestService()
	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := s.CreateUser(name)
		require.NoError(t, err)
	}

	// bob 3次，alice 1次，carol 1次
	for i := 0; i < 3; i++ {
		_, _, err := s.CheckPassword("bob", "wrong")
		require.NoError(t, err)
	}
	_, _, err := s.CheckPassword("alice", "wrong")
	require.NoError(t, err)
	_, _, err = s.CheckPassword("carol", "wrong")
	require.NoError(t, err)

	views := s.StatusViews()
	require.Len(t, views, 3)
	assert.Equal(t, "bob", views[0].Username)
	// 次数相同时按用户名升序，输出稳定
	assert.Equal(t, "alice", views[1].Username)
	assert.Equal(t, "carol", views[2].Username)
}

func TestRestoreRebuildsCounters(t *testing.T) {
	s := newTestService()
	_, err := s.CreateUser("alice")
	require.NoError(t, err)
	secret := secretOf(t, s, "alice")
	_, _, err = s.CheckPassword("alice", secret)
	require.NoError(t, err)
	_, err = s.CreateUser("bob")
	require.NoError(t, err)
	_, _, err = s.CheckPassword("bob", "wrong")
	require.NoError(t, err)

	records, _, _ := s.DirtyRecords()
	require.Len(t, records, 2)

	restored := newTestService()
	restored.Restore(records)

	totals := restored.Totals()
	assert.Equal(t, int64(2), totals.Users)
	assert.Equal(t, int64(2), totals.TotalHits)
	assert.Equal(t, int64(1), totals.Solved)

	// 重启后同一个密码仍然有效，列表字节不变
	correct, view, err := restored.CheckPassword("alice", secret)
	require.NoError(t, err)
	assert.True(t, correct)
	require.NotNil(t, view.SolvedAt)

	original, err := s.PasswordsText("bob")
	require.NoError(t, err)
	afterRestart, err := restored.PasswordsText("bob")
	require.NoError(t, err)
	assert.Equal(t, original, afterRestart)
}

func TestErrorsCarryUsername(t *testing.T) {
	s := newTestService()
	_, err := s.GetUser("ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUserNotFound))
	assert.Contains(t, err.Error(), "ghost")
}
