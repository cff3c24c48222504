package leaderboard

import "time"

// Completion 定义了一条完成记录。
// 它既是内存账本中的条目，也是SQLite中 completions 表的持久化模型。
// 一条记录在用户第一次猜对时创建，此后永不修改。
type Completion struct {
	ID uint `gorm:"primarykey" json:"-"`

	// Username 是完成挑战的用户名，来自用户记录
	Username string `gorm:"uniqueIndex;not null" json:"username"`

	// SolvedAt 是第一次猜对的时刻，也是账本的排序依据
	SolvedAt time.Time `json:"solvedAt"`

	// TimeToSolve = SolvedAt - 用户创建时间
	TimeToSolve time.Duration `json:"-"`

	// AttemptsToSolve 是解出之前的猜测次数的冻结副本
	AttemptsToSolve uint64 `json:"attemptsToSolve"`
}

func (Completion) TableName() string {
	return "completions"
}
