package user

import (
	"time"
)

// SolveState 是解出状态的终态标签。
// 它只在第一次猜对时被整体写入一次，此后永不修改，
// 用结构上不可逆的方式取代“可空字段+散落的判断”。
type SolveState struct {
	// At 是第一次猜对的时刻
	At time.Time

	// Attempts 是解出时 HitsBeforeSolved 的冻结副本
	Attempts uint64
}

// User 定义了内存注册表中一个用户的全部运行时状态。
// Seed 和 Secret 只存在于服务端，永远不会出现在对外视图中。
type User struct {
	// UUID 是服务端内部的记录ID
	UUID string

	// Username 是用户的唯一标识，注册表的主键，创建后不可变
	Username string

	// Seed 在创建时由用户名和创建时间派生，此后不可变；
	// 整个候选密码列表都可以由它重放出来
	Seed int64

	// Secret 是种子派生的正确密码，长度固定
	Secret string

	// CreatedAt 在创建时设置一次
	CreatedAt time.Time

	// Solve 为nil表示尚未解出。一旦写入，永不回退。
	Solve *SolveState

	// HitsBeforeSolved 只在未解出时递增
	HitsBeforeSolved uint64

	// TotalHits 在每次猜测时递增，与是否解出无关
	TotalHits uint64
}

// Solved 返回用户是否已经解出。
func (u *User) Solved() bool {
	return u.Solve != nil
}

// View 是用户记录的对外视图，不包含 Seed 和 Secret。
type View struct {
	Username         string     `json:"username"`
	CreatedAt        time.Time  `json:"createdAt"`
	SolvedAt         *time.Time `json:"solvedAt,omitempty"`
	HitsBeforeSolved uint64     `json:"hitsBeforeSolved"`
	TotalHits        uint64     `json:"totalHits"`
}

// View 构造当前状态的对外视图。
// 必须在持有该用户的按键锁时调用（Get和Update的回调内都满足）。
func (u *User) View() View {
	v := View{
		Username:         u.Username,
		CreatedAt:        u.CreatedAt,
		HitsBeforeSolved: u.HitsBeforeSolved,
		TotalHits:        u.TotalHits,
	}
	if u.Solve != nil {
		at := u.Solve.At
		v.SolvedAt = &at
	}
	return v
}

// UserRecord 定义了用户在SQLite数据库中的持久化模型。
// 与运行时状态不同，Seed和Secret也会被持久化（仅服务端可见），
// 这样重启后不会给任何人重新发列表。
type UserRecord struct {
	UUID             string `gorm:"primarykey;type:varchar(36)"`
	Username         string `gorm:"uniqueIndex;not null"`
	Seed             int64  `gorm:"not null"`
	Secret           string `gorm:"not null"`
	CreatedAt        time.Time
	SolvedAt         *time.Time
	HitsBeforeSolved uint64
	TotalHits        uint64
}

func (UserRecord) TableName() string {
	return "users"
}

// Record 把运行时状态转换为持久化模型。
func (u *User) Record() UserRecord {
	rec := UserRecord{
		UUID:             u.UUID,
		Username:         u.Username,
		Seed:             u.Seed,
		Secret:           u.Secret,
		CreatedAt:        u.CreatedAt,
		HitsBeforeSolved: u.HitsBeforeSolved,
		TotalHits:        u.TotalHits,
	}
	if u.Solve != nil {
		at := u.Solve.At
		rec.SolvedAt = &at
	}
	return rec
}

// FromRecord 把持久化模型还原为运行时状态。
func FromRecord(rec UserRecord) *User {
	u := &User{
		UUID:             rec.UUID,
		Username:         rec.Username,
		Seed:             rec.Seed,
		Secret:           rec.Secret,
		CreatedAt:        rec.CreatedAt,
		HitsBeforeSolved: rec.HitsBeforeSolved,
		TotalHits:        rec.TotalHits,
	}
	if rec.SolvedAt != nil {
		u.Solve = &SolveState{At: *rec.SolvedAt, Attempts: rec.HitsBeforeSolved}
	}
	return u
}
