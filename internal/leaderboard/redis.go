package leaderboard

// 定义与完成账本相关的Redis键名
const (
	// SolvedRankingKey 是一个 Sorted Set，镜像账本的解出顺序。
	// Score: 解出时刻的Unix毫秒
	// Member: 用户名
	SolvedRankingKey = "leaderboard:solved"
)
