package user

// 定义与用户相关的Redis键名
const (
	// StatsKey 是一个 Redis Hash，镜像每个用户的对外视图。
	// Field: 用户名
	// Value: View 结构体的JSON序列化字符串
	StatsKey = "user:stats"

	// TotalsKey 是一个 Redis Hash，镜像整个挑战的聚合计数。
	// Field: users / totalHits / solved
	TotalsKey = "challenge:totals"
)
