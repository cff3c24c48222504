package startup

import (
	"fmt"

	"github.com/lukehsiao/find-the-password/internal/leaderboard"
	"github.com/lukehsiao/find-the-password/internal/platform/config"
	"github.com/lukehsiao/find-the-password/internal/user"
)

// 应用级单例，在 InitializeApplication 中装配
var (
	svc    *user.Service
	ledger *leaderboard.Ledger
	mirror *user.Mirror
)

// InitializeApplication 是应用首次启动时执行的总入口。
// 它装配引擎、从SQLite恢复状态，并预热Redis镜像。
func InitializeApplication(cfg *config.Config) (*user.Service, *leaderboard.Ledger, *user.Mirror, error) {
	fmt.Println("开始应用首次初始化...")

	ledger = leaderboard.NewLedger()
	mirror = user.NewMirror()
	svc = user.NewService(cfg.Challenge, user.NewRegistry(), ledger, mirror)

	if err := leaderboard.PrimeModule(ledger); err != nil {
		return nil, nil, nil, err
	}
	if err := user.PrimeModule(svc); err != nil {
		return nil, nil, nil, err
	}
	if err := RebuildMirror(); err != nil {
		return nil, nil, nil, err
	}

	fmt.Println("应用初始化完成！")
	return svc, ledger, mirror, nil
}

// RebuildMirror 用内存中的权威状态重建Redis镜像。
// 启动时调用一次，Redis重启恢复后由健康检查器再次调用。
func RebuildMirror() error {
	if svc == nil || ledger == nil {
		return fmt.Errorf("应用尚未初始化，无法重建镜像")
	}
	return user.WarmupMirror(svc, ledger)
}
