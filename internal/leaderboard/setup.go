package leaderboard

import (
	"fmt"

	"github.com/lukehsiao/find-the-password/internal/platform/database"
)

// migrateDB 负责自动迁移completions表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&Completion{}); err != nil {
		return fmt.Errorf("无法迁移completions表: %w", err)
	}
	fmt.Println("Completions数据库表迁移成功。")
	return nil
}

// restoreLedger 从SQLite加载所有完成记录，按解出时间重建内存账本
func restoreLedger(ledger *Ledger) error {
	var entries []Completion
	if err := database.DB.Order("solved_at ASC").Find(&entries).Error; err != nil {
		return fmt.Errorf("无法从SQLite读取完成记录: %w", err)
	}
	ledger.Restore(entries)
	if len(entries) > 0 {
		fmt.Printf("成功恢复 %d 条完成记录。\n", len(entries))
	}
	return nil
}

// PrimeModule 是leaderboard模块的初始化总入口
func PrimeModule(ledger *Ledger) error {
	if err := migrateDB(); err != nil {
		return err
	}
	if err := restoreLedger(ledger); err != nil {
		return err
	}
	return nil
}
