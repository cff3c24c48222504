package user

import (
	"fmt"

	"github.com/lukehsiao/find-the-password/internal/platform/database"
)

// migrateDB 负责自动迁移users表结构
func migrateDB() error {
	if err := database.DB.AutoMigrate(&UserRecord{}); err != nil {
		return fmt.Errorf("无法迁移users表: %w", err)
	}
	fmt.Println("Users数据库表迁移成功。")
	return nil
}

// restoreRegistry 从SQLite加载所有用户记录，重建内存注册表
func restoreRegistry(svc *Service) error {
	var records []UserRecord
	if err := database.DB.Find(&records).Error; err != nil {
		return fmt.Errorf("无法从SQLite读取用户记录: %w", err)
	}

	svc.Restore(records)
	if len(records) > 0 {
		fmt.Printf("成功恢复 %d 个用户到内存注册表。\n", len(records))
	} else {
		fmt.Println("无现有用户数据。")
	}
	return nil
}

// PrimeModule 是user模块的初始化总入口
func PrimeModule(svc *Service) error {
	if err := migrateDB(); err != nil {
		return err
	}
	if err := restoreRegistry(svc); err != nil {
		return err
	}
	return nil
}
