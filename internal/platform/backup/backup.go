package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lukehsiao/find-the-password/internal/leaderboard"
	"github.com/lukehsiao/find-the-password/internal/platform/database"
	"github.com/lukehsiao/find-the-password/internal/user"
	"github.com/lukehsiao/find-the-password/pkg/lifecycle"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var backupMutex sync.Mutex // 避免定时快照与最终快照竞态

// StartSnapshotScheduler 启动一个后台Goroutine来定期把内存状态快照到SQLite。
// 它接收一个lifecycle.Handle来管理其生命周期。
func StartSnapshotScheduler(handle *lifecycle.Handle, svc *user.Service, ledger *leaderboard.Ledger, interval time.Duration) {
	defer handle.Close() // 确保在退出时通知管理器
	fmt.Println("快照调度器已启动。")

	for {
		// 使用可中断的休眠来代替ticker。
		// 这使得整个循环可以在收到停机信号时立刻从休眠中唤醒并退出。
		if err := handle.Sleep(interval); err != nil {
			fmt.Println("快照调度器: 休眠被中断，正在关闭...")
			return
		}

		if err := CreateConsistentSnapshotInDB(handle.Ctx(), svc, ledger); err != nil {
			// 如果错误是由于停机信号导致的，则静默退出
			if err != context.Canceled && err != context.DeadlineExceeded {
				fmt.Printf("快照调度器错误: 执行快照失败: %v\n", err)
			}
		}
	}
}

// CreateConsistentSnapshotInDB 把自上次快照以来变化的用户和完整的完成账本
// 持久化到SQLite。失败时脏集合会被归还，增量不会丢失。
func CreateConsistentSnapshotInDB(ctx context.Context, svc *user.Service, ledger *leaderboard.Ledger) (err error) {
	backupMutex.Lock()
	defer backupMutex.Unlock()

	records, dirty, deleted := svc.DirtyRecords()
	if len(records) == 0 && len(deleted) == 0 {
		return nil // 无需备份
	}
	// 只需要插入运行期间新追加的条目；启动时恢复的条目带着数据库ID，
	// 本来就已经在表里了
	entries := make([]leaderboard.Completion, 0)
	for _, entry := range ledger.Snapshot() {
		if entry.ID == 0 {
			entries = append(entries, entry)
		}
	}

	defer func() {
		if err != nil {
			svc.RequeueDirty(dirty, deleted)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	const maxRetry = 3
	const delay = 50 * time.Millisecond
	for i := 0; i < maxRetry; i++ {
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			// a. 移除被删除用户的行及其完成记录
			// 删除必须先于写入：同名用户被删除后重新创建时新记录带着
			// 新的uuid，旧行不先清掉会撞上username的唯一索引
			if len(deleted) > 0 {
				if err := tx.Where("username IN ?", deleted).Delete(&user.UserRecord{}).Error; err != nil {
					return fmt.Errorf("删除用户记录失败: %w", err)
				}
				if err := tx.Where("username IN ?", deleted).Delete(&leaderboard.Completion{}).Error; err != nil {
					return fmt.Errorf("删除完成记录失败: %w", err)
				}
			}

			// b. 持久化变化的用户记录
			// OnConflict 以uuid为准执行UPSERT：已存在的行只更新可变列
			if len(records) > 0 {
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "uuid"}},
					DoUpdates: clause.AssignmentColumns([]string{"solved_at", "hits_before_solved", "total_hits"}),
				}).Create(&records).Error; err != nil {
					return fmt.Errorf("批量更新用户记录失败: %w", err)
				}
			}

			// c. 持久化完成账本
			// 完成记录一旦写入就不可变，冲突时什么都不做
			if len(entries) > 0 {
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "username"}},
					DoNothing: true,
				}).Create(&entries).Error; err != nil {
					return fmt.Errorf("持久化完成账本失败: %w", err)
				}
			}

			return nil
		})

		if err == nil || !database.IsRetryableError(err) {
			break
		}
		time.Sleep(delay)
	}

	if err == nil {
		// 把数据库分配的ID回填到账本，后续快照不再重复发送这些条目
		if len(entries) > 0 {
			ledger.MarkPersisted(entries)
		}
		fmt.Printf("快照成功: %d 个用户更新, %d 个用户删除。\n", len(records), len(deleted))
	}
	return err
}
