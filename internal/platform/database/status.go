package database

import (
	"fmt"
	"sync"
)

// statusManager 线程安全地维护Redis镜像的健康状态。
// 引擎的正确性不依赖镜像，这个状态只决定聚合端点从哪里读。
type statusManager struct {
	mu             sync.RWMutex
	isRedisHealthy bool
	lastKnownRunID string
}

// 全局的状态管理器实例
var globalStatus = &statusManager{
	isRedisHealthy: true, // 启动流程会先预热镜像，默认视为健康
}

// IsRedisHealthy 返回镜像当前是否可读。
func IsRedisHealthy() bool {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.isRedisHealthy
}

// SetInitialRunID 在启动时记录Redis的初始run_id，
// 此后由健康检查器负责维护。
func SetInitialRunID(runID string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.lastKnownRunID = runID
}

// UpdateStatus 由健康检查器调用，更新镜像的健康状态。
func UpdateStatus(isHealthy bool, newRunID string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()

	// 状态翻转时才打印，避免每轮检查都刷日志
	if globalStatus.isRedisHealthy != isHealthy {
		globalStatus.isRedisHealthy = isHealthy
		if isHealthy {
			fmt.Println("健康检查: Redis镜像已恢复，聚合端点切回镜像读取")
		} else {
			fmt.Println("健康检查警告: Redis镜像不可用，状态页退回内存快照")
		}
	}

	// 不健康时保留旧的run_id，恢复后的比对才能发现重启
	if isHealthy {
		globalStatus.lastKnownRunID = newRunID
	}
}

// GetLastKnownRunID 返回最后一次确认健康时的run_id。
func GetLastKnownRunID() string {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.lastKnownRunID
}
