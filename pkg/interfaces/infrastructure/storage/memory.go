// Package storage 定义宿主桥接层使用的存储接口
//
// 🧠 **内存存储**
//
// 模块缓存的编译记录（大小、成本输入、内存消耗）保存在进程内的
// 键值存储中，由多个模块缓存句柄共享。实现基于 BigCache，条目在
// 生命周期窗口过期后自动淘汰。
package storage

import "context"

// MemoryStore 进程内键值存储
type MemoryStore interface {
	// Get 获取值，返回值、是否存在及可能的错误
	Get(ctx context.Context, key string) (value []byte, exists bool, err error)

	// Set 写入或覆盖值
	Set(ctx context.Context, key string, value []byte) error

	// Delete 删除键，键不存在时不返回错误
	Delete(ctx context.Context, key string) error

	// Exists 检查键是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// Clear 清空所有键
	Clear(ctx context.Context) error

	// Count 当前键数量
	Count(ctx context.Context) (int64, error)

	// GetKeys 返回以 prefix 开头的所有键，空前缀返回全部
	GetKeys(ctx context.Context, prefix string) ([]string, error)

	// Close 释放底层缓存
	Close() error
}
