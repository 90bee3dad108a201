// Package metadata 管理控制节点本地的状态文件：部署锁和服务密钥
package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// ErrLockTimeout 在超时时间内没有获取到锁
var ErrLockTimeout = errors.New("lock timeout")

const lockRetryInterval = 100 * time.Millisecond

// FileLock 基于 flock 的进程间互斥锁
type FileLock struct {
	path    string
	file    *os.File
	timeout time.Duration
}

// NewFileLock 创建文件锁
func NewFileLock(lockDir, resourceID string, timeout time.Duration) *FileLock {
	return &FileLock{
		path:    filepath.Join(lockDir, resourceID+".lock"),
		timeout: timeout,
	}
}

// Path 锁文件路径
func (fl *FileLock) Path() string {
	return fl.path
}

// Lock 获取锁，超时返回 ErrLockTimeout
func (fl *FileLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(fl.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	timer := time.NewTimer(fl.timeout)
	defer timer.Stop()
	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err == nil {
			fl.file = file
			zerolog.Ctx(ctx).Debug().Str("lock_path", fl.path).Msg("Lock acquired")
			return nil
		}

		select {
		case <-ctx.Done():
			file.Close()
			return ctx.Err()
		case <-timer.C:
			file.Close()
			return fmt.Errorf("%w after %v: %s", ErrLockTimeout, fl.timeout, fl.path)
		case <-ticker.C:
		}
	}
}

// Unlock 释放锁
func (fl *FileLock) Unlock(ctx context.Context) {
	if fl.file == nil {
		return
	}
	logger := zerolog.Ctx(ctx)

	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		logger.Warn().Err(err).Str("lock_path", fl.path).Msg("Failed to unlock file")
	}
	if err := fl.file.Close(); err != nil {
		logger.Warn().Err(err).Str("lock_path", fl.path).Msg("Failed to close lock file")
	}
	fl.file = nil

	logger.Debug().Str("lock_path", fl.path).Msg("Lock released")
}

// WithLock 持有锁执行 fn
func WithLock(ctx context.Context, lockDir, resourceID string, timeout time.Duration, fn func() error) error {
	lock := NewFileLock(lockDir, resourceID, timeout)
	if err := lock.Lock(ctx); err != nil {
		return fmt.Errorf("acquire lock %s: %w", resourceID, err)
	}
	defer lock.Unlock(ctx)

	return fn()
}
