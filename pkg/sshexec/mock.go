package sshexec

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockExecutor 是 Executor 的 mock 实现
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, address, command string) (*Result, error) {
	args := m.Called(ctx, address, command)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Result), args.Error(1)
}

// OK 返回退出码为 0 的结果
func OK(stdout string) *Result {
	return &Result{Stdout: stdout}
}

// Failed 返回指定退出码和标准错误的结果
func Failed(status int, stderr string) *Result {
	return &Result{ExitStatus: status, Stderr: stderr}
}
