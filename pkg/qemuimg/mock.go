package qemuimg

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient 是 Inspector 的 mock 实现
type MockClient struct {
	mock.Mock
}

var _ Inspector = (*MockClient)(nil)

func (m *MockClient) Info(ctx context.Context, imagePath string) (*ImageInfo, error) {
	args := m.Called(ctx, imagePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ImageInfo), args.Error(1)
}

func (m *MockClient) Check(ctx context.Context, imagePath, format string) error {
	args := m.Called(ctx, imagePath, format)
	return args.Error(0)
}
