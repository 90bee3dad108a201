package libvirt

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockClient 是 Hypervisor 的 mock 实现
// 用于测试，不需要真实的 libvirt 连接
type MockClient struct {
	mock.Mock
}

var _ Hypervisor = (*MockClient)(nil)

func (m *MockClient) Hosts() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

func (m *MockClient) Ping(ctx context.Context, host string) error {
	args := m.Called(ctx, host)
	return args.Error(0)
}

// 存储
func (m *MockClient) GetStoragePool(ctx context.Context, host, pool string) (*StoragePoolInfo, error) {
	args := m.Called(ctx, host, pool)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StoragePoolInfo), args.Error(1)
}

func (m *MockClient) CreateGlusterPool(ctx context.Context, spec *GlusterPoolSpec) error {
	args := m.Called(ctx, spec)
	return args.Error(0)
}

// 网络
func (m *MockClient) CreateHostInterface(ctx context.Context, host string, spec *HostInterfaceSpec) error {
	args := m.Called(ctx, host, spec)
	return args.Error(0)
}

func (m *MockClient) CreateNetwork(ctx context.Context, host string, spec *NetworkSpec) error {
	args := m.Called(ctx, host, spec)
	return args.Error(0)
}

// 虚拟机
func (m *MockClient) ImportVM(ctx context.Context, spec *ImportSpec) (*VM, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*VM), args.Error(1)
}

func (m *MockClient) CloneVM(ctx context.Context, spec *CloneSpec) (*VM, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*VM), args.Error(1)
}

func (m *MockClient) GetVMInterface(ctx context.Context, vm *VM) (*NetworkInterface, error) {
	args := m.Called(ctx, vm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*NetworkInterface), args.Error(1)
}

func (m *MockClient) SetVMNetwork(ctx context.Context, vm *VM, network string) error {
	args := m.Called(ctx, vm, network)
	return args.Error(0)
}

func (m *MockClient) RenameVM(ctx context.Context, vm *VM, name, description string) (*VM, error) {
	args := m.Called(ctx, vm, name, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*VM), args.Error(1)
}

func (m *MockClient) AttachCloudInit(ctx context.Context, vm *VM, iso []byte) error {
	args := m.Called(ctx, vm, iso)
	return args.Error(0)
}

func (m *MockClient) GetDataDiskSize(ctx context.Context, vm *VM) (uint64, error) {
	args := m.Called(ctx, vm)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockClient) ResizeDataDisk(ctx context.Context, vm *VM, size uint64) error {
	args := m.Called(ctx, vm, size)
	return args.Error(0)
}

func (m *MockClient) StartVM(ctx context.Context, vm *VM) error {
	args := m.Called(ctx, vm)
	return args.Error(0)
}

func (m *MockClient) GuestAddresses(ctx context.Context, vm *VM) ([]string, error) {
	args := m.Called(ctx, vm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
