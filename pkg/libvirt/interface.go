package libvirt

import (
	"context"
	"net/netip"
)

// VM 某台宿主机上的虚拟机
type VM struct {
	Host string `json:"host"`
	Pool string `json:"pool"` // 磁盘所在的存储池
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// StoragePoolInfo 存储池信息
type StoragePoolInfo struct {
	Host        string
	Name        string
	State       string
	CapacityB   uint64
	AllocationB uint64
	AvailableB  uint64
}

// NetworkSpec 存储网络定义
// libvirt 网络以 bridge 模式接入 Bridge 指定的宿主机网桥
type NetworkSpec struct {
	Name   string
	Bridge string
}

// HostInterfaceSpec 宿主机上的存储网桥
// VLAN 为 0 时 Parent 直接加入网桥，否则先创建 VLAN 子接口
type HostInterfaceSpec struct {
	Bridge  string
	Parent  string
	VLAN    int
	MTU     int
	Address netip.Prefix
}

// Image 黄金模板的系统盘镜像
type Image struct {
	Path        string
	Format      string // qcow2, raw
	VirtualSize uint64 // 字节
	FileSize    uint64 // 字节
}

// ImportSpec 从模板导入虚拟机
type ImportSpec struct {
	Host         string
	Pool         string
	Name         string
	Image        Image
	DataDiskSize uint64 // 数据盘初始大小（字节）
	MemoryMiB    uint
	VCPUs        uint
	Network      string // 网卡初始接入的 libvirt 网络
}

// CloneSpec 将虚拟机复制到另一个存储池
type CloneSpec struct {
	Source VM
	Host   string
	Pool   string
	Name   string
}

// NetworkInterface 虚拟机网卡
type NetworkInterface struct {
	MAC     string
	Network string
}

// GlusterPoolSpec 指向 GlusterFS 卷的 libvirt 存储池
type GlusterPoolSpec struct {
	Name   string
	Host   string // 执行注册的宿主机
	Server string // gluster 服务地址
	Volume string
}

// Hypervisor 虚拟化资源池的控制接口
// 一个实例管理多台宿主机，按宿主机名寻址
type Hypervisor interface {
	// Hosts 已配置的宿主机，按名称排序
	Hosts() []string
	// Ping 检查宿主机连接是否可用
	Ping(ctx context.Context, host string) error

	GetStoragePool(ctx context.Context, host, pool string) (*StoragePoolInfo, error)
	CreateGlusterPool(ctx context.Context, spec *GlusterPoolSpec) error

	CreateHostInterface(ctx context.Context, host string, spec *HostInterfaceSpec) error
	CreateNetwork(ctx context.Context, host string, spec *NetworkSpec) error

	ImportVM(ctx context.Context, spec *ImportSpec) (*VM, error)
	CloneVM(ctx context.Context, spec *CloneSpec) (*VM, error)
	GetVMInterface(ctx context.Context, vm *VM) (*NetworkInterface, error)
	SetVMNetwork(ctx context.Context, vm *VM, network string) error
	RenameVM(ctx context.Context, vm *VM, name, description string) (*VM, error)
	AttachCloudInit(ctx context.Context, vm *VM, iso []byte) error
	GetDataDiskSize(ctx context.Context, vm *VM) (uint64, error)
	ResizeDataDisk(ctx context.Context, vm *VM, size uint64) error
	StartVM(ctx context.Context, vm *VM) error
	GuestAddresses(ctx context.Context, vm *VM) ([]string, error)
}
