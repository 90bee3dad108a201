package qemuimg

import "context"

// ImageInfo qemu-img info 的结果
type ImageInfo struct {
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	VirtualSize uint64 `json:"virtual-size"`
	ActualSize  uint64 `json:"actual-size"`
}

// Inspector 定义了读取镜像信息的接口
// 用于抽象 qemu-img 操作，便于测试和 mock
type Inspector interface {
	// Info 获取镜像信息
	Info(ctx context.Context, imagePath string) (*ImageInfo, error)
	// Check 检查镜像完整性，raw 格式不支持检查，直接返回
	Check(ctx context.Context, imagePath, format string) error
}
