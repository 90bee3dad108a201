package qemuimg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// Client 封装 qemu-img 命令行工具的操作
type Client struct {
	qemuImgPath string
	timeout     time.Duration
}

var _ Inspector = (*Client)(nil)

// New 创建新的 qemuimg client
// qemuImgPath 是 qemu-img 的路径，如果为空则使用默认的 "qemu-img"
func New(qemuImgPath string) *Client {
	if qemuImgPath == "" {
		qemuImgPath = "qemu-img"
	}
	return &Client{
		qemuImgPath: qemuImgPath,
		timeout:     5 * time.Minute,
	}
}

// WithTimeout 设置操作超时时间
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

// Info 获取镜像信息
func (c *Client) Info(ctx context.Context, imagePath string) (*ImageInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.qemuImgPath, "info", "--output=json", imagePath)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get image info %s: %w", imagePath, err)
	}
	return parseInfo(output)
}

func parseInfo(output []byte) (*ImageInfo, error) {
	info := &ImageInfo{}
	if err := json.Unmarshal(output, info); err != nil {
		return nil, fmt.Errorf("failed to decode image info: %w", err)
	}
	if info.Format == "" {
		return nil, fmt.Errorf("image info has no format")
	}
	return info, nil
}

// Check 检查镜像完整性
func (c *Client) Check(ctx context.Context, imagePath, format string) error {
	if format == "raw" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{"check"}
	if format != "" {
		args = append(args, "-f", format)
	}
	args = append(args, imagePath)

	output, err := exec.CommandContext(ctx, c.qemuImgPath, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to check image %s: %w, output: %s", imagePath, err, string(output))
	}
	return nil
}
