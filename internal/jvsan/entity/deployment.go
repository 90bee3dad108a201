package entity

import "time"

// DeploymentState 部署状态
type DeploymentState string

const (
	DeploymentRunning   DeploymentState = "running"
	DeploymentSucceeded DeploymentState = "succeeded"
	DeploymentFailed    DeploymentState = "failed"
)

// Deployment 一次集群部署的进度
// 部署失败不会回滚，已完成的步骤用于人工清理
type Deployment struct {
	ID      string          `json:"id"`
	Backend string          `json:"backend"`
	State   DeploymentState `json:"state"`
	Error   string          `json:"error,omitempty"`
	// Addresses 分配给节点的存储网络地址，部署未结束或失败时仍然占用
	Addresses []string `json:"addresses,omitempty"`
	// VMs 计划创建的虚拟机名称，用于失败后清理
	VMs       []string         `json:"vms,omitempty"`
	Steps     []DeploymentStep `json:"steps"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// DeploymentStep 部署中的一个步骤
type DeploymentStep struct {
	Name       string          `json:"name"`
	State      DeploymentState `json:"state"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
}

// DescribeDeploymentRequest 查询部署进度请求
type DescribeDeploymentRequest struct {
	DeploymentID string `json:"deploymentID" binding:"required"`
}
