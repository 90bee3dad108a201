package model

import "time"

// Deployment 部署记录表
type Deployment struct {
	ID      string `gorm:"primaryKey;type:text;column:id" json:"id"` // dep-{递增 ID}
	Backend string `gorm:"type:text;not null;index:idx_deployments_backend;column:backend" json:"backend"`
	State   string `gorm:"type:text;not null;column:state" json:"state"` // running, succeeded, failed
	Error   string `gorm:"type:text;column:error" json:"error"`
	// AddressRecord 分配给节点的存储网络地址，JSON 数组
	AddressRecord string `gorm:"type:text;column:addresses" json:"addresses"`
	// VMRecord 计划创建的虚拟机名称，JSON 数组
	VMRecord  string           `gorm:"type:text;column:vms" json:"vms"`
	Steps     []DeploymentStep `gorm:"foreignKey:DeploymentID;references:ID" json:"steps"`
	CreatedAt time.Time        `gorm:"type:datetime;not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time        `gorm:"type:datetime;not null;column:updated_at" json:"updated_at"`
}

// TableName 指定表名
func (Deployment) TableName() string {
	return "deployments"
}

// DeploymentStep 部署步骤表
type DeploymentStep struct {
	ID           uint       `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	DeploymentID string     `gorm:"type:text;not null;index:idx_deployment_steps_deployment_id;column:deployment_id" json:"deploymentID"`
	Name         string     `gorm:"type:text;not null;column:name" json:"name"`
	State        string     `gorm:"type:text;not null;column:state" json:"state"`
	Error        string     `gorm:"type:text;column:error" json:"error"`
	StartedAt    time.Time  `gorm:"type:datetime;not null;column:started_at" json:"startedAt"`
	FinishedAt   *time.Time `gorm:"type:datetime;column:finished_at" json:"finishedAt"`
}

// TableName 指定表名
func (DeploymentStep) TableName() string {
	return "deployment_steps"
}
