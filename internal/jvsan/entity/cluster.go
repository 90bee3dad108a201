package entity

import "time"

// VMRef 存储节点虚拟机
type VMRef struct {
	ID   string `json:"id"`             // 虚拟机 UUID
	Name string `json:"name,omitempty"` // 虚拟机名称
	IP   string `json:"ip"`             // 存储网络地址
}

// Node 集群中的一个存储节点
type Node struct {
	Host string `json:"host"`
	Pool string `json:"pool,omitempty"` // 节点所在的存储池
	VM   VMRef  `json:"vm"`
}

// Address 节点在存储网络上的地址
func (n Node) Address() string {
	return n.VM.IP
}

// ClusterConfig 部署完成后持久化的集群配置
// 每个存储后端只写入一次
type ClusterConfig struct {
	Backend    string    `json:"backend"` // 存储后端名称
	Nodes      []Node    `json:"nodes"`   // 顺序即 brick 顺序
	Network    string    `json:"network"` // 存储网络名称
	Topology   Topology  `json:"topology"`
	VolumeName string    `json:"volumeName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CreateClusterRequest 创建集群请求
type CreateClusterRequest struct {
	StorageResourceIDs []string `json:"storageResourceIDs" binding:"required"`
	Layout             Layout   `json:"layout" binding:"required"`
	Redundancy         int      `json:"redundancy" binding:"required"`
	VLAN               int      `json:"vlan,omitempty"` // 为 0 时使用配置中的 VLAN
}

// CreateClusterResponse 创建集群响应
type CreateClusterResponse struct {
	Cluster      *ClusterConfig `json:"cluster"`
	DeploymentID string         `json:"deploymentID"`
}

// DescribeClustersRequest 查询集群请求
type DescribeClustersRequest struct {
	Backends []string `json:"backends,omitempty"`
}

// DescribeClustersResponse 查询集群响应
type DescribeClustersResponse struct {
	Clusters []ClusterConfig `json:"clusters"`
}
