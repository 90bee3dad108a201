package entity

// Layout 卷布局
type Layout string

const (
	LayoutReplica  Layout = "replica"
	LayoutDisperse Layout = "disperse"
)

// Topology 一种可选的集群拓扑
type Topology struct {
	Layout             Layout `json:"layout"`
	Redundancy         int    `json:"redundancy"`
	CapacityMultiplier int    `json:"capacity"` // 可用容量 = 单个 brick 大小 × CapacityMultiplier
}

// TopologyOption 附带可用空间的拓扑
type TopologyOption struct {
	Topology
	AvailableSpace uint64 `json:"availableSpace"` // 字节
}

// ComputeTopologiesRequest 计算可选拓扑请求
type ComputeTopologiesRequest struct {
	StorageResourceIDs []string `json:"storageResourceIDs" binding:"required"`
}

// ComputeTopologiesResponse 计算可选拓扑响应
type ComputeTopologiesResponse struct {
	BrickSize uint64           `json:"brickSize"`
	Options   []TopologyOption `json:"options"`
}
