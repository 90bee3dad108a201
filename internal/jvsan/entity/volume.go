package entity

// Brick 卷中的一个 brick
type Brick struct {
	Config string `json:"config"`
	IP     string `json:"ip"`
	VM     *VMRef `json:"vm"`            // 未能匹配到节点时为 nil
	MAC    string `json:"mac,omitempty"` // 本地邻居表中查不到时为空
}

// Peer 可信存储池成员
type Peer struct {
	UUID     string `json:"uuid"`
	Hostname string `json:"hostname"`
	State    string `json:"state"`
	MAC      string `json:"mac,omitempty"`
}

// VolumeInfo 卷的运行时信息
type VolumeInfo struct {
	Backend string            `json:"backend"`
	Fields  map[string]string `json:"fields"`
	Options map[string]string `json:"options"`
	Bricks  []Brick           `json:"bricks"`
	Peers   []Peer            `json:"peers"`
}

// DescribeVolumeRequest 查询卷信息请求
type DescribeVolumeRequest struct {
	Backend string `json:"backend" binding:"required"`
}

// ListPeersRequest 查询存储池成员请求
type ListPeersRequest struct {
	Backend string `json:"backend" binding:"required"`
	Address string `json:"address,omitempty"` // 为空时依次尝试集群中的节点
}

// ListPeersResponse 查询存储池成员响应
type ListPeersResponse struct {
	Peers []Peer `json:"peers"`
}
