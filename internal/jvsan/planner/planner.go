// Package planner 根据存储资源数量给出可选的集群拓扑
package planner

import (
	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/samber/lo"
)

const (
	// MinNodes 支持的最少节点数
	MinNodes = 2
	// MaxNodes 支持的最多节点数
	MaxNodes = 16

	// DefaultReservedSystemDiskSize 每个存储资源上为节点系统盘预留的空间
	DefaultReservedSystemDiskSize uint64 = 10 << 30
	// DefaultUsageRatio 数据盘可使用的剩余空间比例
	DefaultUsageRatio = 0.99
)

// Table 节点数到可选拓扑的映射，同一节点数下按推荐程度排序
type Table map[int][]entity.Topology

// Params 容量计算参数
type Params struct {
	ReservedSystemDiskSize uint64  `mapstructure:"reserved_system_disk_size" yaml:"reserved_system_disk_size"`
	UsageRatio             float64 `mapstructure:"usage_ratio"               yaml:"usage_ratio"`
}

// DefaultParams 默认容量计算参数
func DefaultParams() Params {
	return Params{
		ReservedSystemDiskSize: DefaultReservedSystemDiskSize,
		UsageRatio:             DefaultUsageRatio,
	}
}

func disperse(redundancy, capacity int) entity.Topology {
	return entity.Topology{Layout: entity.LayoutDisperse, Redundancy: redundancy, CapacityMultiplier: capacity}
}

func replica(redundancy, capacity int) entity.Topology {
	return entity.Topology{Layout: entity.LayoutReplica, Redundancy: redundancy, CapacityMultiplier: capacity}
}

// DefaultTable 返回默认规划表的一份拷贝
//
// 纠删码：capacity = n - redundancy；副本：capacity × redundancy = n
func DefaultTable() Table {
	return Table{
		2:  {replica(2, 1)},
		3:  {disperse(1, 2), replica(3, 1)},
		4:  {replica(2, 2), disperse(1, 3)},
		5:  {disperse(1, 4)},
		6:  {disperse(2, 4), replica(2, 3), replica(3, 2)},
		7:  {disperse(3, 4)},
		8:  {disperse(3, 5), replica(2, 4)},
		9:  {disperse(3, 6), replica(3, 3)},
		10: {replica(2, 5), disperse(3, 7)},
		11: {disperse(3, 8)},
		12: {disperse(4, 8), replica(2, 6), replica(3, 4)},
		13: {disperse(4, 9)},
		14: {disperse(4, 10), replica(2, 7)},
		15: {disperse(4, 11), replica(3, 5)},
		16: {disperse(4, 12), replica(2, 8)},
	}
}

// Planner 拓扑规划器
// 规划表在构造时注入，之后只读
type Planner struct {
	table  Table
	params Params
}

// New 创建规划器
func New(table Table, params Params) *Planner {
	copied := make(Table, len(table))
	for n, topologies := range table {
		copied[n] = append([]entity.Topology(nil), topologies...)
	}
	if params.UsageRatio <= 0 || params.UsageRatio > 1 {
		params.UsageRatio = DefaultUsageRatio
	}
	return &Planner{
		table:  copied,
		params: params,
	}
}

// NewDefault 使用默认规划表和参数创建规划器
func NewDefault() *Planner {
	return New(DefaultTable(), DefaultParams())
}

// Params 返回容量计算参数
func (p *Planner) Params() Params {
	return p.params
}

// Plan 返回 nodeCount 个节点可选的拓扑
// 不支持的节点数返回空
func (p *Planner) Plan(nodeCount int) []entity.Topology {
	topologies, ok := p.table[nodeCount]
	if !ok {
		return nil
	}
	return append([]entity.Topology(nil), topologies...)
}

// Supports 判断 topology 是否是 nodeCount 个节点的可选拓扑
func (p *Planner) Supports(nodeCount int, topology entity.Topology) bool {
	return lo.Contains(p.table[nodeCount], topology)
}

// Lookup 在 nodeCount 个节点的可选拓扑中查找布局和冗余度匹配的一项
func (p *Planner) Lookup(nodeCount int, layout entity.Layout, redundancy int) (entity.Topology, bool) {
	return lo.Find(p.table[nodeCount], func(t entity.Topology) bool {
		return t.Layout == layout && t.Redundancy == redundancy
	})
}

// BrickSize 每个 brick 的大小
// 取所有存储资源中最小的剩余空间，扣除系统盘预留后按比例折算
func (p *Planner) BrickSize(resources []entity.StorageResource) uint64 {
	if len(resources) == 0 {
		return 0
	}
	minAvailable := lo.MinBy(resources, func(a, b entity.StorageResource) bool {
		return a.Available < b.Available
	}).Available
	if minAvailable <= p.params.ReservedSystemDiskSize {
		return 0
	}
	return uint64(float64(minAvailable-p.params.ReservedSystemDiskSize) * p.params.UsageRatio)
}

// AvailableSpace 拓扑的可用空间
func AvailableSpace(brickSize uint64, topology entity.Topology) uint64 {
	return brickSize * uint64(topology.CapacityMultiplier)
}

// Options 返回带可用空间的可选拓扑
func (p *Planner) Options(resources []entity.StorageResource) []entity.TopologyOption {
	brickSize := p.BrickSize(resources)
	return lo.Map(p.Plan(len(resources)), func(t entity.Topology, _ int) entity.TopologyOption {
		return entity.TopologyOption{
			Topology:       t,
			AvailableSpace: AvailableSpace(brickSize, t),
		}
	})
}

// Truncate2048 向下取整到 2048 字节的整数倍
func Truncate2048(size uint64) uint64 {
	return size &^ 2047
}

// DataDiskSize 数据盘扩容后的大小
// 当前数据盘占用的空间会被释放后重新分配，因此与存储池剩余空间一起计算
func (p *Planner) DataDiskSize(poolAvailable, currentSize uint64) uint64 {
	return Truncate2048(uint64(float64(poolAvailable+currentSize) * p.params.UsageRatio))
}
