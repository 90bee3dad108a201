// Package gluster 封装 GlusterFS 命令行的命令构造与输出解析
//
// 所有命令以纯文本形式构造，通过远程命令通道在存储节点上执行。
package gluster

import (
	"fmt"
	"strings"
)

// Layout 卷布局
type Layout string

const (
	// LayoutReplica 副本卷，每份数据保存 redundancy 份
	LayoutReplica Layout = "replica"
	// LayoutDisperse 纠删码卷，可容忍 redundancy 个节点失效
	LayoutDisperse Layout = "disperse"
)

// DefaultBrickPath 节点上 brick 的默认目录
const DefaultBrickPath = "/bricks/xosan/xosandir"

// Option 卷参数
type Option struct {
	Key   string `mapstructure:"key"   yaml:"key"   json:"key"`
	Value string `mapstructure:"value" yaml:"value" json:"value"`
}

// DefaultTuning 返回创建卷后依次设置的调优参数
// 副本卷额外开启数据自愈
func DefaultTuning(layout Layout) []Option {
	return WithLayoutTuning([]Option{
		{Key: "network.remote-dio", Value: "enable"},
		{Key: "cluster.eager-lock", Value: "enable"},
		{Key: "performance.io-cache", Value: "off"},
		{Key: "performance.read-ahead", Value: "off"},
		{Key: "performance.quick-read", Value: "off"},
		{Key: "performance.strict-write-ordering", Value: "off"},
		{Key: "performance.stat-prefetch", Value: "on"},
		{Key: "client.event-threads", Value: "8"},
		{Key: "server.event-threads", Value: "8"},
		{Key: "performance.io-thread-count", Value: "64"},
		{Key: "features.shard", Value: "on"},
		{Key: "features.shard-block-size", Value: "512MB"},
		{Key: "cluster.quorum-type", Value: "auto"},
		{Key: "cluster.server-quorum-type", Value: "server"},
	}, layout)
}

// WithLayoutTuning 在 options 之后追加 layout 必需的参数
// options 中已经设置的 key 不会重复追加，返回新的切片
func WithLayoutTuning(options []Option, layout Layout) []Option {
	result := append([]Option(nil), options...)
	if layout != LayoutReplica {
		return result
	}
	for _, extra := range []Option{{Key: "cluster.data-self-heal", Value: "on"}} {
		if !hasOption(result, extra.Key) {
			result = append(result, extra)
		}
	}
	return result
}

func hasOption(options []Option, key string) bool {
	for _, o := range options {
		if o.Key == key {
			return true
		}
	}
	return false
}

// PeerProbe 将 address 加入当前节点所在的可信存储池
func PeerProbe(address string) string {
	return "gluster peer probe " + address
}

// VolumeCreate 构造创建卷的命令
// brick 顺序与 addresses 顺序一致
func VolumeCreate(volume string, layout Layout, redundancy int, addresses []string, brickPath string) (string, error) {
	if volume == "" {
		return "", fmt.Errorf("volume name is required")
	}
	if len(addresses) == 0 {
		return "", fmt.Errorf("no brick address")
	}
	if redundancy < 1 {
		return "", fmt.Errorf("invalid redundancy %d", redundancy)
	}
	if brickPath == "" {
		brickPath = DefaultBrickPath
	}

	var layoutArgs string
	switch layout {
	case LayoutReplica:
		layoutArgs = fmt.Sprintf("replica %d", redundancy)
	case LayoutDisperse:
		layoutArgs = fmt.Sprintf("disperse %d redundancy %d", len(addresses), redundancy)
	default:
		return "", fmt.Errorf("unknown layout %q", layout)
	}

	bricks := make([]string, 0, len(addresses))
	for _, address := range addresses {
		bricks = append(bricks, address+":"+brickPath)
	}

	return fmt.Sprintf("gluster volume create %s %s %s force", volume, layoutArgs, strings.Join(bricks, " ")), nil
}

// VolumeSet 设置卷参数
func VolumeSet(volume string, option Option) string {
	return fmt.Sprintf("gluster volume set %s %s %s", volume, option.Key, option.Value)
}

// VolumeStart 启动卷
func VolumeStart(volume string) string {
	return "gluster volume start " + volume
}

// VolumeInfo 查询卷信息
func VolumeInfo(volume string) string {
	return "gluster volume info " + volume
}

// PoolList 查询可信存储池成员
func PoolList() string {
	return "gluster pool list"
}
