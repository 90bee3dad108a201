// Package config 加载 jvsan 的配置
//
// 默认值来自环境变量，可选的 YAML 文件覆盖默认值，环境变量 JVSAN_<SECTION>_<KEY> 优先级最高。
package config

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jimyag/jvsan/internal/jvsan/planner"
	"github.com/jimyag/jvsan/pkg/gluster"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultVLAN 存储网络默认的 VLAN
const DefaultVLAN = 100

type Config struct {
	// DataDir 是 jvsan 数据目录
	// 用于存储集群配置数据库、服务密钥和锁文件
	// 可以通过环境变量 JVSAN_DATA_DIR 配置
	// 默认：~/.local/share/jvsan
	DataDir string `mapstructure:"data_dir"`

	Address string `mapstructure:"address"`

	// Hosts 宿主机名称到 libvirt URI 的映射
	// 如：qemu:///system、qemu+ssh://root@host1/system
	Hosts map[string]string `mapstructure:"hosts"`

	Template TemplateConfig `mapstructure:"template"`
	Network  NetworkConfig  `mapstructure:"network"`
	Gluster  GlusterConfig  `mapstructure:"gluster"`
	SSH      SSHConfig      `mapstructure:"ssh"`
	Timeouts TimeoutConfig  `mapstructure:"timeouts"`
	Planner  planner.Params `mapstructure:"planner"`

	// NodeConcurrency 同时准备的节点数，0 表示不限制
	NodeConcurrency int `mapstructure:"node_concurrency"`
}

// TemplateConfig 黄金模板
type TemplateConfig struct {
	ImagePath    string   `mapstructure:"image_path"` // 默认为 <data_dir>/xosan.qcow2
	Network      string   `mapstructure:"network"`    // 导入后网卡接入的网络
	MemoryMiB    uint     `mapstructure:"memory_mib"`
	VCPUs        uint     `mapstructure:"vcpus"`
	DataDiskSize uint64   `mapstructure:"data_disk_size"` // 数据盘初始大小，启动前扩容
	RunCmd       []string `mapstructure:"runcmd"`
}

// NetworkConfig 存储网络
type NetworkConfig struct {
	Name       string    `mapstructure:"name"`
	Bridge     string    `mapstructure:"bridge"`
	Parent     string    `mapstructure:"parent"` // 宿主机上承载存储网络的物理网卡
	VLAN       int       `mapstructure:"vlan"`
	MTU        int       `mapstructure:"mtu"`
	CIDR       net.IPNet `mapstructure:"cidr"`
	HostOffset int       `mapstructure:"host_offset"` // 宿主机网桥地址起始偏移
	NodeOffset int       `mapstructure:"node_offset"` // 存储节点地址起始偏移
}

// Prefix 存储网络前缀
func (n NetworkConfig) Prefix() netip.Prefix {
	addr, ok := netip.AddrFromSlice(n.CIDR.IP)
	if !ok {
		return netip.Prefix{}
	}
	ones, _ := n.CIDR.Mask.Size()
	return netip.PrefixFrom(addr.Unmap(), ones).Masked()
}

// GlusterConfig 卷参数
type GlusterConfig struct {
	VolumeName string `mapstructure:"volume_name"`
	BrickPath  string `mapstructure:"brick_path"`
	// Tuning 为空时使用内置的调优参数
	Tuning []gluster.Option `mapstructure:"tuning"`
}

// SSHConfig 远程命令通道
type SSHConfig struct {
	User        string        `mapstructure:"user"`
	Port        int           `mapstructure:"port"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// TimeoutConfig 超时设置
type TimeoutConfig struct {
	Boot         time.Duration `mapstructure:"boot"`          // 等待节点获得地址
	PollInterval time.Duration `mapstructure:"poll_interval"` // 查询 guest agent 的间隔
	Lock         time.Duration `mapstructure:"lock"`          // 获取部署锁
	Command      time.Duration `mapstructure:"command"`       // 单条远程命令
}

// LockDir 锁文件目录
func (c *Config) LockDir() string {
	return filepath.Join(c.DataDir, "locks")
}

// KeyDir 服务密钥目录
func (c *Config) KeyDir() string {
	return filepath.Join(c.DataDir, "keys")
}

// DatabasePath 集群配置数据库
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "jvsan.db")
}

// New 使用默认值和环境变量创建配置
func New() (*Config, error) {
	return Load("")
}

// Load 读取配置文件，path 为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JVSAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("template.image_path")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToIPNetHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		))); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Template.ImagePath == "" {
		cfg.Template.ImagePath = filepath.Join(cfg.DataDir, "xosan.qcow2")
	}
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = map[string]string{"localhost": getLibvirtURI()}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", getDataDir())
	v.SetDefault("address", getAddress())

	v.SetDefault("template.network", "default")
	v.SetDefault("template.memory_mib", 2048)
	v.SetDefault("template.vcpus", 2)
	v.SetDefault("template.data_disk_size", 1<<30)

	v.SetDefault("network.name", "jvsan-storage")
	v.SetDefault("network.bridge", "jvsanbr0")
	v.SetDefault("network.parent", "eth0")
	v.SetDefault("network.vlan", DefaultVLAN)
	v.SetDefault("network.mtu", 9000)
	v.SetDefault("network.cidr", "172.31.100.0/24")
	v.SetDefault("network.host_offset", 1)
	v.SetDefault("network.node_offset", 101)

	v.SetDefault("gluster.volume_name", "xosan")
	v.SetDefault("gluster.brick_path", gluster.DefaultBrickPath)

	v.SetDefault("ssh.user", "root")
	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.dial_timeout", "10s")

	v.SetDefault("timeouts.boot", "10m")
	v.SetDefault("timeouts.poll_interval", "2s")
	v.SetDefault("timeouts.lock", "30s")
	v.SetDefault("timeouts.command", "5m")

	v.SetDefault("planner.reserved_system_disk_size", planner.DefaultReservedSystemDiskSize)
	v.SetDefault("planner.usage_ratio", planner.DefaultUsageRatio)

	v.SetDefault("node_concurrency", 0)
}

// Validate 检查配置
func (c *Config) Validate() error {
	prefix := c.Network.Prefix()
	if !prefix.IsValid() || !prefix.Addr().Is4() {
		return fmt.Errorf("network.cidr must be an IPv4 prefix")
	}
	size := 1 << (32 - prefix.Bits())
	if c.Network.HostOffset < 1 || c.Network.NodeOffset < 1 ||
		c.Network.HostOffset >= size-1 || c.Network.NodeOffset >= size-1 {
		return fmt.Errorf("network offsets must be inside %s", prefix)
	}
	if c.Network.VLAN < 1 || c.Network.VLAN > 4094 {
		return fmt.Errorf("network.vlan must be in [1, 4094]")
	}
	if c.Planner.UsageRatio <= 0 || c.Planner.UsageRatio > 1 {
		return fmt.Errorf("planner.usage_ratio must be in (0, 1]")
	}
	if c.Timeouts.Boot <= 0 || c.Timeouts.PollInterval <= 0 {
		return fmt.Errorf("timeouts.boot and timeouts.poll_interval must be positive")
	}
	if c.Gluster.VolumeName == "" {
		return fmt.Errorf("gluster.volume_name is required")
	}
	return nil
}

// getLibvirtURI 获取 libvirt URI，优先使用环境变量
func getLibvirtURI() string {
	if uri := os.Getenv("LIBVIRT_URI"); uri != "" {
		return uri
	}
	if uri := os.Getenv("JVSAN_LIBVIRT_URI"); uri != "" {
		return uri
	}
	return "qemu:///system"
}

// getDataDir 获取数据目录，优先使用环境变量
func getDataDir() string {
	if dir := os.Getenv("JVSAN_DATA_DIR"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "jvsan")
	}
	return filepath.Join(".", "data")
}

// getAddress 获取绑定地址，优先使用环境变量 JVSAN_ADDRESS
func getAddress() string {
	if addr := os.Getenv("JVSAN_ADDRESS"); addr != "" {
		return addr
	}
	return "0.0.0.0:7788"
}
