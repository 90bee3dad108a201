// Package cloudinit 生成存储节点的 cloud-init NoCloud 配置
package cloudinit

import (
	"fmt"
	"net/netip"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DefaultInterfaceName 存储网卡在节点内的名称
const DefaultInterfaceName = "storage0"

// NodeConfig 单个存储节点的配置
type NodeConfig struct {
	Hostname       string
	AuthorizedKeys []string
	MAC            string       // 存储网卡 MAC
	Address        netip.Prefix // 存储网络地址，如：172.31.100.101/24
	MTU            int
	RunCmd         []string
}

// Documents NoCloud 数据源的三个文件
type Documents struct {
	MetaData      string
	UserData      string
	NetworkConfig string
}

// Generator cloud-init 配置生成器
type Generator struct{}

// NewGenerator 创建新的 cloud-init 生成器
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateMetaData 生成 meta-data 文件内容
func (g *Generator) GenerateMetaData(instanceID, hostname string) (string, error) {
	if hostname == "" {
		hostname = "localhost"
	}
	if instanceID == "" {
		instanceID = "i-" + uuid.NewString()
	}

	yamlData, err := yaml.Marshal(&MetaData{
		InstanceID:    instanceID,
		LocalHostname: hostname,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal meta-data to YAML: %w", err)
	}
	return string(yamlData), nil
}

// GenerateUserData 生成 user-data 文件内容
func (g *Generator) GenerateUserData(userData *UserData) (string, error) {
	if userData == nil {
		return "", fmt.Errorf("userData is required")
	}

	yamlData, err := yaml.Marshal(userData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data to YAML: %w", err)
	}

	// 添加 cloud-config header
	return "#cloud-config\n" + string(yamlData), nil
}

// GenerateNetworkConfig 生成 network-config 文件内容
func (g *Generator) GenerateNetworkConfig(networkData *NetworkData) (string, error) {
	if networkData == nil {
		return "", fmt.Errorf("networkData is required")
	}
	if networkData.Version == 0 {
		networkData.Version = 2
	}

	yamlData, err := yaml.Marshal(networkData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal network-config to YAML: %w", err)
	}
	return string(yamlData), nil
}

// GenerateNode 生成存储节点的全部 cloud-init 文件
// root 只允许通过公钥登录，密码被锁定
func (g *Generator) GenerateNode(cfg *NodeConfig) (*Documents, error) {
	if cfg == nil {
		return nil, fmt.Errorf("node config is required")
	}
	if cfg.Hostname == "" {
		return nil, fmt.Errorf("hostname is required")
	}
	if !cfg.Address.IsValid() {
		return nil, fmt.Errorf("invalid address for %s", cfg.Hostname)
	}
	if len(cfg.AuthorizedKeys) == 0 {
		return nil, fmt.Errorf("no authorized key for %s", cfg.Hostname)
	}

	metaData, err := g.GenerateMetaData("i-"+uuid.NewString(), cfg.Hostname)
	if err != nil {
		return nil, err
	}

	disableRoot := false
	sshPwauth := false
	userData, err := g.GenerateUserData(&UserData{
		Hostname:          cfg.Hostname,
		DisableRoot:       &disableRoot,
		SSHPwauth:         &sshPwauth,
		SSHAuthorizedKeys: cfg.AuthorizedKeys,
		RunCmd:            append([]string{"passwd -l root"}, cfg.RunCmd...),
	})
	if err != nil {
		return nil, err
	}

	ethernet := Ethernet{
		SetName:   DefaultInterfaceName,
		Addresses: []string{cfg.Address.String()},
		MTU:       cfg.MTU,
	}
	if cfg.MAC != "" {
		ethernet.Match = &Match{MACAddress: cfg.MAC}
	}
	networkConfig, err := g.GenerateNetworkConfig(&NetworkData{
		Version:   2,
		Ethernets: map[string]Ethernet{DefaultInterfaceName: ethernet},
	})
	if err != nil {
		return nil, err
	}

	return &Documents{
		MetaData:      metaData,
		UserData:      userData,
		NetworkConfig: networkConfig,
	}, nil
}
