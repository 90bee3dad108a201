package cloudinit

// MetaData 标准的 cloud-init meta-data 结构
type MetaData struct {
	InstanceID    string `yaml:"instance-id"`
	LocalHostname string `yaml:"local-hostname"`
}

// UserData 标准的 cloud-init user-data 结构
// 只包含存储节点需要的字段
type UserData struct {
	Hostname          string      `yaml:"hostname,omitempty"`
	DisableRoot       *bool       `yaml:"disable_root,omitempty"`        // 为 false 时公钥写入 root
	SSHPwauth         *bool       `yaml:"ssh_pwauth,omitempty"`          // 禁止 SSH 密码认证
	SSHAuthorizedKeys []string    `yaml:"ssh_authorized_keys,omitempty"` // 授权公钥
	SSHKeys           *SSHKeys    `yaml:"ssh_keys,omitempty"`            // SSH 主机密钥
	Timezone          string      `yaml:"timezone,omitempty"`
	Bootcmd           []string    `yaml:"bootcmd,omitempty"`
	RunCmd            []string    `yaml:"runcmd,omitempty"`
	WriteFiles        []WriteFile `yaml:"write_files,omitempty"`
}

// SSHKeys SSH 主机密钥配置
type SSHKeys struct {
	ED25519Private string `yaml:"ed25519_private,omitempty"`
	ED25519Public  string `yaml:"ed25519_public,omitempty"`
}

// WriteFile cloud-init 写入文件配置
type WriteFile struct {
	Path        string `yaml:"path"`
	Content     string `yaml:"content"`
	Owner       string `yaml:"owner,omitempty"`
	Permissions string `yaml:"permissions,omitempty"`
}

// NetworkData 标准的 cloud-init network-config v2 结构
type NetworkData struct {
	Version   int                 `yaml:"version"`
	Ethernets map[string]Ethernet `yaml:"ethernets,omitempty"`
}

// Ethernet 以太网接口配置
type Ethernet struct {
	Match     *Match   `yaml:"match,omitempty"`
	SetName   string   `yaml:"set-name,omitempty"`
	DHCP4     bool     `yaml:"dhcp4"`
	Addresses []string `yaml:"addresses,omitempty"` // CIDR 格式，如：172.31.100.101/24
	MTU       int      `yaml:"mtu,omitempty"`
}

// Match 按 MAC 地址匹配网卡
type Match struct {
	MACAddress string `yaml:"macaddress"`
}
