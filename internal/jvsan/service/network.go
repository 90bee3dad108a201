package service

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/jimyag/jvsan/internal/jvsan/config"
	"github.com/jimyag/jvsan/pkg/libvirt"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// NetworkResult 存储网络的部署结果
type NetworkResult struct {
	Name          string
	Prefix        netip.Prefix
	HostAddresses map[string]netip.Prefix // 宿主机名称 -> 网桥地址
}

// NetworkProvisioner 在宿主机上创建存储网络
type NetworkProvisioner struct {
	hypervisor libvirt.Hypervisor
	cfg        config.NetworkConfig
}

// NewNetworkProvisioner 创建存储网络部署器
func NewNetworkProvisioner(hypervisor libvirt.Hypervisor, cfg config.NetworkConfig) *NetworkProvisioner {
	return &NetworkProvisioner{hypervisor: hypervisor, cfg: cfg}
}

// Provision 在 hosts 上创建带 VLAN 的存储网桥和 libvirt 网络
//
// 宿主机网桥地址从网段的第 HostOffset 个地址开始，按宿主机在资源池中的顺序递增，
// 同一台宿主机在不同集群中得到相同的地址。vlan 为 0 时使用配置中的 VLAN，存储网络必须带 VLAN 标签。
// 任何一台宿主机失败都会中止整个部署。
func (p *NetworkProvisioner) Provision(ctx context.Context, pool *AddressPool, hosts []string, vlan int) (*NetworkResult, error) {
	logger := zerolog.Ctx(ctx)

	if vlan == 0 {
		vlan = p.cfg.VLAN
	}
	if vlan < 1 || vlan > maxVLAN {
		return nil, fmt.Errorf("storage network requires a VLAN tag in [1, %d], got %d", maxVLAN, vlan)
	}

	allHosts := p.hypervisor.Hosts()
	result := &NetworkResult{
		Name:          p.cfg.Name,
		Prefix:        pool.Prefix(),
		HostAddresses: make(map[string]netip.Prefix, len(hosts)),
	}

	for _, host := range lo.Uniq(hosts) {
		index := lo.IndexOf(allHosts, host)
		if index < 0 {
			return nil, fmt.Errorf("host %s is not configured", host)
		}
		addr, err := pool.Nth(p.cfg.HostOffset + index)
		if err != nil {
			return nil, fmt.Errorf("address of host %s: %w", host, err)
		}
		pool.Reserve(addr)
		address := pool.WithBits(addr)

		logger.Info().
			Str("host", host).
			Str("bridge", p.cfg.Bridge).
			Int("vlan", vlan).
			Str("address", address.String()).
			Msg("Configuring storage network on host")

		if err := p.hypervisor.CreateHostInterface(ctx, host, &libvirt.HostInterfaceSpec{
			Bridge:  p.cfg.Bridge,
			Parent:  p.cfg.Parent,
			VLAN:    vlan,
			MTU:     p.cfg.MTU,
			Address: address,
		}); err != nil {
			return nil, fmt.Errorf("create storage bridge on %s: %w", host, err)
		}

		if err := p.hypervisor.CreateNetwork(ctx, host, &libvirt.NetworkSpec{
			Name:   p.cfg.Name,
			Bridge: p.cfg.Bridge,
		}); err != nil {
			return nil, fmt.Errorf("create storage network on %s: %w", host, err)
		}

		result.HostAddresses[host] = address
	}

	logger.Info().Str("network", result.Name).Int("hosts", len(result.HostAddresses)).Msg("Storage network ready")
	return result, nil
}
