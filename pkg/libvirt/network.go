package libvirt

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// CreateHostInterface 实现 Hypervisor 接口
// 网桥已存在时不做修改
func (c *Client) CreateHostInterface(ctx context.Context, host string, spec *HostInterfaceSpec) error {
	logger := zerolog.Ctx(ctx).With().Str("host", host).Str("bridge", spec.Bridge).Logger()

	l, err := c.conn(host)
	if err != nil {
		return err
	}

	if _, err := l.InterfaceLookupByName(spec.Bridge); err == nil {
		logger.Info().Msg("Host bridge already exists")
		return nil
	}

	ifaceXML, err := buildHostInterfaceXML(spec)
	if err != nil {
		return err
	}
	iface, err := l.InterfaceDefineXML(ifaceXML, 0)
	if err != nil {
		return fmt.Errorf("define host interface %s on %s: %w", spec.Bridge, host, err)
	}
	if err := l.InterfaceCreate(iface, 0); err != nil {
		return fmt.Errorf("start host interface %s on %s: %w", spec.Bridge, host, err)
	}

	logger.Info().
		Str("parent", spec.Parent).
		Int("vlan", spec.VLAN).
		Int("mtu", spec.MTU).
		Str("address", spec.Address.String()).
		Msg("Host bridge created")
	return nil
}

// CreateNetwork 实现 Hypervisor 接口
// 网络已存在时不做修改
func (c *Client) CreateNetwork(ctx context.Context, host string, spec *NetworkSpec) error {
	logger := zerolog.Ctx(ctx).With().Str("host", host).Str("network", spec.Name).Logger()

	l, err := c.conn(host)
	if err != nil {
		return err
	}

	if _, err := l.NetworkLookupByName(spec.Name); err == nil {
		logger.Info().Msg("Network already exists")
		return nil
	}

	netXML, err := buildNetworkXML(spec)
	if err != nil {
		return err
	}
	network, err := l.NetworkDefineXML(netXML)
	if err != nil {
		return fmt.Errorf("define network %s on %s: %w", spec.Name, host, err)
	}
	if err := l.NetworkCreate(network); err != nil {
		return fmt.Errorf("start network %s on %s: %w", spec.Name, host, err)
	}
	if err := l.NetworkSetAutostart(network, 1); err != nil {
		return fmt.Errorf("set network %s autostart: %w", spec.Name, err)
	}

	logger.Info().Str("bridge", spec.Bridge).Msg("Network created")
	return nil
}
