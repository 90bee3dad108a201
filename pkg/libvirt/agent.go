package libvirt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"sort"
)

const (
	guestInterfacesCommand = `{"execute":"guest-network-get-interfaces"}`
	agentTimeoutSeconds    = 10
)

type guestInterface struct {
	Name            string           `json:"name"`
	HardwareAddress string           `json:"hardware-address"`
	IPAddresses     []guestIPAddress `json:"ip-addresses"`
}

type guestIPAddress struct {
	Type    string `json:"ip-address-type"`
	Address string `json:"ip-address"`
	Prefix  int    `json:"prefix"`
}

// parseGuestAddresses 解析 guest-network-get-interfaces 的返回
// 返回除回环地址外的 IPv4 地址，已排序
func parseGuestAddresses(raw string) ([]string, error) {
	var reply struct {
		Return []guestInterface `json:"return"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("decode guest agent reply: %w", err)
	}

	var addresses []string
	for _, iface := range reply.Return {
		for _, ip := range iface.IPAddresses {
			if ip.Type != "ipv4" {
				continue
			}
			addr, err := netip.ParseAddr(ip.Address)
			if err != nil || addr.IsLoopback() {
				continue
			}
			addresses = append(addresses, addr.String())
		}
	}
	sort.Strings(addresses)
	return addresses, nil
}

// GuestAddresses 实现 Hypervisor 接口
// 通过 qemu guest agent 读取虚拟机内的 IPv4 地址，agent 未就绪时返回错误
func (c *Client) GuestAddresses(ctx context.Context, vm *VM) ([]string, error) {
	l, dom, err := c.lookupDomain(vm)
	if err != nil {
		return nil, err
	}
	reply, err := l.QEMUDomainAgentCommand(dom, guestInterfacesCommand, agentTimeoutSeconds, 0)
	if err != nil {
		return nil, fmt.Errorf("query guest interfaces of vm %s: %w", vm.Name, err)
	}
	if len(reply) == 0 {
		return nil, fmt.Errorf("empty guest agent reply from vm %s", vm.Name)
	}
	return parseGuestAddresses(reply[0])
}
