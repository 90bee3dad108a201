// Package neigh 读取本机的 IPv4 邻居表（ARP 表）
package neigh

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/vishvananda/netlink"
)

const procNetARP = "/proc/net/arp"

// Table 邻居表
type Table interface {
	// Snapshot 返回 IP 到 MAC 的映射，MAC 为小写
	Snapshot(ctx context.Context) (map[string]string, error)
}

// System 读取本机内核的邻居表
// 优先使用 netlink，失败时回退到 /proc/net/arp
type System struct {
	list     func() ([]netlink.Neigh, error)
	procPath string
}

// New 创建 System
func New() *System {
	return &System{
		list: func() ([]netlink.Neigh, error) {
			return netlink.NeighList(0, netlink.FAMILY_V4)
		},
		procPath: procNetARP,
	}
}

// Snapshot 实现 Table 接口
func (s *System) Snapshot(ctx context.Context) (map[string]string, error) {
	logger := zerolog.Ctx(ctx)

	neighs, err := s.list()
	if err == nil {
		return fromNeighs(neighs), nil
	}
	logger.Debug().Err(err).Msg("Netlink neighbor list failed, falling back to proc")

	data, readErr := os.ReadFile(s.procPath)
	if readErr != nil {
		return nil, fmt.Errorf("read neighbor table: netlink: %v, proc: %w", err, readErr)
	}
	return ParseProcNetARP(data), nil
}

func fromNeighs(neighs []netlink.Neigh) map[string]string {
	table := make(map[string]string, len(neighs))
	for _, n := range neighs {
		if n.IP == nil || len(n.HardwareAddr) == 0 {
			continue
		}
		if n.State&(netlink.NUD_FAILED|netlink.NUD_INCOMPLETE) != 0 {
			continue
		}
		table[n.IP.String()] = strings.ToLower(n.HardwareAddr.String())
	}
	return table
}

// ParseProcNetARP 解析 /proc/net/arp
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	172.31.100.101   0x1         0x2         52:54:00:aa:bb:01     *        xosan0
func ParseProcNetARP(data []byte) map[string]string {
	table := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		mac := strings.ToLower(fields[3])
		if mac == "00:00:00:00:00:00" {
			continue
		}
		table[fields[0]] = mac
	}
	return table
}

// Static 固定内容的邻居表
type Static map[string]string

// Snapshot 实现 Table 接口
func (s Static) Snapshot(context.Context) (map[string]string, error) {
	table := make(map[string]string, len(s))
	for ip, mac := range s {
		table[ip] = mac
	}
	return table, nil
}
