// Package libvirt 通过 libvirt 管理多台宿主机上的存储节点资源
package libvirt

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"
)

// Client 多宿主机 libvirt 客户端
// 每台宿主机一个连接，首次使用时建立并缓存
type Client struct {
	uris map[string]string

	mu    sync.Mutex
	conns map[string]*libvirt.Libvirt
}

var _ Hypervisor = (*Client)(nil)

// New 创建客户端，hosts 为宿主机名到 libvirt URI 的映射
// 如：qemu:///system、qemu+ssh://root@host1/system
func New(hosts map[string]string) *Client {
	uris := make(map[string]string, len(hosts))
	for name, uri := range hosts {
		uris[name] = uri
	}
	return &Client{
		uris:  uris,
		conns: make(map[string]*libvirt.Libvirt),
	}
}

// Hosts 实现 Hypervisor 接口
func (c *Client) Hosts() []string {
	hosts := make([]string, 0, len(c.uris))
	for name := range c.uris {
		hosts = append(hosts, name)
	}
	sort.Strings(hosts)
	return hosts
}

// conn 获取或创建宿主机的连接
func (c *Client) conn(host string) (*libvirt.Libvirt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.conns[host]; ok && l.IsConnected() {
		return l, nil
	}

	rawURI, ok := c.uris[host]
	if !ok {
		return nil, fmt.Errorf("host %s is not configured", host)
	}
	uri, err := url.Parse(rawURI)
	if err != nil {
		return nil, fmt.Errorf("parse libvirt uri of host %s: %w", host, err)
	}

	l, err := libvirt.ConnectToURI(uri)
	if err != nil {
		return nil, fmt.Errorf("connect to host %s: %w", host, err)
	}
	c.conns[host] = l
	return l, nil
}

// Ping 实现 Hypervisor 接口
func (c *Client) Ping(ctx context.Context, host string) error {
	l, err := c.conn(host)
	if err != nil {
		return err
	}
	hostname, err := l.ConnectGetHostname()
	if err != nil {
		return fmt.Errorf("get hostname of %s: %w", host, err)
	}
	zerolog.Ctx(ctx).Debug().Str("host", host).Str("hostname", hostname).Msg("Host connection is available")
	return nil
}

// Close 断开所有连接
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for host, l := range c.conns {
		if err := l.Disconnect(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("disconnect host %s: %w", host, err)
		}
		delete(c.conns, host)
	}
	return firstErr
}
