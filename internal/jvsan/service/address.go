package service

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"sync"
)

// AddressPool 存储网络地址分配器
// 同一个地址只会分配一次，网络地址和广播地址不参与分配
type AddressPool struct {
	mu     sync.Mutex
	prefix netip.Prefix
	used   map[netip.Addr]struct{}
}

// NewAddressPool 创建 IPv4 地址池
func NewAddressPool(prefix netip.Prefix) (*AddressPool, error) {
	if !prefix.IsValid() || !prefix.Addr().Is4() {
		return nil, fmt.Errorf("invalid IPv4 prefix %s", prefix)
	}
	if prefix.Bits() > 30 {
		return nil, fmt.Errorf("prefix %s is too small", prefix)
	}
	return &AddressPool{
		prefix: prefix.Masked(),
		used:   make(map[netip.Addr]struct{}),
	}, nil
}

// Prefix 地址池的网段
func (p *AddressPool) Prefix() netip.Prefix {
	return p.prefix
}

// size 网段内可分配的地址数
func (p *AddressPool) size() int {
	return 1<<(32-p.prefix.Bits()) - 2
}

// Nth 网段内第 n 个地址，n 从 1 开始
func (p *AddressPool) Nth(n int) (netip.Addr, error) {
	if n < 1 || n > p.size() {
		return netip.Addr{}, fmt.Errorf("%w: offset %d outside %s", ErrAddressPoolExhausted, n, p.prefix)
	}
	base := p.prefix.Addr().As4()
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], binary.BigEndian.Uint32(base[:])+uint32(n))
	return netip.AddrFrom4(b), nil
}

// WithBits 为地址加上地址池的前缀长度
func (p *AddressPool) WithBits(addr netip.Addr) netip.Prefix {
	return netip.PrefixFrom(addr, p.prefix.Bits())
}

// Reserve 标记地址已被使用，网段外的地址被忽略
func (p *AddressPool) Reserve(addrs ...netip.Addr) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, addr := range addrs {
		if p.prefix.Contains(addr) {
			p.used[addr] = struct{}{}
		}
	}
}

// Allocate 从第 offset 个地址开始，按顺序分配 count 个未使用的地址
func (p *AddressPool) Allocate(offset, count int) ([]netip.Addr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	addrs := make([]netip.Addr, 0, count)
	for n := offset; len(addrs) < count; n++ {
		addr, err := p.Nth(n)
		if err != nil {
			return nil, fmt.Errorf("allocate %d addresses from offset %d: %w", count, offset, err)
		}
		if _, ok := p.used[addr]; ok {
			continue
		}
		addrs = append(addrs, addr)
	}

	for _, addr := range addrs {
		p.used[addr] = struct{}{}
	}
	return addrs, nil
}
