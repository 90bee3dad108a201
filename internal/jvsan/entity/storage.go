// Package entity 定义业务实体
package entity

import "strings"

// StorageResource 宿主机上的一个本地存储池
type StorageResource struct {
	ID         string `json:"id"`         // <host>/<pool>
	Host       string `json:"host"`       // 所属宿主机
	Pool       string `json:"pool"`       // libvirt 存储池名称
	Capacity   uint64 `json:"capacity"`   // 总容量（字节）
	Allocation uint64 `json:"allocation"` // 已分配（字节）
	Available  uint64 `json:"available"`  // 剩余空间（字节）
}

// StorageResourceID 组合存储资源 ID
func StorageResourceID(host, pool string) string {
	return host + "/" + pool
}

// ParseStorageResourceID 拆分存储资源 ID
func ParseStorageResourceID(id string) (host, pool string, ok bool) {
	host, pool, ok = strings.Cut(id, "/")
	if !ok || host == "" || pool == "" {
		return "", "", false
	}
	return host, pool, true
}
