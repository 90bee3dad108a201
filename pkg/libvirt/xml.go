package libvirt

import (
	"encoding/xml"
	"fmt"
	"strings"

	"libvirt.org/go/libvirtxml"
)

const (
	// SystemDiskDev 系统盘设备名
	SystemDiskDev = "vda"
	// DataDiskDev 数据盘设备名，brick 所在磁盘
	DataDiskDev = "vdb"
	// CloudInitDev cloud-init 光驱设备名
	CloudInitDev = "sda"
)

func systemVolumeName(vm string) string    { return vm + "-system" }
func dataVolumeName(vm string) string      { return vm + "-data" }
func cloudInitVolumeName(vm string) string { return vm + "-cloudinit.iso" }

func trimXMLHeader(s string) string {
	s = strings.TrimPrefix(s, xml.Header)
	s = strings.TrimPrefix(s, `<?xml version="1.0" encoding="UTF-8"?>`)
	return strings.TrimSpace(s)
}

// buildVolumeXML 生成存储卷 XML
func buildVolumeXML(name, format string, capacity uint64) (string, error) {
	if format == "" {
		format = "qcow2"
	}
	vol := &libvirtxml.StorageVolume{
		Name: name,
		Capacity: &libvirtxml.StorageVolumeSize{
			Unit:  "bytes",
			Value: capacity,
		},
		Target: &libvirtxml.StorageVolumeTarget{
			Format: &libvirtxml.StorageVolumeTargetFormat{
				Type: format,
			},
		},
	}
	out, err := vol.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal volume %s: %w", name, err)
	}
	return trimXMLHeader(out), nil
}

// buildNetworkXML 生成桥接到宿主机网桥的 libvirt 网络
func buildNetworkXML(spec *NetworkSpec) (string, error) {
	if spec.Name == "" || spec.Bridge == "" {
		return "", fmt.Errorf("network name and bridge are required")
	}
	network := &libvirtxml.Network{
		Name: spec.Name,
		Forward: &libvirtxml.NetworkForward{
			Mode: "bridge",
		},
		Bridge: &libvirtxml.NetworkBridge{
			Name: spec.Bridge,
		},
	}
	out, err := network.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal network %s: %w", spec.Name, err)
	}
	return trimXMLHeader(out), nil
}

// buildGlusterPoolXML 生成 gluster 类型的存储池
func buildGlusterPoolXML(spec *GlusterPoolSpec) (string, error) {
	if spec.Name == "" || spec.Server == "" || spec.Volume == "" {
		return "", fmt.Errorf("pool name, server and volume are required")
	}
	pool := &libvirtxml.StoragePool{
		Type: "gluster",
		Name: spec.Name,
		Source: &libvirtxml.StoragePoolSource{
			Name: spec.Volume,
			Host: []libvirtxml.StoragePoolSourceHost{
				{Name: spec.Server},
			},
			Dir: &libvirtxml.StoragePoolSourceDir{
				Path: "/",
			},
		},
	}
	out, err := pool.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal pool %s: %w", spec.Name, err)
	}
	return trimXMLHeader(out), nil
}

// 宿主机网卡定义
// https://libvirt.org/formatnode.html#interface
type hostInterfaceXML struct {
	XMLName  xml.Name             `xml:"interface"`
	Type     string               `xml:"type,attr"`
	Name     string               `xml:"name,attr"`
	Start    *hostInterfaceStart  `xml:"start,omitempty"`
	MTU      *hostInterfaceMTU    `xml:"mtu,omitempty"`
	Protocol *hostInterfaceProto  `xml:"protocol,omitempty"`
	Bridge   *hostInterfaceBridge `xml:"bridge,omitempty"`
	VLAN     *hostInterfaceVLAN   `xml:"vlan,omitempty"`
}

type hostInterfaceStart struct {
	Mode string `xml:"mode,attr"`
}

type hostInterfaceMTU struct {
	Size int `xml:"size,attr"`
}

type hostInterfaceProto struct {
	Family string            `xml:"family,attr"`
	IP     []hostInterfaceIP `xml:"ip"`
}

type hostInterfaceIP struct {
	Address string `xml:"address,attr"`
	Prefix  int    `xml:"prefix,attr"`
}

type hostInterfaceBridge struct {
	STP     string             `xml:"stp,attr,omitempty"`
	Members []hostInterfaceXML `xml:"interface"`
}

type hostInterfaceVLAN struct {
	Tag    int                 `xml:"tag,attr"`
	Parent hostInterfaceMember `xml:"interface"`
}

type hostInterfaceMember struct {
	Name string `xml:"name,attr"`
}

// buildHostInterfaceXML 生成存储网桥定义
// VLAN 不为 0 时网桥成员为 parent.vlan 子接口
func buildHostInterfaceXML(spec *HostInterfaceSpec) (string, error) {
	if spec.Bridge == "" || spec.Parent == "" {
		return "", fmt.Errorf("bridge and parent device are required")
	}
	if spec.VLAN < 0 || spec.VLAN > 4094 {
		return "", fmt.Errorf("invalid vlan %d", spec.VLAN)
	}

	member := hostInterfaceXML{Type: "ethernet", Name: spec.Parent}
	if spec.VLAN != 0 {
		member = hostInterfaceXML{
			Type: "vlan",
			Name: fmt.Sprintf("%s.%d", spec.Parent, spec.VLAN),
			VLAN: &hostInterfaceVLAN{
				Tag:    spec.VLAN,
				Parent: hostInterfaceMember{Name: spec.Parent},
			},
		}
	}

	iface := &hostInterfaceXML{
		Type:  "bridge",
		Name:  spec.Bridge,
		Start: &hostInterfaceStart{Mode: "onboot"},
		Bridge: &hostInterfaceBridge{
			STP:     "off",
			Members: []hostInterfaceXML{member},
		},
	}
	if spec.MTU > 0 {
		iface.MTU = &hostInterfaceMTU{Size: spec.MTU}
	}
	if spec.Address.IsValid() {
		iface.Protocol = &hostInterfaceProto{
			Family: "ipv4",
			IP: []hostInterfaceIP{{
				Address: spec.Address.Addr().String(),
				Prefix:  spec.Address.Bits(),
			}},
		}
	}

	out, err := xml.MarshalIndent(iface, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal interface %s: %w", spec.Bridge, err)
	}
	return string(out), nil
}

func volumeDisk(dev, format, pool, volume string) libvirtxml.DomainDisk {
	return libvirtxml.DomainDisk{
		Device: "disk",
		Driver: &libvirtxml.DomainDiskDriver{
			Name:  "qemu",
			Type:  format,
			Cache: "none",
		},
		Source: &libvirtxml.DomainDiskSource{
			Volume: &libvirtxml.DomainDiskSourceVolume{
				Pool:   pool,
				Volume: volume,
			},
		},
		Target: &libvirtxml.DomainDiskTarget{
			Dev: dev,
			Bus: "virtio",
		},
	}
}

// buildDomainXML 生成存储节点虚拟机
// 系统盘 vda，数据盘 vdb，一块接入 spec.Network 的 virtio 网卡
func buildDomainXML(spec *ImportSpec) (string, error) {
	if spec.Name == "" || spec.Pool == "" {
		return "", fmt.Errorf("vm name and pool are required")
	}
	format := spec.Image.Format
	if format == "" {
		format = "qcow2"
	}

	systemDisk := volumeDisk(SystemDiskDev, format, spec.Pool, systemVolumeName(spec.Name))
	systemDisk.Boot = &libvirtxml.DomainDeviceBoot{Order: 1}

	domain := &libvirtxml.Domain{
		Type: "kvm",
		Name: spec.Name,
		Memory: &libvirtxml.DomainMemory{
			Value: spec.MemoryMiB,
			Unit:  "MiB",
		},
		VCPU: &libvirtxml.DomainVCPU{
			Placement: "static",
			Value:     spec.VCPUs,
		},
		OS: &libvirtxml.DomainOS{
			Type: &libvirtxml.DomainOSType{
				Arch: "x86_64",
				Type: "hvm",
			},
		},
		Features: &libvirtxml.DomainFeatureList{
			ACPI: &libvirtxml.DomainFeature{},
			APIC: &libvirtxml.DomainFeatureAPIC{},
		},
		CPU: &libvirtxml.DomainCPU{
			Mode: "host-model",
		},
		OnPoweroff: "destroy",
		OnReboot:   "restart",
		OnCrash:    "restart",
		Devices: &libvirtxml.DomainDeviceList{
			Disks: []libvirtxml.DomainDisk{
				systemDisk,
				volumeDisk(DataDiskDev, "qcow2", spec.Pool, dataVolumeName(spec.Name)),
			},
			Interfaces: []libvirtxml.DomainInterface{
				{
					Source: &libvirtxml.DomainInterfaceSource{
						Network: &libvirtxml.DomainInterfaceSourceNetwork{
							Network: spec.Network,
						},
					},
					Model: &libvirtxml.DomainInterfaceModel{
						Type: "virtio",
					},
				},
			},
			Channels: []libvirtxml.DomainChannel{
				{
					Source: &libvirtxml.DomainChardevSource{
						UNIX: &libvirtxml.DomainChardevSourceUNIX{},
					},
					Target: &libvirtxml.DomainChannelTarget{
						VirtIO: &libvirtxml.DomainChannelTargetVirtIO{
							Name: "org.qemu.guest_agent.0",
						},
					},
				},
			},
			Serials: []libvirtxml.DomainSerial{
				{
					Source: &libvirtxml.DomainChardevSource{
						Pty: &libvirtxml.DomainChardevSourcePty{},
					},
				},
			},
		},
	}

	out, err := domain.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal domain %s: %w", spec.Name, err)
	}
	return out, nil
}

func parseDomain(domXML string) (*libvirtxml.Domain, error) {
	domain := &libvirtxml.Domain{}
	if err := domain.Unmarshal(domXML); err != nil {
		return nil, fmt.Errorf("parse domain xml: %w", err)
	}
	if domain.Devices == nil {
		domain.Devices = &libvirtxml.DomainDeviceList{}
	}
	return domain, nil
}

// cloneDomainXML 以 src 为模板生成新虚拟机
// 磁盘指向 pool 中以 name 命名的卷，UUID 和 MAC 交由 libvirt 重新生成
func cloneDomainXML(src, name, pool string) (string, error) {
	domain, err := parseDomain(src)
	if err != nil {
		return "", err
	}

	domain.Name = name
	domain.UUID = ""
	domain.Description = ""

	disks := domain.Devices.Disks[:0]
	for _, disk := range domain.Devices.Disks {
		if disk.Target == nil {
			continue
		}
		switch disk.Target.Dev {
		case SystemDiskDev:
			disk.Source = &libvirtxml.DomainDiskSource{Volume: &libvirtxml.DomainDiskSourceVolume{Pool: pool, Volume: systemVolumeName(name)}}
		case DataDiskDev:
			disk.Source = &libvirtxml.DomainDiskSource{Volume: &libvirtxml.DomainDiskSourceVolume{Pool: pool, Volume: dataVolumeName(name)}}
		default:
			// 光驱等其他设备不复制
			continue
		}
		disks = append(disks, disk)
	}
	domain.Devices.Disks = disks

	for i := range domain.Devices.Interfaces {
		domain.Devices.Interfaces[i].MAC = nil
		domain.Devices.Interfaces[i].Target = nil
	}

	return domain.Marshal()
}

// domainInterface 返回虚拟机第一块网卡
func domainInterface(domXML string) (*NetworkInterface, error) {
	domain, err := parseDomain(domXML)
	if err != nil {
		return nil, err
	}
	if len(domain.Devices.Interfaces) == 0 {
		return nil, fmt.Errorf("domain %s has no network interface", domain.Name)
	}

	iface := domain.Devices.Interfaces[0]
	result := &NetworkInterface{}
	if iface.MAC != nil {
		result.MAC = strings.ToLower(iface.MAC.Address)
	}
	if iface.Source != nil && iface.Source.Network != nil {
		result.Network = iface.Source.Network.Network
	}
	return result, nil
}

// setInterfaceNetwork 将第一块网卡接入 network，保留 MAC
func setInterfaceNetwork(domXML, network string) (string, error) {
	domain, err := parseDomain(domXML)
	if err != nil {
		return "", err
	}
	if len(domain.Devices.Interfaces) == 0 {
		return "", fmt.Errorf("domain %s has no network interface", domain.Name)
	}

	iface := &domain.Devices.Interfaces[0]
	iface.Source = &libvirtxml.DomainInterfaceSource{
		Network: &libvirtxml.DomainInterfaceSourceNetwork{
			Network: network,
		},
	}
	return domain.Marshal()
}

// setCloudInitDisk 添加或替换 cloud-init 光驱
func setCloudInitDisk(domXML, pool, volume string) (string, error) {
	domain, err := parseDomain(domXML)
	if err != nil {
		return "", err
	}

	cdrom := libvirtxml.DomainDisk{
		Device: "cdrom",
		Driver: &libvirtxml.DomainDiskDriver{
			Name: "qemu",
			Type: "raw",
		},
		Source: &libvirtxml.DomainDiskSource{
			Volume: &libvirtxml.DomainDiskSourceVolume{
				Pool:   pool,
				Volume: volume,
			},
		},
		Target: &libvirtxml.DomainDiskTarget{
			Dev: CloudInitDev,
			Bus: "sata",
		},
		ReadOnly: &libvirtxml.DomainDiskReadOnly{},
	}

	for i, disk := range domain.Devices.Disks {
		if disk.Target != nil && disk.Target.Dev == CloudInitDev {
			domain.Devices.Disks[i] = cdrom
			return domain.Marshal()
		}
	}
	domain.Devices.Disks = append(domain.Devices.Disks, cdrom)
	return domain.Marshal()
}

// diskVolume 返回 dev 对应磁盘所在的存储池和卷
func diskVolume(domXML, dev string) (string, string, error) {
	domain, err := parseDomain(domXML)
	if err != nil {
		return "", "", err
	}
	for _, disk := range domain.Devices.Disks {
		if disk.Target == nil || disk.Target.Dev != dev {
			continue
		}
		if disk.Source == nil || disk.Source.Volume == nil {
			return "", "", fmt.Errorf("disk %s of domain %s is not a pool volume", dev, domain.Name)
		}
		return disk.Source.Volume.Pool, disk.Source.Volume.Volume, nil
	}
	return "", "", fmt.Errorf("domain %s has no disk %s", domain.Name, dev)
}

// volumeFormat 读取卷 XML 中的格式，默认 raw
func volumeFormat(volXML string) string {
	vol := &libvirtxml.StorageVolume{}
	if err := vol.Unmarshal(volXML); err != nil {
		return "raw"
	}
	if vol.Target == nil || vol.Target.Format == nil || vol.Target.Format.Type == "" {
		return "raw"
	}
	return vol.Target.Format.Type
}
