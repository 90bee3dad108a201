package libvirt

import (
	"context"
	"fmt"
	"os"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func (c *Client) lookupDomain(vm *VM) (*libvirt.Libvirt, libvirt.Domain, error) {
	l, err := c.conn(vm.Host)
	if err != nil {
		return nil, libvirt.Domain{}, err
	}
	dom, err := l.DomainLookupByName(vm.Name)
	if err != nil {
		return nil, libvirt.Domain{}, fmt.Errorf("lookup vm %s on %s: %w", vm.Name, vm.Host, err)
	}
	return l, dom, nil
}

func toVM(host, pool string, dom libvirt.Domain) *VM {
	return &VM{
		Host: host,
		Pool: pool,
		Name: dom.Name,
		UUID: uuid.UUID(dom.UUID).String(),
	}
}

// redefine 读取虚拟机定义，经 modify 修改后重新定义
func (c *Client) redefine(vm *VM, modify func(string) (string, error)) error {
	l, dom, err := c.lookupDomain(vm)
	if err != nil {
		return err
	}
	domXML, err := l.DomainGetXMLDesc(dom, libvirt.DomainXMLInactive)
	if err != nil {
		return fmt.Errorf("get vm %s xml: %w", vm.Name, err)
	}
	newXML, err := modify(domXML)
	if err != nil {
		return err
	}
	if _, err := l.DomainDefineXML(newXML); err != nil {
		return fmt.Errorf("redefine vm %s: %w", vm.Name, err)
	}
	return nil
}

// ImportVM 实现 Hypervisor 接口
// 系统盘从本地镜像上传，数据盘为空卷
func (c *Client) ImportVM(ctx context.Context, spec *ImportSpec) (*VM, error) {
	logger := zerolog.Ctx(ctx).With().Str("host", spec.Host).Str("pool", spec.Pool).Str("vm", spec.Name).Logger()

	l, err := c.conn(spec.Host)
	if err != nil {
		return nil, err
	}
	pool, err := l.StoragePoolLookupByName(spec.Pool)
	if err != nil {
		return nil, fmt.Errorf("lookup storage pool %s on %s: %w", spec.Pool, spec.Host, err)
	}

	f, err := os.Open(spec.Image.Path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", spec.Image.Path, err)
	}
	defer f.Close()

	fileSize := spec.Image.FileSize
	if fileSize == 0 {
		st, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat image %s: %w", spec.Image.Path, err)
		}
		fileSize = uint64(st.Size())
	}
	capacity := spec.Image.VirtualSize
	if capacity < fileSize {
		capacity = fileSize
	}

	logger.Info().Str("image", spec.Image.Path).Uint64("size", fileSize).Msg("Uploading template image")
	if err := uploadVolume(l, pool, systemVolumeName(spec.Name), spec.Image.Format, capacity, f, fileSize); err != nil {
		return nil, err
	}
	if _, err := createVolume(l, pool, dataVolumeName(spec.Name), "qcow2", spec.DataDiskSize); err != nil {
		return nil, err
	}

	domXML, err := buildDomainXML(spec)
	if err != nil {
		return nil, err
	}
	dom, err := l.DomainDefineXML(domXML)
	if err != nil {
		return nil, fmt.Errorf("define vm %s: %w", spec.Name, err)
	}

	logger.Info().Msg("Template VM imported")
	return toVM(spec.Host, spec.Pool, dom), nil
}

// CloneVM 实现 Hypervisor 接口
// 源虚拟机的系统盘和数据盘复制到目标存储池
func (c *Client) CloneVM(ctx context.Context, spec *CloneSpec) (*VM, error) {
	logger := zerolog.Ctx(ctx).With().
		Str("source", spec.Source.Name).
		Str("host", spec.Host).
		Str("pool", spec.Pool).
		Str("vm", spec.Name).
		Logger()

	src, srcDom, err := c.lookupDomain(&spec.Source)
	if err != nil {
		return nil, err
	}
	srcXML, err := src.DomainGetXMLDesc(srcDom, libvirt.DomainXMLInactive)
	if err != nil {
		return nil, fmt.Errorf("get vm %s xml: %w", spec.Source.Name, err)
	}

	for _, disk := range []struct {
		dev  string
		name string
	}{
		{dev: SystemDiskDev, name: systemVolumeName(spec.Name)},
		{dev: DataDiskDev, name: dataVolumeName(spec.Name)},
	} {
		srcPool, srcVol, err := diskVolume(srcXML, disk.dev)
		if err != nil {
			return nil, err
		}
		if err := c.copyVolume(ctx, spec.Source.Host, srcPool, srcVol, spec.Host, spec.Pool, disk.name); err != nil {
			return nil, err
		}
	}

	domXML, err := cloneDomainXML(srcXML, spec.Name, spec.Pool)
	if err != nil {
		return nil, err
	}
	dst, err := c.conn(spec.Host)
	if err != nil {
		return nil, err
	}
	dom, err := dst.DomainDefineXML(domXML)
	if err != nil {
		return nil, fmt.Errorf("define vm %s on %s: %w", spec.Name, spec.Host, err)
	}

	logger.Info().Msg("VM cloned")
	return toVM(spec.Host, spec.Pool, dom), nil
}

// GetVMInterface 实现 Hypervisor 接口
func (c *Client) GetVMInterface(ctx context.Context, vm *VM) (*NetworkInterface, error) {
	l, dom, err := c.lookupDomain(vm)
	if err != nil {
		return nil, err
	}
	domXML, err := l.DomainGetXMLDesc(dom, libvirt.DomainXMLInactive)
	if err != nil {
		return nil, fmt.Errorf("get vm %s xml: %w", vm.Name, err)
	}
	return domainInterface(domXML)
}

// SetVMNetwork 实现 Hypervisor 接口
// 仅修改持久化定义，虚拟机需处于关机状态
func (c *Client) SetVMNetwork(ctx context.Context, vm *VM, network string) error {
	if err := c.redefine(vm, func(domXML string) (string, error) {
		return setInterfaceNetwork(domXML, network)
	}); err != nil {
		return err
	}
	zerolog.Ctx(ctx).Info().Str("host", vm.Host).Str("vm", vm.Name).Str("network", network).Msg("VM interface moved")
	return nil
}

// RenameVM 实现 Hypervisor 接口
func (c *Client) RenameVM(ctx context.Context, vm *VM, name, description string) (*VM, error) {
	l, dom, err := c.lookupDomain(vm)
	if err != nil {
		return nil, err
	}

	if vm.Name != name {
		if _, err := l.DomainRename(dom, libvirt.OptString{name}, 0); err != nil {
			return nil, fmt.Errorf("rename vm %s to %s: %w", vm.Name, name, err)
		}
		dom, err = l.DomainLookupByName(name)
		if err != nil {
			return nil, fmt.Errorf("lookup vm %s on %s: %w", name, vm.Host, err)
		}
	}

	if description != "" {
		if err := l.DomainSetMetadata(dom,
			int32(libvirt.DomainMetadataDescription),
			libvirt.OptString{description},
			libvirt.OptString{},
			libvirt.OptString{},
			libvirt.DomainAffectConfig,
		); err != nil {
			return nil, fmt.Errorf("set vm %s description: %w", name, err)
		}
	}

	zerolog.Ctx(ctx).Info().Str("host", vm.Host).Str("old_name", vm.Name).Str("vm", name).Msg("VM renamed")
	return toVM(vm.Host, vm.Pool, dom), nil
}

func (c *Client) lookupDataVolume(vm *VM) (*libvirt.Libvirt, libvirt.StorageVol, error) {
	l, dom, err := c.lookupDomain(vm)
	if err != nil {
		return nil, libvirt.StorageVol{}, err
	}
	domXML, err := l.DomainGetXMLDesc(dom, libvirt.DomainXMLInactive)
	if err != nil {
		return nil, libvirt.StorageVol{}, fmt.Errorf("get vm %s xml: %w", vm.Name, err)
	}
	poolName, volName, err := diskVolume(domXML, DataDiskDev)
	if err != nil {
		return nil, libvirt.StorageVol{}, err
	}
	pool, err := l.StoragePoolLookupByName(poolName)
	if err != nil {
		return nil, libvirt.StorageVol{}, fmt.Errorf("lookup storage pool %s on %s: %w", poolName, vm.Host, err)
	}
	vol, err := l.StorageVolLookupByName(pool, volName)
	if err != nil {
		return nil, libvirt.StorageVol{}, fmt.Errorf("lookup volume %s on %s: %w", volName, vm.Host, err)
	}
	return l, vol, nil
}

// GetDataDiskSize 实现 Hypervisor 接口
func (c *Client) GetDataDiskSize(ctx context.Context, vm *VM) (uint64, error) {
	l, vol, err := c.lookupDataVolume(vm)
	if err != nil {
		return 0, err
	}
	_, capacity, _, err := l.StorageVolGetInfo(vol)
	if err != nil {
		return 0, fmt.Errorf("get data volume %s info: %w", vol.Name, err)
	}
	return capacity, nil
}

// ResizeDataDisk 实现 Hypervisor 接口
func (c *Client) ResizeDataDisk(ctx context.Context, vm *VM, size uint64) error {
	l, vol, err := c.lookupDataVolume(vm)
	if err != nil {
		return err
	}
	if err := l.StorageVolResize(vol, size, 0); err != nil {
		return fmt.Errorf("resize data volume %s to %d: %w", vol.Name, size, err)
	}
	zerolog.Ctx(ctx).Info().Str("host", vm.Host).Str("vm", vm.Name).Uint64("size", size).Msg("Data disk resized")
	return nil
}

// StartVM 实现 Hypervisor 接口
// 已在运行的虚拟机直接返回
func (c *Client) StartVM(ctx context.Context, vm *VM) error {
	l, dom, err := c.lookupDomain(vm)
	if err != nil {
		return err
	}

	state, _, err := l.DomainGetState(dom, 0)
	if err != nil {
		return fmt.Errorf("get vm %s state: %w", vm.Name, err)
	}
	if libvirt.DomainState(state) == libvirt.DomainRunning {
		return nil
	}

	if err := l.DomainCreate(dom); err != nil {
		return fmt.Errorf("start vm %s: %w", vm.Name, err)
	}
	zerolog.Ctx(ctx).Info().Str("host", vm.Host).Str("vm", vm.Name).Msg("VM started")
	return nil
}
