package libvirt

import (
	"bytes"
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"
)

// AttachCloudInit 实现 Hypervisor 接口
// ISO 上传到系统盘所在的存储池，已有的同名卷会被替换
func (c *Client) AttachCloudInit(ctx context.Context, vm *VM, iso []byte) error {
	l, dom, err := c.lookupDomain(vm)
	if err != nil {
		return err
	}
	domXML, err := l.DomainGetXMLDesc(dom, libvirt.DomainXMLInactive)
	if err != nil {
		return fmt.Errorf("get vm %s xml: %w", vm.Name, err)
	}
	poolName, _, err := diskVolume(domXML, SystemDiskDev)
	if err != nil {
		return err
	}
	pool, err := l.StoragePoolLookupByName(poolName)
	if err != nil {
		return fmt.Errorf("lookup storage pool %s on %s: %w", poolName, vm.Host, err)
	}

	volName := cloudInitVolumeName(vm.Name)
	if old, err := l.StorageVolLookupByName(pool, volName); err == nil {
		if err := l.StorageVolDelete(old, libvirt.StorageVolDeleteNormal); err != nil {
			return fmt.Errorf("delete old cloud-init volume %s: %w", volName, err)
		}
	}

	size := uint64(len(iso))
	if err := uploadVolume(l, pool, volName, "raw", size, bytes.NewReader(iso), size); err != nil {
		return err
	}

	newXML, err := setCloudInitDisk(domXML, poolName, volName)
	if err != nil {
		return err
	}
	if _, err := l.DomainDefineXML(newXML); err != nil {
		return fmt.Errorf("attach cloud-init to vm %s: %w", vm.Name, err)
	}

	zerolog.Ctx(ctx).Info().Str("host", vm.Host).Str("vm", vm.Name).Str("volume", volName).Msg("Cloud-init attached")
	return nil
}
