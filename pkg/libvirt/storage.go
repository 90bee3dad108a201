package libvirt

import (
	"context"
	"fmt"
	"io"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func poolStateString(state uint8) string {
	switch libvirt.StoragePoolState(state) {
	case libvirt.StoragePoolInactive:
		return "inactive"
	case libvirt.StoragePoolBuilding:
		return "building"
	case libvirt.StoragePoolRunning:
		return "running"
	case libvirt.StoragePoolDegraded:
		return "degraded"
	case libvirt.StoragePoolInaccessible:
		return "inaccessible"
	default:
		return "unknown"
	}
}

// GetStoragePool 实现 Hypervisor 接口
func (c *Client) GetStoragePool(ctx context.Context, host, poolName string) (*StoragePoolInfo, error) {
	l, err := c.conn(host)
	if err != nil {
		return nil, err
	}

	pool, err := l.StoragePoolLookupByName(poolName)
	if err != nil {
		return nil, fmt.Errorf("lookup storage pool %s on %s: %w", poolName, host, err)
	}

	state, capacity, allocation, available, err := l.StoragePoolGetInfo(pool)
	if err != nil {
		return nil, fmt.Errorf("get storage pool %s info on %s: %w", poolName, host, err)
	}

	return &StoragePoolInfo{
		Host:        host,
		Name:        poolName,
		State:       poolStateString(state),
		CapacityB:   capacity,
		AllocationB: allocation,
		AvailableB:  available,
	}, nil
}

// createVolume 在 pool 中创建空卷
func createVolume(l *libvirt.Libvirt, pool libvirt.StoragePool, name, format string, capacity uint64) (libvirt.StorageVol, error) {
	volXML, err := buildVolumeXML(name, format, capacity)
	if err != nil {
		return libvirt.StorageVol{}, err
	}
	vol, err := l.StorageVolCreateXML(pool, volXML, 0)
	if err != nil {
		return libvirt.StorageVol{}, fmt.Errorf("create volume %s: %w", name, err)
	}
	return vol, nil
}

// uploadVolume 创建卷并写入 r 中的 length 字节
func uploadVolume(l *libvirt.Libvirt, pool libvirt.StoragePool, name, format string, capacity uint64, r io.Reader, length uint64) error {
	vol, err := createVolume(l, pool, name, format, capacity)
	if err != nil {
		return err
	}
	if err := l.StorageVolUpload(vol, r, 0, length, 0); err != nil {
		return fmt.Errorf("upload volume %s: %w", name, err)
	}
	return nil
}

// copyVolume 将 src 上的卷复制到 dst 上的存储池
// 同一宿主机使用 libvirt 的卷克隆，跨宿主机下载后上传
func (c *Client) copyVolume(ctx context.Context, srcHost, srcPool, srcVol, dstHost, dstPool, dstVol string) error {
	logger := zerolog.Ctx(ctx).With().
		Str("src_host", srcHost).Str("src_volume", srcVol).
		Str("dst_host", dstHost).Str("dst_pool", dstPool).Str("dst_volume", dstVol).
		Logger()

	src, err := c.conn(srcHost)
	if err != nil {
		return err
	}
	dst, err := c.conn(dstHost)
	if err != nil {
		return err
	}

	sp, err := src.StoragePoolLookupByName(srcPool)
	if err != nil {
		return fmt.Errorf("lookup storage pool %s on %s: %w", srcPool, srcHost, err)
	}
	sv, err := src.StorageVolLookupByName(sp, srcVol)
	if err != nil {
		return fmt.Errorf("lookup volume %s on %s: %w", srcVol, srcHost, err)
	}
	svXML, err := src.StorageVolGetXMLDesc(sv, 0)
	if err != nil {
		return fmt.Errorf("get volume %s xml: %w", srcVol, err)
	}
	format := volumeFormat(svXML)

	_, capacity, _, err := src.StorageVolGetInfo(sv)
	if err != nil {
		return fmt.Errorf("get volume %s info: %w", srcVol, err)
	}

	dp, err := dst.StoragePoolLookupByName(dstPool)
	if err != nil {
		return fmt.Errorf("lookup storage pool %s on %s: %w", dstPool, dstHost, err)
	}

	if srcHost == dstHost {
		volXML, err := buildVolumeXML(dstVol, format, capacity)
		if err != nil {
			return err
		}
		if _, err := dst.StorageVolCreateXMLFrom(dp, volXML, sv, 0); err != nil {
			return fmt.Errorf("clone volume %s to %s: %w", srcVol, dstVol, err)
		}
		logger.Debug().Msg("Volume cloned on the same host")
		return nil
	}

	dv, err := createVolume(dst, dp, dstVol, format, capacity)
	if err != nil {
		return err
	}

	err = copyStream(ctx,
		func(w io.Writer) error {
			if err := src.StorageVolDownload(sv, w, 0, 0, 0); err != nil {
				return fmt.Errorf("download volume %s: %w", srcVol, err)
			}
			return nil
		},
		func(r io.Reader) error {
			if err := dst.StorageVolUpload(dv, r, 0, 0, 0); err != nil {
				return fmt.Errorf("upload volume %s: %w", dstVol, err)
			}
			return nil
		},
	)
	if err != nil {
		return err
	}

	logger.Debug().Msg("Volume copied across hosts")
	return nil
}

// CreateGlusterPool 实现 Hypervisor 接口
func (c *Client) CreateGlusterPool(ctx context.Context, spec *GlusterPoolSpec) error {
	l, err := c.conn(spec.Host)
	if err != nil {
		return err
	}

	if _, err := l.StoragePoolLookupByName(spec.Name); err == nil {
		zerolog.Ctx(ctx).Info().Str("host", spec.Host).Str("pool", spec.Name).Msg("Gluster storage pool already exists")
		return nil
	}

	poolXML, err := buildGlusterPoolXML(spec)
	if err != nil {
		return err
	}
	pool, err := l.StoragePoolDefineXML(poolXML, 0)
	if err != nil {
		return fmt.Errorf("define storage pool %s: %w", spec.Name, err)
	}
	if err := l.StoragePoolCreate(pool, 0); err != nil {
		return fmt.Errorf("start storage pool %s: %w", spec.Name, err)
	}
	if err := l.StoragePoolSetAutostart(pool, 1); err != nil {
		return fmt.Errorf("set storage pool %s autostart: %w", spec.Name, err)
	}

	zerolog.Ctx(ctx).Info().Str("host", spec.Host).Str("pool", spec.Name).Str("server", spec.Server).Msg("Gluster storage pool created")
	return nil
}

// copyStream 通过管道把 download 写出的数据交给 upload
// 任意一端失败或 ctx 取消时关闭管道，另一端随之返回
func copyStream(ctx context.Context, download func(io.Writer) error, upload func(io.Reader) error) error {
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() {
		pw.CloseWithError(gctx.Err())
		pr.CloseWithError(gctx.Err())
	})
	defer stop()

	g.Go(func() error {
		err := download(pw)
		pw.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		err := upload(pr)
		pr.CloseWithError(err)
		return err
	})
	return g.Wait()
}
