package service

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/jimyag/jvsan/internal/jvsan/config"
	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/jimyag/jvsan/internal/jvsan/metrics"
	"github.com/jimyag/jvsan/internal/jvsan/planner"
	"github.com/jimyag/jvsan/pkg/cloudinit"
	"github.com/jimyag/jvsan/pkg/libvirt"
	"github.com/jimyag/jvsan/pkg/qemuimg"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// NodeRequest 节点部署请求
type NodeRequest struct {
	Backend   string
	Resources []entity.StorageResource
	Network   string
	// Addresses 与 Resources 一一对应的存储网络地址
	Addresses     []netip.Prefix
	AuthorizedKey string
}

// NodeProvisionerOptions 节点部署参数
type NodeProvisionerOptions struct {
	Template     config.TemplateConfig
	MTU          int
	BootTimeout  time.Duration
	PollInterval time.Duration
	// Concurrency 同时准备的节点数，0 表示不限制
	Concurrency int
}

// NodeProvisioner 从黄金模板创建存储节点
type NodeProvisioner struct {
	hypervisor libvirt.Hypervisor
	images     qemuimg.Inspector
	cloudInit  *cloudinit.Generator
	planner    *planner.Planner
	opts       NodeProvisionerOptions
}

// NewNodeProvisioner 创建节点部署器
func NewNodeProvisioner(
	hypervisor libvirt.Hypervisor,
	images qemuimg.Inspector,
	p *planner.Planner,
	opts NodeProvisionerOptions,
) *NodeProvisioner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &NodeProvisioner{
		hypervisor: hypervisor,
		images:     images,
		cloudInit:  cloudinit.NewGenerator(),
		planner:    p,
		opts:       opts,
	}
}

// NodeName 存储节点的最终名称
func NodeName(backend string, resource entity.StorageResource) string {
	return fmt.Sprintf("%s-%s-%s", backend, resource.Pool, resource.Host)
}

// Provision 部署 req.Resources 上的全部存储节点，返回的节点与资源顺序一致
//
// 模板只导入到第一个存储资源，其余资源上的节点依次从第一个节点复制。
// 复制完成后各节点并发准备，直到每个节点都报告了预分配的地址。
func (p *NodeProvisioner) Provision(ctx context.Context, req *NodeRequest) ([]entity.Node, error) {
	logger := zerolog.Ctx(ctx)

	if len(req.Resources) == 0 {
		return nil, fmt.Errorf("no storage resource")
	}
	if len(req.Addresses) != len(req.Resources) {
		return nil, fmt.Errorf("%d addresses for %d storage resources", len(req.Addresses), len(req.Resources))
	}

	image, err := p.templateImage(ctx)
	if err != nil {
		return nil, err
	}

	first := req.Resources[0]
	logger.Info().
		Str("host", first.Host).
		Str("pool", first.Pool).
		Str("image", image.Path).
		Msg("Importing node template")

	template, err := p.hypervisor.ImportVM(ctx, &libvirt.ImportSpec{
		Host:         first.Host,
		Pool:         first.Pool,
		Name:         fmt.Sprintf("%s-0", req.Backend),
		Image:        *image,
		DataDiskSize: p.opts.Template.DataDiskSize,
		MemoryMiB:    p.opts.Template.MemoryMiB,
		VCPUs:        p.opts.Template.VCPUs,
		Network:      p.opts.Template.Network,
	})
	if err != nil {
		return nil, fmt.Errorf("import template into %s: %w", first.ID, err)
	}

	vms := []*libvirt.VM{template}
	for i, resource := range req.Resources[1:] {
		logger.Info().
			Str("source", template.Name).
			Str("host", resource.Host).
			Str("pool", resource.Pool).
			Msg("Cloning node")

		vm, err := p.hypervisor.CloneVM(ctx, &libvirt.CloneSpec{
			Source: *template,
			Host:   resource.Host,
			Pool:   resource.Pool,
			Name:   fmt.Sprintf("%s-%d", req.Backend, i+1),
		})
		if err != nil {
			return nil, fmt.Errorf("clone node into %s: %w", resource.ID, err)
		}
		vms = append(vms, vm)
	}

	nodes := make([]entity.Node, len(vms))
	g, gctx := errgroup.WithContext(ctx)
	if p.opts.Concurrency > 0 {
		g.SetLimit(p.opts.Concurrency)
	}
	for i := range vms {
		i := i
		g.Go(func() error {
			node, err := p.prepare(gctx, req, vms[i], req.Resources[i], req.Addresses[i])
			if err != nil {
				return fmt.Errorf("prepare node on %s: %w", req.Resources[i].ID, err)
			}
			nodes[i] = *node
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info().Int("nodes", len(nodes)).Msg("All storage nodes are up")
	return nodes, nil
}

// templateImage 检查黄金模板镜像
func (p *NodeProvisioner) templateImage(ctx context.Context) (*libvirt.Image, error) {
	path := p.opts.Template.ImagePath
	info, err := p.images.Info(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: template image %s: %v", ErrPrerequisiteMissing, path, err)
	}
	if err := p.images.Check(ctx, path, info.Format); err != nil {
		return nil, fmt.Errorf("%w: template image %s is corrupted: %v", ErrPrerequisiteMissing, path, err)
	}
	return &libvirt.Image{
		Path:        path,
		Format:      info.Format,
		VirtualSize: info.VirtualSize,
		FileSize:    info.ActualSize,
	}, nil
}

// prepare 配置并启动单个节点
func (p *NodeProvisioner) prepare(
	ctx context.Context,
	req *NodeRequest,
	vm *libvirt.VM,
	resource entity.StorageResource,
	address netip.Prefix,
) (*entity.Node, error) {
	logger := zerolog.Ctx(ctx).With().Str("host", resource.Host).Str("pool", resource.Pool).Logger()

	iface, err := p.hypervisor.GetVMInterface(ctx, vm)
	if err != nil {
		return nil, fmt.Errorf("get interface of %s: %w", vm.Name, err)
	}
	if iface.Network != req.Network {
		logger.Info().
			Str("vm", vm.Name).
			Str("current", iface.Network).
			Str("expected", req.Network).
			Msg("Interface not on storage network, moving it")
		if err := p.hypervisor.SetVMNetwork(ctx, vm, req.Network); err != nil {
			return nil, fmt.Errorf("move %s to network %s: %w", vm.Name, req.Network, err)
		}
	}

	name := NodeName(req.Backend, resource)
	renamed, err := p.hypervisor.RenameVM(ctx, vm, name,
		fmt.Sprintf("jvsan node of %s storing data on pool %s", req.Backend, resource.Pool))
	if err != nil {
		return nil, fmt.Errorf("rename %s: %w", vm.Name, err)
	}
	vm = renamed

	docs, err := p.cloudInit.GenerateNode(&cloudinit.NodeConfig{
		Hostname:       name,
		AuthorizedKeys: []string{req.AuthorizedKey},
		MAC:            iface.MAC,
		Address:        address,
		MTU:            p.opts.MTU,
		RunCmd:         p.opts.Template.RunCmd,
	})
	if err != nil {
		return nil, fmt.Errorf("generate cloud-init for %s: %w", name, err)
	}
	iso, err := cloudinit.BuildISO(docs)
	if err != nil {
		return nil, fmt.Errorf("build cloud-init iso for %s: %w", name, err)
	}
	if err := p.hypervisor.AttachCloudInit(ctx, vm, iso); err != nil {
		return nil, fmt.Errorf("attach cloud-init to %s: %w", name, err)
	}

	if err := p.resizeDataDisk(ctx, vm); err != nil {
		return nil, err
	}

	if err := p.hypervisor.StartVM(ctx, vm); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	start := time.Now()
	if err := p.waitForAddress(ctx, vm, address.Addr()); err != nil {
		return nil, err
	}
	metrics.ObserveNodeBoot(time.Since(start))

	logger.Info().Str("vm", name).Str("address", address.Addr().String()).Msg("Storage node is up")
	return &entity.Node{
		Host: resource.Host,
		Pool: resource.Pool,
		VM: entity.VMRef{
			ID:   vm.UUID,
			Name: vm.Name,
			IP:   address.Addr().String(),
		},
	}, nil
}

// resizeDataDisk 让数据盘占满存储池的剩余空间
func (p *NodeProvisioner) resizeDataDisk(ctx context.Context, vm *libvirt.VM) error {
	// 存储池在复制之后才反映真实的剩余空间，需要重新读取
	pool, err := p.hypervisor.GetStoragePool(ctx, vm.Host, vm.Pool)
	if err != nil {
		return fmt.Errorf("refresh pool %s/%s: %w", vm.Host, vm.Pool, err)
	}
	current, err := p.hypervisor.GetDataDiskSize(ctx, vm)
	if err != nil {
		return fmt.Errorf("get data disk size of %s: %w", vm.Name, err)
	}

	size := p.planner.DataDiskSize(pool.AvailableB, current)
	if size <= current {
		zerolog.Ctx(ctx).Warn().
			Str("vm", vm.Name).
			Uint64("current", current).
			Uint64("target", size).
			Msg("Data disk already fills the pool, skipping resize")
		return nil
	}

	zerolog.Ctx(ctx).Info().
		Str("vm", vm.Name).
		Uint64("current", current).
		Uint64("size", size).
		Msg("Resizing data disk")
	if err := p.hypervisor.ResizeDataDisk(ctx, vm, size); err != nil {
		return fmt.Errorf("resize data disk of %s: %w", vm.Name, err)
	}
	return nil
}

// waitForAddress 轮询 guest agent，直到节点报告 want
// 超过 BootTimeout 返回 ErrBootTimeout，ctx 取消时返回 ctx 的错误
func (p *NodeProvisioner) waitForAddress(ctx context.Context, vm *libvirt.VM, want netip.Addr) error {
	logger := zerolog.Ctx(ctx)

	waitCtx := ctx
	if p.opts.BootTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.opts.BootTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		addrs, err := p.hypervisor.GuestAddresses(waitCtx, vm)
		switch {
		case err != nil:
			logger.Debug().Err(err).Str("vm", vm.Name).Msg("Guest agent not ready")
		case lo.Contains(addrs, want.String()):
			return nil
		default:
			logger.Debug().Str("vm", vm.Name).Strs("addresses", addrs).Msg("Waiting for storage address")
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: %s did not report %s within %s", ErrBootTimeout, vm.Name, want, p.opts.BootTimeout)
			}
			return fmt.Errorf("wait for %s: %w", vm.Name, ctx.Err())
		case <-ticker.C:
		}
	}
}
