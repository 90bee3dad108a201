package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/jimyag/jvsan/internal/jvsan/repository"
	"github.com/jimyag/jvsan/pkg/gluster"
	"github.com/jimyag/jvsan/pkg/neigh"
	"github.com/jimyag/jvsan/pkg/sshexec"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// VolumeInspector 查询运行中集群的卷和存储池成员
type VolumeInspector struct {
	clusters repository.ClusterRepository
	runner   *commandRunner
	neigh    neigh.Table
}

// NewVolumeInspector 创建卷查询器
func NewVolumeInspector(
	clusters repository.ClusterRepository,
	executor sshexec.Executor,
	table neigh.Table,
	commandTimeout time.Duration,
) *VolumeInspector {
	return &VolumeInspector{
		clusters: clusters,
		runner:   newCommandRunner(executor, commandTimeout),
		neigh:    table,
	}
}

// Inspect 查询 backend 对应集群的卷信息
//
// 命令发往第一个可达的节点。brick 按 IP 匹配集群配置中的节点，
// 匹配不到时 VM 为 nil；MAC 来自本机邻居表，查不到时为空。
func (i *VolumeInspector) Inspect(ctx context.Context, backend string) (*entity.VolumeInfo, error) {
	logger := zerolog.Ctx(ctx)

	cfg, err := i.clusters.Get(ctx, backend)
	if err != nil {
		return nil, err
	}

	var output string
	address, err := i.onFirstReachable(ctx, cfg.Nodes, func(address string) error {
		var err error
		output, err = i.runner.run(ctx, address, "volume_info", gluster.VolumeInfo(cfg.VolumeName))
		return err
	})
	if err != nil {
		return nil, err
	}

	volume := gluster.ParseVolumeInfo(output)
	macs := i.snapshot(ctx)
	nodesByIP := lo.KeyBy(cfg.Nodes, func(n entity.Node) string { return n.Address() })

	bricks := make([]entity.Brick, 0, len(volume.Bricks))
	for _, b := range volume.Bricks {
		brick := entity.Brick{
			Config: b.Config,
			IP:     b.IP,
			MAC:    macs[b.IP],
		}
		if node, ok := nodesByIP[b.IP]; ok {
			vm := node.VM
			brick.VM = &vm
		} else {
			logger.Debug().Str("backend", backend).Str("ip", b.IP).Msg("Brick does not belong to any known node")
		}
		bricks = append(bricks, brick)
	}

	peers, err := i.listPeers(ctx, address, macs)
	if err != nil {
		return nil, err
	}

	return &entity.VolumeInfo{
		Backend: backend,
		Fields:  volume.Fields,
		Options: volume.Options,
		Bricks:  bricks,
		Peers:   peers,
	}, nil
}

// ListPeers 查询存储池成员
// address 为空时使用第一个可达的节点，否则必须是集群中的节点
func (i *VolumeInspector) ListPeers(ctx context.Context, backend, address string) ([]entity.Peer, error) {
	cfg, err := i.clusters.Get(ctx, backend)
	if err != nil {
		return nil, err
	}

	nodes := cfg.Nodes
	if address != "" {
		node, ok := lo.Find(cfg.Nodes, func(n entity.Node) bool { return n.Address() == address })
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a node of %s", ErrUnknownNode, address, backend)
		}
		nodes = []entity.Node{node}
	}

	macs := i.snapshot(ctx)
	var peers []entity.Peer
	if _, err := i.onFirstReachable(ctx, nodes, func(address string) error {
		var err error
		peers, err = i.listPeers(ctx, address, macs)
		return err
	}); err != nil {
		return nil, err
	}
	return peers, nil
}

func (i *VolumeInspector) listPeers(ctx context.Context, address string, macs map[string]string) ([]entity.Peer, error) {
	output, err := i.runner.run(ctx, address, "pool_list", gluster.PoolList())
	if err != nil {
		return nil, err
	}

	parsed := gluster.ParsePoolList(output, address)
	peers := make([]entity.Peer, 0, len(parsed))
	for _, p := range parsed {
		peers = append(peers, entity.Peer{
			UUID:     p.UUID,
			Hostname: p.Hostname,
			State:    p.State,
			MAC:      macs[p.Hostname],
		})
	}
	return peers, nil
}

// onFirstReachable 按节点顺序执行 fn，直到某个节点成功
// 命令退出码非零说明节点可达，直接返回该错误
func (i *VolumeInspector) onFirstReachable(ctx context.Context, nodes []entity.Node, fn func(address string) error) (string, error) {
	if len(nodes) == 0 {
		return "", fmt.Errorf("cluster has no node")
	}

	var lastErr error
	for _, node := range nodes {
		address := node.Address()
		err := fn(address)
		if err == nil {
			return address, nil
		}

		var remoteErr *RemoteCommandError
		if errors.As(err, &remoteErr) || ctx.Err() != nil {
			return "", err
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("address", address).Msg("Node unreachable, trying next one")
		lastErr = err
	}
	return "", lastErr
}

// snapshot 读取邻居表，失败时返回空表
func (i *VolumeInspector) snapshot(ctx context.Context) map[string]string {
	if i.neigh == nil {
		return map[string]string{}
	}
	macs, err := i.neigh.Snapshot(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to read neighbor table")
		return map[string]string{}
	}
	return macs
}
