package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jimyag/jvsan/internal/jvsan/config"
	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/jimyag/jvsan/internal/jvsan/metadata"
	"github.com/jimyag/jvsan/internal/jvsan/repository"
	"github.com/jimyag/jvsan/pkg/gluster"
	"github.com/jimyag/jvsan/pkg/libvirt"
	"github.com/jimyag/jvsan/pkg/sshexec"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// AssembleRequest 组建集群请求
type AssembleRequest struct {
	Backend  string
	Nodes    []entity.Node
	Network  string
	Topology entity.Topology
}

// AssemblerOptions 集群组建参数
type AssemblerOptions struct {
	Gluster        config.GlusterConfig
	LockDir        string
	LockTimeout    time.Duration
	CommandTimeout time.Duration
}

// ClusterAssembler 在已启动的节点上组建 GlusterFS 卷并注册为存储后端
type ClusterAssembler struct {
	hypervisor  libvirt.Hypervisor
	runner      *commandRunner
	clusters    repository.ClusterRepository
	gluster     config.GlusterConfig
	lockDir     string
	lockTimeout time.Duration
	now         func() time.Time
}

// NewClusterAssembler 创建集群组建器
func NewClusterAssembler(
	hypervisor libvirt.Hypervisor,
	executor sshexec.Executor,
	clusters repository.ClusterRepository,
	opts AssemblerOptions,
) *ClusterAssembler {
	return &ClusterAssembler{
		hypervisor:  hypervisor,
		runner:      newCommandRunner(executor, opts.CommandTimeout),
		clusters:    clusters,
		gluster:     opts.Gluster,
		lockDir:     opts.LockDir,
		lockTimeout: opts.LockTimeout,
		now:         time.Now,
	}
}

// Assemble 组建集群
//
// 所有命令都在第一个节点上依次执行：加入存储池、创建卷、调优、启动卷，
// 然后在第一个节点的宿主机上注册 gluster 存储池，最后写入集群配置。
// 任何命令退出码非零都会中止后续步骤，已完成的步骤不会回滚。
// 同一后端的组建由文件锁串行化。
func (a *ClusterAssembler) Assemble(ctx context.Context, steps StepRunner, req *AssembleRequest) (*entity.ClusterConfig, error) {
	if len(req.Nodes) == 0 {
		return nil, fmt.Errorf("no node to assemble")
	}
	if steps == nil {
		steps = directSteps{}
	}

	var cfg *entity.ClusterConfig
	err := metadata.WithLock(ctx, a.lockDir, "backend-"+req.Backend, a.lockTimeout, func() error {
		var err error
		cfg, err = a.assemble(ctx, steps, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *ClusterAssembler) assemble(ctx context.Context, steps StepRunner, req *AssembleRequest) (*entity.ClusterConfig, error) {
	logger := zerolog.Ctx(ctx)

	first := req.Nodes[0]
	bootstrap := first.Address()
	addresses := lo.Map(req.Nodes, func(n entity.Node, _ int) string { return n.Address() })
	volume := a.gluster.VolumeName

	logger.Info().
		Str("backend", req.Backend).
		Str("bootstrap", bootstrap).
		Str("layout", string(req.Topology.Layout)).
		Int("redundancy", req.Topology.Redundancy).
		Int("nodes", len(req.Nodes)).
		Msg("Assembling storage cluster")

	if err := steps.Run(ctx, StepPeerProbe, func(ctx context.Context) error {
		for _, address := range addresses[1:] {
			if _, err := a.runner.run(ctx, bootstrap, "peer_probe", gluster.PeerProbe(address)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := steps.Run(ctx, StepVolumeCreate, func(ctx context.Context) error {
		cmd, err := gluster.VolumeCreate(volume, gluster.Layout(req.Topology.Layout), req.Topology.Redundancy, addresses, a.gluster.BrickPath)
		if err != nil {
			return err
		}
		_, err = a.runner.run(ctx, bootstrap, "volume_create", cmd)
		return err
	}); err != nil {
		return nil, err
	}

	if err := steps.Run(ctx, StepVolumeTuning, func(ctx context.Context) error {
		for _, option := range a.tuning(req.Topology.Layout) {
			if _, err := a.runner.run(ctx, bootstrap, "volume_set", gluster.VolumeSet(volume, option)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := steps.Run(ctx, StepVolumeStart, func(ctx context.Context) error {
		_, err := a.runner.run(ctx, bootstrap, "volume_start", gluster.VolumeStart(volume))
		return err
	}); err != nil {
		return nil, err
	}

	if err := steps.Run(ctx, StepStoragePool, func(ctx context.Context) error {
		return a.hypervisor.CreateGlusterPool(ctx, &libvirt.GlusterPoolSpec{
			Name:   req.Backend,
			Host:   first.Host,
			Server: bootstrap,
			Volume: volume,
		})
	}); err != nil {
		return nil, err
	}

	cfg := &entity.ClusterConfig{
		Backend:    req.Backend,
		Nodes:      req.Nodes,
		Network:    req.Network,
		Topology:   req.Topology,
		VolumeName: volume,
		CreatedAt:  a.now(),
	}
	if err := steps.Run(ctx, StepPersist, func(ctx context.Context) error {
		return a.clusters.Create(ctx, cfg)
	}); err != nil {
		return nil, err
	}

	logger.Info().Str("backend", req.Backend).Str("server", bootstrap+":/"+volume).Msg("Storage cluster assembled")
	return cfg, nil
}

// tuning 配置中的调优参数替换默认序列，布局必需的参数仍然追加在后面
func (a *ClusterAssembler) tuning(layout entity.Layout) []gluster.Option {
	if len(a.gluster.Tuning) > 0 {
		return gluster.WithLayoutTuning(a.gluster.Tuning, gluster.Layout(layout))
	}
	return gluster.DefaultTuning(gluster.Layout(layout))
}
