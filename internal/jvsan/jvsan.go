// Package jvsan 提供 jvsan 服务器的主入口和初始化逻辑
package jvsan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jimmicro/grace"
	"github.com/jimyag/jvsan/internal/jvsan/api"
	"github.com/jimyag/jvsan/internal/jvsan/config"
	"github.com/jimyag/jvsan/internal/jvsan/metadata"
	"github.com/jimyag/jvsan/internal/jvsan/repository"
	"github.com/jimyag/jvsan/internal/jvsan/service"
	"github.com/jimyag/jvsan/pkg/libvirt"
	"github.com/jimyag/jvsan/pkg/neigh"
	"github.com/jimyag/jvsan/pkg/qemuimg"
	"github.com/jimyag/jvsan/pkg/sshexec"
	"github.com/rs/zerolog"
)

const serviceKeyComment = "jvsan"

type Server struct {
	cfg     *config.Config
	api     *api.API
	repo    *repository.Repository
	libvirt *libvirt.Client
}

func New(cfg *config.Config) (*Server, error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger

	// 1. 服务密钥，公钥通过 cloud-init 写入每个存储节点
	key, err := metadata.NewKeyStore(cfg.KeyDir(), serviceKeyComment).LoadOrCreate()
	if err != nil {
		return nil, err
	}
	logger.Info().Str("fingerprint", key.Fingerprint).Msg("Service key loaded")

	// 2. 集群配置和部署记录
	repo, err := repository.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	// 3. 宿主机连接在首次使用时建立
	libvirtClient := libvirt.New(cfg.Hosts)
	logger.Info().Strs("hosts", libvirtClient.Hosts()).Msg("Hypervisors configured")

	executor := sshexec.New(key.Signer,
		sshexec.WithUser(cfg.SSH.User),
		sshexec.WithPort(cfg.SSH.Port),
		sshexec.WithDialTimeout(cfg.SSH.DialTimeout),
	)

	provisionService := service.NewProvisionService(cfg, service.Dependencies{
		Hypervisor:    libvirtClient,
		Images:        qemuimg.New(""),
		Executor:      executor,
		Neighbors:     neigh.New(),
		Clusters:      repository.NewClusterRepository(repo.DB()),
		Deployments:   repository.NewDeploymentRepository(repo.DB()),
		AuthorizedKey: key.PublicKey,
	})

	apiInstance, err := api.New(cfg.Address, logger, provisionService)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	return &Server{
		cfg:     cfg,
		api:     apiInstance,
		repo:    repo,
		libvirt: libvirtClient,
	}, nil
}

func (s *Server) Run(ctx context.Context) error {
	services := []grace.Grace{
		s.api,
	}

	shepherd := grace.NewShepherd(
		services,
		grace.WithTimeout(30*time.Second),
		grace.WithLogger(&zerologLogger{}),
	)

	shepherd.Start(ctx)
	return s.close()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.api.Shutdown(ctx)
}

// close 释放宿主机连接和数据库
func (s *Server) close() error {
	return errors.Join(s.libvirt.Close(), s.repo.Close())
}

// Name 实现 grace.Grace 接口
func (s *Server) Name() string {
	return "jvsan Server"
}

// zerologLogger 实现 grace.Logger 接口
type zerologLogger struct{}

func (l *zerologLogger) Info(msg string, args ...interface{}) {
	logger := zerolog.DefaultContextLogger.Info()
	if len(args) > 0 {
		logger.Msgf(msg, args...)
	} else {
		logger.Msg(msg)
	}
}

func (l *zerologLogger) Error(msg string, args ...interface{}) {
	logger := zerolog.DefaultContextLogger.Error()
	if len(args) > 0 {
		logger.Msgf(msg, args...)
	} else {
		logger.Msg(msg)
	}
}
