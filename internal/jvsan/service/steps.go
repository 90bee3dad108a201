package service

import (
	"context"
	"time"

	"github.com/jimyag/jvsan/internal/jvsan/metrics"
	"github.com/jimyag/jvsan/internal/jvsan/repository"
	"github.com/rs/zerolog"
)

// 部署步骤名称
const (
	StepNetwork      = "network"
	StepNodes        = "nodes"
	StepPeerProbe    = "peer-probe"
	StepVolumeCreate = "volume-create"
	StepVolumeTuning = "volume-tuning"
	StepVolumeStart  = "volume-start"
	StepStoragePool  = "storage-pool"
	StepPersist      = "persist"
)

// StepRunner 执行并记录部署步骤
type StepRunner interface {
	Run(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// deploymentSteps 把每个步骤写入部署记录
// 部署失败不回滚，已完成的步骤留给运维人员清理
type deploymentSteps struct {
	deployments repository.DeploymentRepository
	id          string
}

func newDeploymentSteps(deployments repository.DeploymentRepository, id string) *deploymentSteps {
	return &deploymentSteps{deployments: deployments, id: id}
}

func (s *deploymentSteps) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	logger := zerolog.Ctx(ctx).With().Str("deployment_id", s.id).Str("step", name).Logger()

	// 记录失败不影响部署本身
	if err := s.deployments.StartStep(ctx, s.id, name); err != nil {
		logger.Warn().Err(err).Msg("Failed to record step start")
	}
	logger.Info().Msg("Step started")

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	metrics.ObserveStage(name, err, elapsed)

	if recErr := s.deployments.FinishStep(ctx, s.id, name, err); recErr != nil {
		logger.Warn().Err(recErr).Msg("Failed to record step result")
	}
	if err != nil {
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("Step failed")
		return err
	}
	logger.Info().Dur("elapsed", elapsed).Msg("Step finished")
	return nil
}

// directSteps 只执行，不记录
type directSteps struct{}

func (directSteps) Run(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
