package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/jimyag/jvsan/internal/jvsan/repository/model"
	"gorm.io/gorm"
)

// DeploymentRepository 部署记录仓库接口
type DeploymentRepository interface {
	Create(ctx context.Context, id, backend string) error
	// StartStep 追加一个运行中的步骤
	StartStep(ctx context.Context, id, name string) error
	// FinishStep 结束最近一个名为 name 的步骤，stepErr 不为空时标记为失败
	FinishStep(ctx context.Context, id, name string, stepErr error) error
	// SetResources 记录部署分配的节点地址和虚拟机名称
	SetResources(ctx context.Context, id string, addresses, vms []string) error
	// Finish 结束部署
	Finish(ctx context.Context, id string, deployErr error) error
	Get(ctx context.Context, id string) (*entity.Deployment, error)
	// ReservedAddresses 返回运行中和失败的部署占用的地址
	// 失败的部署不回滚，地址在人工清理并删除记录之前一直被占用
	ReservedAddresses(ctx context.Context) ([]string, error)
}

type deploymentRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDeploymentRepository 创建部署记录仓库
func NewDeploymentRepository(db *gorm.DB) DeploymentRepository {
	return &deploymentRepository{db: db, now: time.Now}
}

func stateOf(err error) entity.DeploymentState {
	if err != nil {
		return entity.DeploymentFailed
	}
	return entity.DeploymentSucceeded
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (r *deploymentRepository) Create(ctx context.Context, id, backend string) error {
	now := r.now()
	return r.db.WithContext(ctx).Create(&model.Deployment{
		ID:        id,
		Backend:   backend,
		State:     string(entity.DeploymentRunning),
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
}

func (r *deploymentRepository) StartStep(ctx context.Context, id, name string) error {
	now := r.now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touch(tx, id, now, nil); err != nil {
			return err
		}
		return tx.Create(&model.DeploymentStep{
			DeploymentID: id,
			Name:         name,
			State:        string(entity.DeploymentRunning),
			StartedAt:    now,
		}).Error
	})
}

func (r *deploymentRepository) FinishStep(ctx context.Context, id, name string, stepErr error) error {
	now := r.now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var step model.DeploymentStep
		if err := tx.Where("deployment_id = ? AND name = ?", id, name).Order("id DESC").First(&step).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("step %s of deployment %s not started", name, id)
			}
			return err
		}
		step.State = string(stateOf(stepErr))
		step.Error = errorText(stepErr)
		step.FinishedAt = &now
		if err := tx.Save(&step).Error; err != nil {
			return err
		}
		return touch(tx, id, now, nil)
	})
}

func (r *deploymentRepository) SetResources(ctx context.Context, id string, addresses, vms []string) error {
	addressRecord, err := json.Marshal(addresses)
	if err != nil {
		return fmt.Errorf("marshal addresses: %w", err)
	}
	vmRecord, err := json.Marshal(vms)
	if err != nil {
		return fmt.Errorf("marshal vms: %w", err)
	}
	return touch(r.db.WithContext(ctx), id, r.now(), map[string]any{
		"addresses": string(addressRecord),
		"vms":       string(vmRecord),
	})
}

func (r *deploymentRepository) Finish(ctx context.Context, id string, deployErr error) error {
	now := r.now()
	return touch(r.db.WithContext(ctx), id, now, map[string]any{
		"state": string(stateOf(deployErr)),
		"error": errorText(deployErr),
	})
}

// touch 更新部署的 updated_at 以及 fields
func touch(tx *gorm.DB, id string, now time.Time, fields map[string]any) error {
	updates := map[string]any{"updated_at": now}
	for k, v := range fields {
		updates[k] = v
	}
	result := tx.Model(&model.Deployment{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrDeploymentNotFound, id)
	}
	return nil
}

func (r *deploymentRepository) Get(ctx context.Context, id string) (*entity.Deployment, error) {
	var m model.Deployment
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDeploymentNotFound, id)
		}
		return nil, err
	}
	return deploymentModelToEntity(&m)
}

func (r *deploymentRepository) ReservedAddresses(ctx context.Context) ([]string, error) {
	var records []string
	err := r.db.WithContext(ctx).Model(&model.Deployment{}).
		Where("state IN ? AND addresses <> ''", []string{string(entity.DeploymentRunning), string(entity.DeploymentFailed)}).
		Pluck("addresses", &records).Error
	if err != nil {
		return nil, err
	}

	var addresses []string
	for _, record := range records {
		var list []string
		if err := unmarshalList(record, &list); err != nil {
			return nil, fmt.Errorf("unmarshal deployment addresses: %w", err)
		}
		addresses = append(addresses, list...)
	}
	return addresses, nil
}
