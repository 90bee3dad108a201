package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/jimyag/jvsan/internal/jvsan/repository/model"
	"gorm.io/gorm"
)

// ClusterRepository 集群配置仓库接口
type ClusterRepository interface {
	// Create 写入集群配置，同一后端只能写入一次
	Create(ctx context.Context, cfg *entity.ClusterConfig) error
	Get(ctx context.Context, backend string) (*entity.ClusterConfig, error)
	// List backends 为空时返回全部，按创建时间排序
	List(ctx context.Context, backends []string) ([]entity.ClusterConfig, error)
}

type clusterRepository struct {
	db *gorm.DB
}

// NewClusterRepository 创建集群配置仓库
func NewClusterRepository(db *gorm.DB) ClusterRepository {
	return &clusterRepository{db: db}
}

func (r *clusterRepository) Create(ctx context.Context, cfg *entity.ClusterConfig) error {
	m, err := clusterEntityToModel(cfg)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Cluster{}).Where("backend = ?", cfg.Backend).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", ErrClusterExists, cfg.Backend)
		}
		return tx.Create(m).Error
	})
}

func (r *clusterRepository) Get(ctx context.Context, backend string) (*entity.ClusterConfig, error) {
	var m model.Cluster
	if err := r.db.WithContext(ctx).Where("backend = ?", backend).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrClusterNotFound, backend)
		}
		return nil, err
	}
	return clusterModelToEntity(&m)
}

func (r *clusterRepository) List(ctx context.Context, backends []string) ([]entity.ClusterConfig, error) {
	var models []*model.Cluster
	query := r.db.WithContext(ctx).Order("created_at ASC")
	if len(backends) > 0 {
		query = query.Where("backend IN ?", backends)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	clusters := make([]entity.ClusterConfig, 0, len(models))
	for _, m := range models {
		e, err := clusterModelToEntity(m)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, *e)
	}
	return clusters, nil
}
