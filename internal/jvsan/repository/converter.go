package repository

import (
	"encoding/json"
	"fmt"

	"github.com/jimyag/jvsan/internal/jvsan/entity"
	"github.com/jimyag/jvsan/internal/jvsan/repository/model"
	"github.com/jinzhu/copier"
)

// clusterRecord 持久化的集群记录
type clusterRecord struct {
	Nodes   []entity.Node `json:"nodes"`
	Network string        `json:"network"`
}

func clusterEntityToModel(e *entity.ClusterConfig) (*model.Cluster, error) {
	m := &model.Cluster{}
	if err := copier.Copy(m, e); err != nil {
		return nil, fmt.Errorf("copy cluster entity to model: %w", err)
	}
	m.Layout = string(e.Topology.Layout)
	m.Redundancy = e.Topology.Redundancy
	m.CapacityMultiplier = e.Topology.CapacityMultiplier

	record, err := json.Marshal(clusterRecord{Nodes: e.Nodes, Network: e.Network})
	if err != nil {
		return nil, fmt.Errorf("marshal cluster record: %w", err)
	}
	m.Record = string(record)
	return m, nil
}

func clusterModelToEntity(m *model.Cluster) (*entity.ClusterConfig, error) {
	e := &entity.ClusterConfig{}
	if err := copier.Copy(e, m); err != nil {
		return nil, fmt.Errorf("copy cluster model to entity: %w", err)
	}
	e.Topology = entity.Topology{
		Layout:             entity.Layout(m.Layout),
		Redundancy:         m.Redundancy,
		CapacityMultiplier: m.CapacityMultiplier,
	}

	var record clusterRecord
	if err := json.Unmarshal([]byte(m.Record), &record); err != nil {
		return nil, fmt.Errorf("unmarshal cluster record of %s: %w", m.Backend, err)
	}
	e.Nodes = record.Nodes
	if record.Network != "" {
		e.Network = record.Network
	}
	return e, nil
}

func deploymentModelToEntity(m *model.Deployment) (*entity.Deployment, error) {
	e := &entity.Deployment{}
	if err := copier.Copy(e, m); err != nil {
		return nil, fmt.Errorf("copy deployment model to entity: %w", err)
	}
	e.State = entity.DeploymentState(m.State)
	if err := unmarshalList(m.AddressRecord, &e.Addresses); err != nil {
		return nil, fmt.Errorf("unmarshal addresses of deployment %s: %w", m.ID, err)
	}
	if err := unmarshalList(m.VMRecord, &e.VMs); err != nil {
		return nil, fmt.Errorf("unmarshal vms of deployment %s: %w", m.ID, err)
	}
	e.Steps = make([]entity.DeploymentStep, 0, len(m.Steps))
	for _, s := range m.Steps {
		e.Steps = append(e.Steps, entity.DeploymentStep{
			Name:       s.Name,
			State:      entity.DeploymentState(s.State),
			Error:      s.Error,
			StartedAt:  s.StartedAt,
			FinishedAt: s.FinishedAt,
		})
	}
	return e, nil
}

// unmarshalList 解析 JSON 数组，空字符串表示没有记录
func unmarshalList(record string, v *[]string) error {
	if record == "" {
		return nil
	}
	return json.Unmarshal([]byte(record), v)
}
