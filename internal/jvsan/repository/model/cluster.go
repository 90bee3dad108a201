package model

import "time"

// Cluster 集群配置表
// 每个存储后端一行，写入后不再修改
type Cluster struct {
	Backend            string    `gorm:"primaryKey;type:text;column:backend" json:"backend"`
	VolumeName         string    `gorm:"type:text;not null;column:volume_name" json:"volumeName"`
	Network            string    `gorm:"type:text;not null;column:network" json:"network"`
	Layout             string    `gorm:"type:text;not null;column:layout" json:"layout"`
	Redundancy         int       `gorm:"type:integer;not null;column:redundancy" json:"redundancy"`
	CapacityMultiplier int       `gorm:"type:integer;not null;column:capacity_multiplier" json:"capacityMultiplier"`
	Record             string    `gorm:"type:text;not null;column:record" json:"record"` // {"nodes":[...],"network":...}
	CreatedAt          time.Time `gorm:"type:datetime;not null;index:idx_clusters_created_at;column:created_at" json:"created_at"`
}

// TableName 指定表名
func (Cluster) TableName() string {
	return "clusters"
}
