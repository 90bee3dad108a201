package idgen

import (
	"fmt"
	"hash/fnv"
	"os"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

var startTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator 递增 ID 生成器
// 使用 Sonyflake 算法生成全局唯一且递增的 ID
type Generator struct {
	sf *sonyflake.Sonyflake
}

var (
	defaultGenerator     *Generator
	defaultGeneratorOnce sync.Once
)

// DefaultGenerator 返回默认的 ID 生成器
func DefaultGenerator() *Generator {
	defaultGeneratorOnce.Do(func() {
		defaultGenerator = New()
	})
	return defaultGenerator
}

// New 创建新的 ID 生成器
// 机器 ID 默认取自私有 IP 的低 16 位，没有私有 IP 时由主机名计算
func New() *Generator {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: startTime,
	})
	if sf == nil {
		sf = sonyflake.NewSonyflake(sonyflake.Settings{
			StartTime: startTime,
			MachineID: hostnameMachineID,
		})
	}
	return &Generator{
		sf: sf,
	}
}

func hostnameMachineID() (uint16, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return 0, err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(hostname))
	return uint16(h.Sum32()), nil
}

// generateIDWithPrefix 生成带前缀的 ID
func (g *Generator) generateIDWithPrefix(prefix, errorMsg string) (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", fmt.Errorf("%s: %w", errorMsg, err)
	}
	return fmt.Sprintf("%s-%d", prefix, id), nil
}

// GenerateBackendID 生成集群后端名（格式：jvsan-{递增 ID}）
func (g *Generator) GenerateBackendID() (string, error) {
	return g.generateIDWithPrefix("jvsan", "generate backend ID")
}

// GenerateDeploymentID 生成部署 ID（格式：dep-{递增 ID}）
func (g *Generator) GenerateDeploymentID() (string, error) {
	return g.generateIDWithPrefix("dep", "generate deployment ID")
}

// GenerateBackendID 使用默认生成器生成集群后端名
func GenerateBackendID() (string, error) {
	return DefaultGenerator().GenerateBackendID()
}

// GenerateDeploymentID 使用默认生成器生成部署 ID
func GenerateDeploymentID() (string, error) {
	return DefaultGenerator().GenerateDeploymentID()
}
