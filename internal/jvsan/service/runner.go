package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jimyag/jvsan/internal/jvsan/metrics"
	"github.com/jimyag/jvsan/pkg/sshexec"
	"github.com/rs/zerolog"
)

// commandRunner 在存储节点上执行 gluster 命令
// 退出码非零转换为 *RemoteCommandError
type commandRunner struct {
	executor sshexec.Executor
	timeout  time.Duration
}

func newCommandRunner(executor sshexec.Executor, timeout time.Duration) *commandRunner {
	return &commandRunner{executor: executor, timeout: timeout}
}

// run 执行 command 并返回标准输出，operation 用作指标标签
func (r *commandRunner) run(ctx context.Context, address, operation, command string) (string, error) {
	logger := zerolog.Ctx(ctx)

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	logger.Debug().Str("address", address).Str("command", command).Msg("Running remote command")

	start := time.Now()
	result, err := r.executor.Execute(ctx, address, command)
	if err == nil && result.ExitStatus != 0 {
		err = &RemoteCommandError{
			Address:    address,
			Command:    command,
			ExitStatus: result.ExitStatus,
			Stderr:     result.Stderr,
		}
	}
	metrics.ObserveRemoteCommand(operation, err, time.Since(start))

	if err != nil {
		logger.Error().Err(err).Str("address", address).Str("command", command).Msg("Remote command failed")
		if _, ok := err.(*RemoteCommandError); ok {
			return "", err
		}
		return "", fmt.Errorf("execute %q on %s: %w", command, address, err)
	}
	return result.Stdout, nil
}
