// Package service 实现存储集群的规划、部署与查询
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jimyag/jvsan/internal/jvsan/metadata"
	"github.com/jimyag/jvsan/internal/jvsan/repository"
	"github.com/jimyag/jvsan/pkg/apierror"
)

var (
	// ErrUnsupportedTopology 节点数或拓扑不在规划表中
	ErrUnsupportedTopology = errors.New("unsupported topology")
	// ErrPrerequisiteMissing 部署所需的外部条件不满足，在产生任何副作用之前返回
	ErrPrerequisiteMissing = errors.New("prerequisite missing")
	// ErrBootTimeout 节点在限定时间内没有报告存储网络地址
	ErrBootTimeout = errors.New("boot timeout")
	// ErrAddressPoolExhausted 存储网络地址耗尽
	ErrAddressPoolExhausted = errors.New("address pool exhausted")
	// ErrUnknownNode 地址不属于集群中的任何节点
	ErrUnknownNode = errors.New("unknown node")
)

// RemoteCommandError 远程命令以非零状态退出
type RemoteCommandError struct {
	Address    string
	Command    string
	ExitStatus int
	Stderr     string
}

func (e *RemoteCommandError) Error() string {
	return fmt.Sprintf("command %q on %s exited with status %d: %s",
		e.Command, e.Address, e.ExitStatus, strings.TrimSpace(e.Stderr))
}

// toAPIError 将服务内部错误转换为 API 错误
func toAPIError(err error, message string) error {
	if err == nil {
		return nil
	}

	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return err
	}

	var remoteErr *RemoteCommandError
	switch {
	case errors.As(err, &remoteErr):
		return apierror.WrapError(apierror.ErrRemoteCommandFailure, message+": "+remoteErr.Error(), err)
	case errors.Is(err, ErrUnsupportedTopology):
		return apierror.WrapError(apierror.ErrUnsupportedTopology, message+": "+err.Error(), err)
	case errors.Is(err, ErrPrerequisiteMissing):
		return apierror.WrapError(apierror.ErrPrerequisiteMissing, message+": "+err.Error(), err)
	case errors.Is(err, ErrBootTimeout):
		return apierror.WrapError(apierror.ErrBootTimeout, message+": "+err.Error(), err)
	case errors.Is(err, ErrAddressPoolExhausted):
		return apierror.WrapError(apierror.ErrAddressPoolExhausted, message+": "+err.Error(), err)
	case errors.Is(err, ErrUnknownNode):
		return apierror.WrapError(apierror.ErrInvalidParameter, message+": "+err.Error(), err)
	case errors.Is(err, metadata.ErrLockTimeout):
		return apierror.WrapError(apierror.ErrClusterBusy, message, err)
	case errors.Is(err, repository.ErrClusterNotFound):
		return apierror.WrapError(apierror.ErrClusterNotFound, message, err)
	case errors.Is(err, repository.ErrClusterExists):
		return apierror.WrapError(apierror.ErrClusterAlreadyExists, message, err)
	case errors.Is(err, repository.ErrDeploymentNotFound):
		return apierror.WrapError(apierror.ErrDeploymentNotFound, message, err)
	default:
		return apierror.WrapError(apierror.ErrInternalError, message, err)
	}
}
