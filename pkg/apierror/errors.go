package apierror

import "net/http"

// 集群编排相关的错误
var (
	ErrInvalidParameter = &Error{
		Code:       "InvalidParameter",
		Message:    "A parameter specified in the request is not valid.",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrUnsupportedTopology 节点数量或拓扑不在规划表中
	ErrUnsupportedTopology = &Error{
		Code:       "UnsupportedTopology",
		Message:    "The requested topology is not supported for this number of nodes.",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrPrerequisiteMissing 远端节点缺少必需的软件
	ErrPrerequisiteMissing = &Error{
		Code:       "PrerequisiteMissing",
		Message:    "A required package is missing on the storage node.",
		HTTPStatus: http.StatusPreconditionFailed,
	}

	// ErrBootTimeout 节点在限定时间内没有获得存储网络地址
	ErrBootTimeout = &Error{
		Code:       "BootTimeout",
		Message:    "The storage node did not come up within the boot timeout.",
		HTTPStatus: http.StatusGatewayTimeout,
	}

	// ErrRemoteCommandFailure 节点上的命令以非零状态退出
	ErrRemoteCommandFailure = &Error{
		Code:       "RemoteCommandFailure",
		Message:    "A command failed on the storage node.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrAddressPoolExhausted = &Error{
		Code:       "AddressPoolExhausted",
		Message:    "The storage network has no free address left.",
		HTTPStatus: http.StatusConflict,
	}

	ErrClusterNotFound = &Error{
		Code:       "ClusterNotFound",
		Message:    "The specified cluster does not exist.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrClusterAlreadyExists = &Error{
		Code:       "ClusterAlreadyExists",
		Message:    "A cluster with this backend already exists.",
		HTTPStatus: http.StatusConflict,
	}

	ErrDeploymentNotFound = &Error{
		Code:       "DeploymentNotFound",
		Message:    "The specified deployment does not exist.",
		HTTPStatus: http.StatusNotFound,
	}

	// ErrClusterBusy 同一组存储资源正在被另一个请求使用
	ErrClusterBusy = &Error{
		Code:       "ClusterBusy",
		Message:    "Another operation is in progress on the same storage resources.",
		HTTPStatus: http.StatusConflict,
	}

	ErrInternalError = &Error{
		Code:       "InternalError",
		Message:    "An internal error has occurred.",
		HTTPStatus: http.StatusInternalServerError,
	}
)
