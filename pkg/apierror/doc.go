// Package apierror 提供统一的 API 错误类型
//
// 错误响应为 JSON：
//
//	{
//	    "errors": [
//	        {
//	            "code": "UnsupportedTopology",
//	            "message": "disperse with redundancy 2 is not supported for 3 nodes"
//	        }
//	    ],
//	    "requestID": "ea966190-f9aa-478e-9ede-example"
//	}
//
// 服务层返回预定义错误的包装，由 HTTP 层映射为状态码：
//
//	return apierror.WrapError(apierror.ErrClusterNotFound, "cluster jvsan-1 not found", err)
package apierror
