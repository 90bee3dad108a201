package ginx

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jimyag/jvsan/pkg/apierror"
)

// renderResponse 渲染响应
func renderResponse(ctx *gin.Context, response any) {
	if response == nil {
		ctx.Status(http.StatusNoContent)
		return
	}

	switch v := response.(type) {
	case string:
		ctx.String(http.StatusOK, v)
		return
	case int, int64, uint, uint64, float64, bool:
		ctx.JSON(http.StatusOK, gin.H{"value": v})
		return
	}
	ctx.JSON(http.StatusOK, response)
}

// renderError 渲染错误响应
// 错误链中有 *apierror.Error 时使用其状态码和内容，否则使用 statusCode
func renderError(ctx *gin.Context, statusCode int, err error) {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		ctx.JSON(apiErr.Status(), apierror.NewErrorResponse(RequestID(ctx), apiErr))
		return
	}

	var errorResp *apierror.ErrorResponse
	if errors.As(err, &errorResp) {
		if len(errorResp.Errors) > 0 {
			statusCode = errorResp.Errors[0].Status()
		}
		ctx.JSON(statusCode, errorResp)
		return
	}

	code := "InternalError"
	if statusCode == http.StatusBadRequest {
		code = "InvalidParameter"
	}
	ctx.JSON(statusCode, apierror.NewErrorResponse(RequestID(ctx), apierror.NewErrorWithStatus(code, err.Error(), statusCode)))
}
