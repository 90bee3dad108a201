package ginx

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
)

// bindArgs 绑定请求参数到 args 结构体
// JSON Body 优先，空 body 时使用 Query 参数
func bindArgs(ctx *gin.Context, args any) error {
	err := ctx.ShouldBindJSON(args)
	if err == nil {
		_ = ctx.ShouldBindQuery(args)
		return nil
	}
	if !errors.Is(err, io.EOF) {
		return err
	}
	return ctx.ShouldBindQuery(args)
}
