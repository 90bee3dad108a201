// Package ginx 提供 gin 框架的 handler 适配器，支持自动参数绑定和响应处理
//
// 请求与响应均为 JSON。错误链中的 *apierror.Error 决定响应状态码。
//
//	router := gin.New()
//	router.Use(ginx.RequestLogger(logger))
//
//	// 有参数，有返回值，有 error
//	router.POST("/api/describe-volume", ginx.Adapt5(func(c *gin.Context, args *DescribeVolumeRequest) (*VolumeInfo, error) {
//	    return &VolumeInfo{...}, nil
//	}))
//
//	// 无参数，有返回值
//	router.GET("/healthz", ginx.Adapt2(func(c *gin.Context) string {
//	    return "ok"
//	}))
package ginx
