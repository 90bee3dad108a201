// Package idgen 基于 Sonyflake 生成带前缀的递增 ID
//
//	backend, err := idgen.GenerateBackendID()    // jvsan-1234567890
//	deployment, err := idgen.GenerateDeploymentID() // dep-1234567891
package idgen
