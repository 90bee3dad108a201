// Package qemuimg 封装 qemu-img 命令行工具
//
// 用于在导入黄金模板前读取镜像的格式与虚拟大小，并检查镜像完整性。
//
//	client := qemuimg.New("")
//	info, err := client.Info(ctx, "/var/lib/jvsan/xosan.qcow2")
//	if err != nil {
//		return err
//	}
//	fmt.Println(info.Format, info.VirtualSize)
package qemuimg
