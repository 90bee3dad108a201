package cloudinit

import (
	"bytes"
	"fmt"

	"github.com/kdomanski/iso9660"
)

// VolumeLabel NoCloud 数据源要求的卷标
const VolumeLabel = "CIDATA"

// BuildISO 在内存中生成 NoCloud ISO 镜像
// 返回的内容可以直接上传到 libvirt 存储卷
func BuildISO(docs *Documents) ([]byte, error) {
	if docs == nil {
		return nil, fmt.Errorf("documents are required")
	}

	writer, err := iso9660.NewWriter()
	if err != nil {
		return nil, fmt.Errorf("failed to create ISO writer: %w", err)
	}
	defer func() {
		_ = writer.Cleanup()
	}()

	files := []struct {
		name    string
		content string
	}{
		{name: "meta-data", content: docs.MetaData},
		{name: "user-data", content: docs.UserData},
		{name: "network-config", content: docs.NetworkConfig},
	}
	for _, f := range files {
		if f.content == "" {
			continue
		}
		if err := writer.AddFile(bytes.NewReader([]byte(f.content)), f.name); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", f.name, err)
		}
	}

	var buf bytes.Buffer
	if err := writer.WriteTo(&buf, VolumeLabel); err != nil {
		return nil, fmt.Errorf("failed to write ISO image: %w", err)
	}
	return buf.Bytes(), nil
}
