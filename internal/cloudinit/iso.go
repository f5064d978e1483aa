package cloudinit

import (
	"bytes"
	"fmt"

	"github.com/kdomanski/iso9660"
)

// SeedISO packages the rendered seed files into a NoCloud ISO. The
// volume label must be CIDATA, uppercase, for cloud-init to find it.
func SeedISO(spec SeedSpec) ([]byte, error) {
	ud, err := UserData(spec)
	if err != nil {
		return nil, err
	}
	md, err := MetaData(spec)
	if err != nil {
		return nil, err
	}
	nc, err := NetworkConfig(spec)
	if err != nil {
		return nil, err
	}

	writer, err := iso9660.NewWriter()
	if err != nil {
		return nil, fmt.Errorf("create ISO writer: %w", err)
	}
	defer func() { _ = writer.Cleanup() }()

	files := map[string]string{
		"user-data":      ud,
		"meta-data":      md,
		"network-config": nc,
	}
	for name, content := range files {
		if err := writer.AddFile(bytes.NewReader([]byte(content)), name); err != nil {
			return nil, fmt.Errorf("add %s to seed ISO: %w", name, err)
		}
	}

	var buf bytes.Buffer
	if err := writer.WriteTo(&buf, "CIDATA"); err != nil {
		return nil, fmt.Errorf("write seed ISO: %w", err)
	}

	return buf.Bytes(), nil
}
