// Package secrets loads credentials from a directory of plain-text files.
// Each file is one secret: the filename is the key and the trimmed contents
// are the value. Known keys: rmapi-device-token, s3-access-key, s3-secret-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dev-tams/newsdrop/internal/errutil"
)

const (
	DeviceToken = "rmapi-device-token"
	S3AccessKey = "s3-access-key"
	S3SecretKey = "s3-secret-key"
)

// Load reads all files in dir. A missing directory is not an error.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	if dir == "" {
		return map[string]string{}, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errutil.LogMsg(err, "Could not read secret", "name", name)
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			out[name] = v
		}
	}
	return out, nil
}
