package config

import (
	"fmt"
	"strings"

	"github.com/dev-tams/newsdrop/internal/schedule"
	"github.com/dev-tams/newsdrop/internal/source"
)

//simple range over values to validate needed variables

func (c *Config) Validate() error {
	if c.Version == 0 {
		return fmt.Errorf("config.version must be > 0")
	}
	if strings.TrimSpace(c.Folder) == "" {
		return fmt.Errorf("folder is required")
	}
	if c.MaxDays < -1 {
		return fmt.Errorf("max_days must be >= -1 (-1 disables retention), got %d", c.MaxDays)
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required (known: %s)", strings.Join(source.Keys(), ", "))
	}
	seen := map[source.Kind]struct{}{}
	for i, s := range c.Sources {
		k, err := source.ParseKind(s)
		if err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, ok := seen[k]; ok {
			return fmt.Errorf("sources[%d]: duplicate source %q", i, s)
		}
		seen[k] = struct{}{}
	}
	if err := source.CheckPrefixes(source.Prefixes()); err != nil {
		return err
	}

	switch c.Store.Type {
	case StoreRmapi:
	case StoreLocal:
		if c.Store.Local.Path == "" {
			return fmt.Errorf("store.local.path is required for store type %q", StoreLocal)
		}
	case StoreS3:
		if c.Store.S3.Bucket == "" || c.Store.S3.Region == "" {
			return fmt.Errorf("store.s3.bucket and store.s3.region are required for store type %q", StoreS3)
		}
	default:
		return fmt.Errorf("store.type %q is not one of %s, %s, %s", c.Store.Type, StoreRmapi, StoreS3, StoreLocal)
	}

	if s := strings.TrimSpace(c.Schedule); s != "" {
		if _, err := schedule.ParseCronSpec(s); err != nil {
			return fmt.Errorf("schedule %q is invalid: %w", s, err)
		}
	}
	return nil
}

// Kinds returns the validated source kinds in configured order.
func (c *Config) Kinds() ([]source.Kind, error) {
	out := make([]source.Kind, 0, len(c.Sources))
	for _, s := range c.Sources {
		k, err := source.ParseKind(s)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
