package storage

import (
	"context"
	"fmt"

	"github.com/dev-tams/newsdrop/internal/config"
	"github.com/dev-tams/newsdrop/internal/storage/local"
	"github.com/dev-tams/newsdrop/internal/storage/rmapi"
	s3store "github.com/dev-tams/newsdrop/internal/storage/s3"
)

// FromConfig builds the configured remote store.
func FromConfig(ctx context.Context, st config.StoreConfig) (Store, error) {
	switch st.Type {
	case config.StoreRmapi:
		return rmapi.New(rmapi.Options{
			Binary:     st.Rmapi.Binary,
			ConfigPath: st.Rmapi.ConfigPath,
			Endpoints: rmapi.Endpoints{
				AuthURL:     st.Rmapi.AuthURL,
				DocumentURL: st.Rmapi.DocumentURL,
			},
		})

	case config.StoreLocal:
		if st.Local.Path == "" {
			return nil, fmt.Errorf("store: local.path is required")
		}
		return local.New(st.Local.Path), nil

	case config.StoreS3:
		if st.S3.AccessKey == "" || st.S3.SecretKey == "" {
			return nil, fmt.Errorf("store: s3.access_key and s3.secret_key are required (or env expansion failed)")
		}
		s, err := s3store.New(ctx, s3store.Options{
			Bucket:    st.S3.Bucket,
			Region:    st.S3.Region,
			Prefix:    st.S3.Prefix,
			Endpoint:  st.S3.Endpoint,
			AccessKey: st.S3.AccessKey,
			SecretKey: st.S3.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("store: unknown type %q", st.Type)
	}
}
