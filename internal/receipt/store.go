package receipt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gestion-locative/internal/config"
	"gestion-locative/internal/period"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// Store keeps rendered receipts under a slash separated key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// DocumentKey files a receipt under <yyyy>/<mm>/.
func DocumentKey(month time.Time, number string) string {
	return path.Join(month.Format("2006"), month.Format("01"),
		fmt.Sprintf("quittance_%s_%s.pdf", number, period.Prefix(month)))
}

// DiskStore writes under Root/quittances.
type DiskStore struct {
	Root string
}

func (d DiskStore) path(key string) string {
	return filepath.Join(d.Root, "quittances", filepath.FromSlash(key))
}

func (d DiskStore) Put(_ context.Context, key string, data []byte) error {
	p := d.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

func (d DiskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return os.Open(d.path(key))
}

type OSSStore struct {
	bucket *oss.Bucket
	prefix string
}

func NewOSSStore(cfg config.OSSConfig) (*OSSStore, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}
	bkt, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("client.Bucket: %w", err)
	}
	return &OSSStore{bucket: bkt, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (s *OSSStore) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *OSSStore) Put(ctx context.Context, key string, data []byte) error {
	return s.bucket.PutObject(s.objectKey(key), bytes.NewReader(data),
		oss.WithContext(ctx),
		oss.ContentType("application/pdf"),
		oss.ContentDisposition("inline"),
	)
}

func (s *OSSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.bucket.GetObject(s.objectKey(key), oss.WithContext(ctx))
}

// NewStore picks OSS when configured, the local folder otherwise.
func NewStore(cfg *config.Config) (Store, error) {
	if cfg.OSS.Enabled() {
		s, err := NewOSSStore(cfg.OSS)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return DiskStore{Root: cfg.DocumentDir}, nil
}
