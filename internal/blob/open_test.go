package blob

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestOptionsFromEnv(t *testing.T) {
	for _, key := range []string{EnvDriver, EnvFSRoot, EnvS3Bucket, EnvS3Region, EnvS3Endpoint, EnvS3Prefix, EnvS3PathStyle} {
		t.Setenv(key, "")
	}
	if opts := OptionsFromEnv(); opts.Driver != DriverFilesystem || opts.S3.PathStyle {
		t.Fatalf("unexpected defaults %+v", opts)
	}
	t.Setenv(EnvDriver, "s3")
	t.Setenv(EnvS3Bucket, "herd")
	t.Setenv(EnvS3Prefix, "exports")
	t.Setenv(EnvS3PathStyle, "TRUE")
	opts := OptionsFromEnv()
	if opts.Driver != DriverS3 || opts.S3.Bucket != "herd" || opts.S3.Prefix != "exports" || !opts.S3.PathStyle {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	fsStore, err := Open(ctx, Options{Driver: DriverFilesystem, FSRoot: filepath.Join(t.TempDir(), "blobs")})
	if err != nil || fsStore.Driver() != DriverFilesystem {
		t.Fatalf("fs: %v %v", fsStore, err)
	}
	mem, err := Open(ctx, Options{Driver: DriverMemory})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("memory: %v %v", mem, err)
	}
	if _, err := Open(ctx, Options{Driver: DriverS3}); err == nil {
		t.Fatalf("expected s3 without bucket to fail")
	}
	if _, err := Open(ctx, Options{Driver: "gcs"}); err == nil || !strings.Contains(err.Error(), "gcs") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestStoresShareSemantics(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for _, store := range []Store{fsStore, NewMemory()} {
		info, err := store.Put(ctx, "reports/a.csv", strings.NewReader("a,b\n1,2\n"), PutOptions{ContentType: "text/csv"})
		if err != nil {
			t.Fatalf("%s put: %v", store.Driver(), err)
		}
		if info.Size != 8 || info.Checksum == "" {
			t.Fatalf("%s: unexpected info %+v", store.Driver(), info)
		}
		if _, err := store.Put(ctx, "reports/a.csv", strings.NewReader(""), PutOptions{}); !errors.Is(err, ErrExists) {
			t.Fatalf("%s: expected ErrExists, got %v", store.Driver(), err)
		}
		if _, err := store.Head(ctx, "reports/missing.csv"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", store.Driver(), err)
		}
	}
}
