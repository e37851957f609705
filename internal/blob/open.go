package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"herdcore/internal/infra/blob/fs"
	memorystore "herdcore/internal/infra/blob/memory"
	infraS3 "herdcore/internal/infra/blob/s3"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvDriver      = "HERDCORE_BLOB_DRIVER"
	EnvFSRoot      = "HERDCORE_BLOB_FS_ROOT"
	EnvS3Bucket    = "HERDCORE_BLOB_S3_BUCKET"
	EnvS3Region    = "HERDCORE_BLOB_S3_REGION"
	EnvS3Endpoint  = "HERDCORE_BLOB_S3_ENDPOINT"
	EnvS3Prefix    = "HERDCORE_BLOB_S3_PREFIX"
	EnvS3PathStyle = "HERDCORE_BLOB_S3_PATH_STYLE"
)

// S3Config configures the S3 driver.
type S3Config = infraS3.Config

// Options selects and configures an artifact store.
type Options struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// OptionsFromEnv reads the blob environment variables.
//
//	HERDCORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	HERDCORE_BLOB_FS_ROOT: directory when driver=fs (default ./artifacts)
//	HERDCORE_BLOB_S3_BUCKET, _REGION, _ENDPOINT, _PREFIX, _PATH_STYLE: s3 settings
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN: picked up by the AWS chain
func OptionsFromEnv() Options {
	opts := Options{
		Driver: Driver(os.Getenv(EnvDriver)),
		FSRoot: os.Getenv(EnvFSRoot),
		S3: S3Config{
			Bucket:    os.Getenv(EnvS3Bucket),
			Region:    os.Getenv(EnvS3Region),
			Endpoint:  os.Getenv(EnvS3Endpoint),
			Prefix:    os.Getenv(EnvS3Prefix),
			PathStyle: strings.EqualFold(os.Getenv(EnvS3PathStyle), "true"),
		},
	}
	if opts.Driver == "" {
		opts.Driver = DriverFilesystem
	}
	return opts
}

// Open constructs the configured store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverFilesystem, "":
		return NewFilesystem(opts.FSRoot)
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", opts.Driver)
	}
}

// NewFilesystem returns a store rooted at root.
func NewFilesystem(root string) (Store, error) {
	store, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// NewMemory returns an in-memory store.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns a store on the configured bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	store, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}
