// Package objectstore mirrors published parquet files to MinIO or any S3 endpoint
package objectstore

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/georgenavi/esimdb-scraper/internal/core/normalize"
	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
	"github.com/georgenavi/esimdb-scraper/internal/platform/validate"
)

// Config locates the mirror bucket
type Config struct {
	Endpoint  string `json:"endpoint" validate:"required"`
	Bucket    string `json:"bucket" validate:"required,min=3,max=63"`
	Prefix    string `json:"prefix"`
	AccessKey string `json:"access_key" validate:"required"`
	SecretKey string `json:"secret_key" validate:"required"`
	Region    string `json:"region"`
	UseSSL    bool   `json:"use_ssl"`
}

// objectAPI is the slice of *minio.Client the mirror needs
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Mirror implements domain.Mirror
type Mirror struct {
	api objectAPI
	cfg Config
}

var newClient = func(endpoint string, opts *minio.Options) (objectAPI, error) {
	return minio.New(endpoint, opts)
}

// New validates cfg and builds a minio client. An http(s) scheme on the
// endpoint is stripped and https forces TLS
func New(cfg Config) (*Mirror, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, err
	}
	endpoint := cfg.Endpoint
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			cfg.UseSSL = true
		}
	}
	api, err := newClient(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "minio client for %s", endpoint)
	}
	return &Mirror{api: api, cfg: cfg}, nil
}

// Key returns <prefix>/<YYYYMMDD>/<slug>.parquet
func (m *Mirror) Key(date, slug string) string {
	return path.Join(strings.Trim(m.cfg.Prefix, "/"), date, normalize.Slug(slug)+".parquet")
}

// EnsureBucket creates the bucket when it does not exist yet
func (m *Mirror) EnsureBucket(ctx context.Context) error {
	ok, err := m.api.BucketExists(ctx, m.cfg.Bucket)
	if err != nil {
		return classify(err, "bucket exists "+m.cfg.Bucket)
	}
	if ok {
		return nil
	}
	if err := m.api.MakeBucket(ctx, m.cfg.Bucket, minio.MakeBucketOptions{Region: m.cfg.Region}); err != nil {
		return classify(err, "make bucket "+m.cfg.Bucket)
	}
	return nil
}

// Put uploads the published file at localPath and returns its object key
func (m *Mirror) Put(ctx context.Context, date, slug, localPath string) (string, error) {
	key := m.Key(date, slug)
	_, err := m.api.FPutObject(ctx, m.cfg.Bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/vnd.apache.parquet",
	})
	if err != nil {
		return "", classify(err, "put "+m.cfg.Bucket+"/"+key)
	}
	return key, nil
}

func classify(err error, msg string) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchBucket" || resp.Code == "NoSuchKey":
		return perr.Wrap(err, perr.ErrorCodeNotFound, msg)
	case resp.Code == "AccessDenied" || resp.Code == "InvalidAccessKeyId" || resp.Code == "SignatureDoesNotMatch":
		return perr.Wrap(err, perr.ErrorCodeInvalidArgument, msg)
	case resp.StatusCode == http.StatusTooManyRequests || resp.Code == "SlowDown":
		return perr.Wrap(err, perr.ErrorCodeTooManyRequests, msg)
	case resp.StatusCode >= 500:
		return perr.Wrap(err, perr.ErrorCodeUnavailable, msg)
	}
	return perr.Wrap(err, perr.ErrorCodeIO, msg)
}
