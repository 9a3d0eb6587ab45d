package objectstore

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"

	perr "github.com/georgenavi/esimdb-scraper/internal/platform/errors"
	kit "github.com/georgenavi/esimdb-scraper/internal/platform/testkit"
)

type fakeAPI struct {
	exists    bool
	existsErr error
	made      string
	makeErr   error

	putBucket, putKey, putPath, putType string
	putErr                              error
}

func (f *fakeAPI) BucketExists(context.Context, string) (bool, error) { return f.exists, f.existsErr }
func (f *fakeAPI) MakeBucket(_ context.Context, b string, _ minio.MakeBucketOptions) error {
	f.made = b
	return f.makeErr
}
func (f *fakeAPI) FPutObject(_ context.Context, b, k, p string, o minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.putBucket, f.putKey, f.putPath, f.putType = b, k, p, o.ContentType
	return minio.UploadInfo{Bucket: b, Key: k}, f.putErr
}

func validCfg() Config {
	return Config{
		Endpoint:  "https://minio.local:9000",
		Bucket:    "esimdb",
		Prefix:    "/raw/",
		AccessKey: "ak",
		SecretKey: "sk",
	}
}

func TestNew_StripsSchemeAndValidates(t *testing.T) {
	var (
		gotEndpoint string
		gotSecure   bool
	)
	kit.Swap(t, &newClient, func(endpoint string, o *minio.Options) (objectAPI, error) {
		gotEndpoint, gotSecure = endpoint, o.Secure
		return &fakeAPI{}, nil
	})

	if _, err := New(validCfg()); err != nil {
		t.Fatalf("new: %v", err)
	}
	if gotEndpoint != "minio.local:9000" || !gotSecure {
		t.Fatalf("endpoint=%q secure=%v", gotEndpoint, gotSecure)
	}

	cfg := validCfg()
	cfg.Endpoint = "minio.local:9000"
	if _, err := New(cfg); err != nil || gotEndpoint != "minio.local:9000" || gotSecure {
		t.Fatalf("bare endpoint: %v %q %v", err, gotEndpoint, gotSecure)
	}

	cfg.Bucket = ""
	_, err := New(cfg)
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if f, ok := perr.As(err); !ok || f.Field() != "bucket" {
		t.Fatalf("field should name bucket: %v", err)
	}
}

func TestNew_ClientError(t *testing.T) {
	kit.Swap(t, &newClient, func(string, *minio.Options) (objectAPI, error) { return nil, errors.New("bad endpoint") })
	if _, err := New(validCfg()); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("want invalid argument, got %v", err)
	}
}

func TestKeyAndPut(t *testing.T) {
	api := &fakeAPI{}
	m := &Mirror{api: api, cfg: validCfg()}

	if k := m.Key("20240131", "Curaçao"); k != "raw/20240131/curacao.parquet" {
		t.Fatalf("key = %s", k)
	}
	m.cfg.Prefix = ""
	if k := m.Key("20240131", "testland"); k != "20240131/testland.parquet" {
		t.Fatalf("key without prefix = %s", k)
	}

	key, err := m.Put(context.Background(), "20240131", "testland", "/out/20240131/testland.parquet")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if key != "20240131/testland.parquet" || api.putBucket != "esimdb" || api.putPath != "/out/20240131/testland.parquet" {
		t.Fatalf("unexpected upload %+v", api)
	}
	kit.MustContain(t, api.putType, "parquet")
}

func TestEnsureBucket(t *testing.T) {
	api := &fakeAPI{exists: true}
	m := &Mirror{api: api, cfg: validCfg()}
	if err := m.EnsureBucket(context.Background()); err != nil || api.made != "" {
		t.Fatalf("existing bucket: %v made=%q", err, api.made)
	}
	api.exists = false
	if err := m.EnsureBucket(context.Background()); err != nil || api.made != "esimdb" {
		t.Fatalf("missing bucket: %v made=%q", err, api.made)
	}
	api.existsErr = minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}
	if err := m.EnsureBucket(context.Background()); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("want invalid argument, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want perr.ErrorCode
	}{
		{minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: 404}, perr.ErrorCodeNotFound},
		{minio.ErrorResponse{Code: "SignatureDoesNotMatch", StatusCode: 403}, perr.ErrorCodeInvalidArgument},
		{minio.ErrorResponse{Code: "SlowDown", StatusCode: 503}, perr.ErrorCodeTooManyRequests},
		{minio.ErrorResponse{Code: "InternalError", StatusCode: 500}, perr.ErrorCodeUnavailable},
		{errors.New("open /out/x.parquet: no such file"), perr.ErrorCodeIO},
	}
	for _, tc := range cases {
		if got := perr.CodeOf(classify(tc.err, "op")); got != tc.want {
			t.Fatalf("%v: got %s want %s", tc.err, got, tc.want)
		}
	}
}
