package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/StricklySoft/stricklysoft-plugins/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

const objectSuffix = ".json"

// Objects is the object storage surface used by [ObjectStore]. Use
// [NewObjects] to adapt a [*minio.Client].
type Objects interface {
	// PutObject uploads an object to a bucket.
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)

	// ReadObject downloads the whole content of an object.
	ReadObject(ctx context.Context, bucketName, objectName string) ([]byte, error)

	// StatObject retrieves metadata about an object without downloading it.
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)

	// RemoveObject deletes an object from a bucket.
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error

	// ListObjects returns a channel of objects in a bucket matching opts.
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// minioObjects adapts a [*minio.Client] to [Objects].
type minioObjects struct {
	*minio.Client
}

// NewObjects adapts client to [Objects].
func NewObjects(client *minio.Client) Objects {
	return minioObjects{Client: client}
}

func (m minioObjects) ReadObject(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	obj, err := m.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// NewMinIOClient creates a client for cfg and makes sure the configured
// bucket exists.
func NewMinIOClient(ctx context.Context, cfg config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey.Value(), ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalStorage, "storage: failed to create minio client")
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency, "storage: failed to connect to minio")
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, sserr.Wrapf(err, sserr.CodeInternalStorage, "storage: creating bucket %q", cfg.Bucket)
		}
	}
	return client, nil
}

// ObjectStore is a [Store] that keeps each entry as one JSON object at
// "<prefix>/<scope>/<escaped id>.json".
type ObjectStore[T any] struct {
	objects Objects
	bucket  string
	dir     string
	scope   string
	in      instrument
}

var _ Store[struct{}] = (*ObjectStore[struct{}])(nil)

// NewObjectStore returns a store for scope in bucket under prefix.
func NewObjectStore[T any](objects Objects, bucket, prefix, scope string, opts ...Option) (*ObjectStore[T], error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	if bucket == "" {
		return nil, sserr.New(sserr.CodeValidation, "storage: bucket must not be empty")
	}
	return &ObjectStore[T]{
		objects: objects,
		bucket:  bucket,
		dir:     path.Join(prefix, url.PathEscape(scope)) + "/",
		scope:   scope,
		in:      newInstrument("minio", bucket, opts),
	}, nil
}

func (s *ObjectStore[T]) objectName(id string) string {
	return s.dir + url.PathEscape(id) + objectSuffix
}

func (s *ObjectStore[T]) idFromObject(name string) (string, bool) {
	rest := strings.TrimPrefix(name, s.dir)
	if rest == name || !strings.HasSuffix(rest, objectSuffix) || strings.Contains(rest, "/") {
		return "", false
	}
	id, err := url.PathUnescape(strings.TrimSuffix(rest, objectSuffix))
	if err != nil {
		return "", false
	}
	return id, true
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

// exists reports whether the object for id exists.
func (s *ObjectStore[T]) exists(ctx context.Context, name string) (bool, error) {
	_, err := s.objects.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, err
}

func (s *ObjectStore[T]) put(ctx context.Context, name string, data []byte) error {
	_, err := s.objects.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

// Get implements [Store].
func (s *ObjectStore[T]) Get(ctx context.Context, id string) (v T, err error) {
	if err = validateID(id); err != nil {
		return v, err
	}
	name := s.objectName(id)
	ctx, end := s.in.start(ctx, "Get", "GET "+name)
	defer func() { end(err) }()

	data, err := s.objects.ReadObject(ctx, s.bucket, name)
	if err != nil {
		if isNoSuchKey(err) {
			return v, notFound(s.scope, id)
		}
		return v, wrapError(err, "storage: minio get failed")
	}
	return decode[T](data, id)
}

// Add implements [Store].
func (s *ObjectStore[T]) Add(ctx context.Context, id string, v T) (err error) {
	if err = validateID(id); err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	name := s.objectName(id)
	ctx, end := s.in.start(ctx, "Add", "PUT "+name)
	defer func() { end(err) }()

	found, err := s.exists(ctx, name)
	if err != nil {
		return wrapError(err, "storage: minio add failed")
	}
	if found {
		return alreadyExists(s.scope, id)
	}
	return wrapError(s.put(ctx, name, data), "storage: minio add failed")
}

// Update implements [Store].
func (s *ObjectStore[T]) Update(ctx context.Context, id string, v T) (err error) {
	if err = validateID(id); err != nil {
		return err
	}
	data, err := encode(v)
	if err != nil {
		return err
	}
	name := s.objectName(id)
	ctx, end := s.in.start(ctx, "Update", "PUT "+name)
	defer func() { end(err) }()

	found, err := s.exists(ctx, name)
	if err != nil {
		return wrapError(err, "storage: minio update failed")
	}
	if !found {
		return notFound(s.scope, id)
	}
	return wrapError(s.put(ctx, name, data), "storage: minio update failed")
}

// Remove implements [Store].
func (s *ObjectStore[T]) Remove(ctx context.Context, id string) (err error) {
	if err = validateID(id); err != nil {
		return err
	}
	name := s.objectName(id)
	ctx, end := s.in.start(ctx, "Remove", "DELETE "+name)
	defer func() { end(err) }()

	found, err := s.exists(ctx, name)
	if err != nil {
		return wrapError(err, "storage: minio remove failed")
	}
	if !found {
		return notFound(s.scope, id)
	}
	return wrapError(s.objects.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}),
		"storage: minio remove failed")
}

// list returns the names of the objects belonging to the scope.
func (s *ObjectStore[T]) list(ctx context.Context) (map[string]string, error) {
	names := make(map[string]string)
	for info := range s.objects.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.dir}) {
		if info.Err != nil {
			return nil, info.Err
		}
		if id, ok := s.idFromObject(info.Key); ok {
			names[id] = info.Key
		}
	}
	return names, nil
}

// GetAll implements [Store].
func (s *ObjectStore[T]) GetAll(ctx context.Context) (out map[string]T, err error) {
	ctx, end := s.in.start(ctx, "GetAll", "LIST "+s.dir)
	defer func() { end(err) }()

	names, err := s.list(ctx)
	if err != nil {
		return nil, wrapError(err, "storage: minio list failed")
	}
	out = make(map[string]T, len(names))
	for id, name := range names {
		data, err := s.objects.ReadObject(ctx, s.bucket, name)
		if err != nil {
			if isNoSuchKey(err) {
				continue
			}
			return nil, wrapError(err, "storage: minio get failed")
		}
		v, err := decode[T](data, id)
		if err != nil {
			return nil, err
		}
		out[id] = v
	}
	return out, nil
}

// Count implements [Store].
func (s *ObjectStore[T]) Count(ctx context.Context) (n int, err error) {
	ctx, end := s.in.start(ctx, "Count", "LIST "+s.dir)
	defer func() { end(err) }()

	names, err := s.list(ctx)
	if err != nil {
		return 0, wrapError(err, "storage: minio list failed")
	}
	return len(names), nil
}
