package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"github.com/courseshare/courseshare-backend/pkg/storage"
)

type fakeAPI struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeAPI) PutObject(ctx context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(ctx context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &awss3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeAPI) DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeAPI) HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, _ ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) == "" {
		return nil, errors.New("missing bucket")
	}
	return &awss3.HeadBucketOutput{}, nil
}

func TestStorePutGetDelete(t *testing.T) {
	api := newFakeAPI()
	store := NewWithAPI(api, "courseshare-docs")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "rides/1/documents/a.pdf", strings.NewReader("pdf"), 3, "application/pdf"))
	require.Equal(t, "application/pdf", api.types["rides/1/documents/a.pdf"])

	rc, err := store.Get(ctx, "rides/1/documents/a.pdf")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	require.Equal(t, "pdf", string(data))

	require.NoError(t, store.Delete(ctx, "rides/1/documents/a.pdf"))
	_, err = store.Get(ctx, "rides/1/documents/a.pdf")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Ping(ctx))
}
