package s3_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contexor/contexor/pkg/object-storage/s3"
	"github.com/contexor/contexor/pkg/testutils"
)

func newClient(t *testing.T) *s3.S3 {
	bucket := testutils.RequireEnv(t, "CONTEXOR_TEST_S3_BUCKET")
	return s3.NewS3Client(
		os.Getenv("CONTEXOR_TEST_S3_ENDPOINT"),
		os.Getenv("CONTEXOR_TEST_S3_REGION"),
		bucket,
		os.Getenv("CONTEXOR_TEST_S3_ACCESS_KEY"),
		os.Getenv("CONTEXOR_TEST_S3_SECRET_KEY"),
		s3.WithPathStyle(os.Getenv("CONTEXOR_TEST_S3_PATH_STYLE") == "true"),
	)
}

func TestPutGetDelete(t *testing.T) {
	cli := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	key := "/test/contexor/version.md"
	body := []byte("# عنوان\n\nمتن آزمایشی")
	require.NoError(t, cli.PutObject(ctx, key, body, "text/markdown; charset=utf-8"))

	got, err := cli.GetObject(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	url, err := cli.GenGetObjectPreSignURL(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	require.NoError(t, cli.Delete(ctx, key))
}
