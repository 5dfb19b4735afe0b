package storage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshbulk/storefront/pkg/storage"
)

func TestLocalDiskRoundTrip(t *testing.T) {
	ctx := context.Background()
	disk, err := storage.NewLocalDisk(t.TempDir(), "/storage/")
	require.NoError(t, err)

	key := "products/7/photo.png"
	require.NoError(t, disk.Put(ctx, key, strings.NewReader("png-bytes"), "image/png"))

	ok, err := disk.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := disk.Get(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "/storage/products/7/photo.png", disk.URL(key))

	require.NoError(t, disk.Delete(ctx, key))
	require.NoError(t, disk.Delete(ctx, key))
	_, err = disk.Get(ctx, key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLocalDiskRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	disk, err := storage.NewLocalDisk(t.TempDir(), "/storage")
	require.NoError(t, err)

	for _, key := range []string{"", "../etc/passwd", "products/../../x", `products\x`, "/"} {
		err := disk.Put(ctx, key, strings.NewReader("x"), "")
		assert.ErrorIs(t, err, storage.ErrInvalidPath, key)
	}
}

func TestLocalFileServer(t *testing.T) {
	ctx := context.Background()
	disk, err := storage.NewLocalDisk(t.TempDir(), "/storage")
	require.NoError(t, err)
	require.NoError(t, disk.Put(ctx, "products/1/a.webp", strings.NewReader("webp"), "image/webp"))

	srv := http.StripPrefix("/storage", disk.FileServer())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/storage/products/1/a.webp", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "webp", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/storage/products/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestS3DiskRequiresBucket(t *testing.T) {
	_, err := storage.NewS3Disk(context.Background(), storage.S3Options{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestS3DiskURL(t *testing.T) {
	disk, err := storage.NewS3Disk(context.Background(), storage.S3Options{
		Bucket: "produce", Region: "eu-west-1", Key: "k", Secret: "s",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3", disk.Name())
	assert.Equal(t, "https://produce.s3.eu-west-1.amazonaws.com/products/1/a.png", disk.URL("products/1/a.png"))
}
