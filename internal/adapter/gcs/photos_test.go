package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObject struct {
	buf       bytes.Buffer
	closed    bool
	closeErr  error
	writeErr  error
	bucket    string
	object    string
	mediaType string

	ctx context.Context
	// ctx.Err() observed when Close was called.
	ctxErrAtClose error
}

func (m *memObject) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.buf.Write(p)
}

func (m *memObject) Close() error {
	m.closed = true
	m.ctxErrAtClose = m.ctx.Err()
	return m.closeErr
}

func storeWith(obj *memObject) *PhotoStore {
	return newPhotoStore("hazard-photos", "https://storage.googleapis.com/", func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
		obj.ctx = ctx
		obj.bucket, obj.object, obj.mediaType = bucket, object, contentType
		return obj
	})
}

func TestPhotoStore_Upload(t *testing.T) {
	obj := &memObject{}
	store := storeWith(obj)

	url, err := store.Upload(context.Background(), "hotspot-photos/1756728000000.jpg", "image/jpeg", strings.NewReader("jpegbytes"))
	require.NoError(t, err)

	assert.Equal(t, "https://storage.googleapis.com/hazard-photos/hotspot-photos/1756728000000.jpg", url)
	assert.Equal(t, "hazard-photos", obj.bucket)
	assert.Equal(t, "hotspot-photos/1756728000000.jpg", obj.object)
	assert.Equal(t, "image/jpeg", obj.mediaType)
	assert.Equal(t, "jpegbytes", obj.buf.String())
	assert.True(t, obj.closed)
	assert.NoError(t, obj.ctxErrAtClose, "a successful upload commits")
}

func TestPhotoStore_UploadWriteError(t *testing.T) {
	obj := &memObject{writeErr: errors.New("quota exceeded")}
	_, err := storeWith(obj).Upload(context.Background(), "hotspot-photos/1.png", "image/png", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.True(t, obj.closed, "writer is closed on failure")
	assert.ErrorIs(t, obj.ctxErrAtClose, context.Canceled, "the partial object is abandoned, not committed")
}

func TestPhotoStore_UploadCommitError(t *testing.T) {
	obj := &memObject{closeErr: errors.New("precondition failed")}
	_, err := storeWith(obj).Upload(context.Background(), "hotspot-photos/1.png", "image/png", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit")
}
