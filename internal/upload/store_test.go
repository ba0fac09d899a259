package upload

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type part struct {
	name    string
	content []byte
}

func fileHeaders(t *testing.T, parts ...part) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, p := range parts {
		fw, err := w.CreateFormFile("attachments", p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["attachments"]
}

func TestSaveImages(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	refs, err := store.SaveImages(fileHeaders(t,
		part{"screen.PNG", pngHeader},
		part{"notes.txt", []byte("plain text")},
		part{"second.png", pngHeader},
	))
	require.NoError(t, err)
	require.Len(t, refs, 2)

	for _, ref := range refs {
		assert.True(t, strings.HasPrefix(ref, Prefix+"attachments-"))
		assert.True(t, strings.HasSuffix(ref, ".png"))
		assert.True(t, store.Exists(ref))
	}
	assert.NotEqual(t, refs[0], refs[1])

	data, err := store.Read(refs[0])
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestSaveImagesLimits(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	var parts []part
	for i := 0; i < MaxFiles+1; i++ {
		parts = append(parts, part{"a.png", pngHeader})
	}
	_, err = store.SaveImages(fileHeaders(t, parts...))
	assert.ErrorIs(t, err, ErrTooManyFiles)

	big := fileHeaders(t, part{"big.png", pngHeader})
	big[0].Size = MaxFileSize + 1
	_, err = store.SaveImages(big)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestPathStripsDirectories(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "x.png"), store.Path("/uploads/x.png"))
	assert.Equal(t, filepath.Join(dir, "passwd"), store.Path("/uploads/../../etc/passwd"))
	assert.Equal(t, filepath.Join(dir, "x.png"), store.Path("x.png"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.png"), pngHeader, 0o644))
	assert.True(t, store.Exists("/uploads/x.png"))
	assert.False(t, store.Exists("/uploads/missing.png"))
	assert.False(t, store.Exists(""))
}
