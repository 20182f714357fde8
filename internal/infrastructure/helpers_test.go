package infrastructure

import (
	"testing"

	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageURLs(t *testing.T) {
	urls := NewImageURLs("http://localhost:5000/data/clothes")

	tests := []struct {
		name string
		path string
		want string
	}{
		{"unix path", "data/clothes/tops/cloth/000001_top.jpg", "http://localhost:5000/data/clothes/tops/cloth/000001_top.jpg"},
		{"windows separators", `data\clothes\dresses\cloth\000007_dress.jpg`, "http://localhost:5000/data/clothes/dresses/cloth/000007_dress.jpg"},
		{"already relative", "bottoms/cloth/000003_bottom.jpg", "http://localhost:5000/data/clothes/bottoms/cloth/000003_bottom.jpg"},
		{"leading slash", "/data/clothes/tops/cloth/x.jpg", "http://localhost:5000/data/clothes/tops/cloth/x.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, urls.URL(tt.path))
		})
	}
}

func TestGetMIMEFromPath(t *testing.T) {
	mime, err := GetMIMEFromPath("a/B.JPG")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)

	ext, err := GetExtensionFromMIME(mime)
	require.NoError(t, err)
	assert.Equal(t, "jpg", ext)

	_, err = GetMIMEFromPath("a/b.gif")
	assert.ErrorIs(t, err, e.ErrUnsupportedMediaType)
}
