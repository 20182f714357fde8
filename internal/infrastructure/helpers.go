package infrastructure

import (
	"path/filepath"
	"strings"

	"github.com/DRSN-tech/outfit-recsys/pkg/e"
)

// clothesRoot — префикс локальных путей каталога, который не входит в URL.
const clothesRoot = "data/clothes/"

// GetExtensionFromMIME возвращает расширение файла по MIME-типу изображения.
// Поддерживает jpeg, jpg, png, webp. Возвращает ошибку e.ErrUnsupportedMediaType для неподдерживаемых типов.
func GetExtensionFromMIME(mime string) (string, error) {
	switch mime {
	case "image/jpeg", "image/jpg":
		return "jpg", nil
	case "image/png":
		return "png", nil
	case "image/webp":
		return "webp", nil
	default:
		return "bin", e.ErrUnsupportedMediaType
	}
}

// GetMIMEFromPath — обратное преобразование для фото каталога, прочитанных с диска или из MinIO.
func GetMIMEFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg", nil
	case ".png":
		return "image/png", nil
	case ".webp":
		return "image/webp", nil
	default:
		return "", e.ErrUnsupportedMediaType
	}
}

// ImageURLs строит публичные URL фото по относительным путям каталога.
type ImageURLs struct {
	baseURL string
}

func NewImageURLs(baseURL string) *ImageURLs {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &ImageURLs{baseURL: baseURL}
}

// URL: data\clothes\tops\cloth\1.jpg -> {base}tops/cloth/1.jpg
func (u *ImageURLs) URL(imagePath string) string {
	p := strings.ReplaceAll(imagePath, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimPrefix(p, clothesRoot)

	return u.baseURL + p
}
