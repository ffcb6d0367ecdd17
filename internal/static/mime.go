package static

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"sync"

	"gitlab.com/gitlab-org/go-mimedb"
	"gitlab.com/gitlab-org/labkit/log"
)

var extraMIMETypes = map[string]string{
	".avif": "image/avif",
	".wasm": "application/wasm",
	".mjs":  "text/javascript",
}

var loadMIMETypesOnce sync.Once

// LoadMIMETypes adds the mimedb table and a few extra types to the mime
// package. It is safe to call it more than once.
func LoadMIMETypes() {
	loadMIMETypesOnce.Do(func() {
		if err := mimedb.LoadTypes(); err != nil {
			log.WithError(err).Error("failed to load mime types")
		}

		for ext, mimeType := range extraMIMETypes {
			if err := mime.AddExtensionType(ext, mimeType); err != nil {
				log.WithError(err).Errorf("failed to add extension: %q with MIME type: %q", ext, mimeType)
			}
		}
	})
}

// detectContentType finds the content type of a file by its extension,
// falling back to sniffing its first 512 bytes like http.ServeContent does.
func detectContentType(path string) (string, error) {
	contentType := mime.TypeByExtension(filepath.Ext(path))

	if contentType == "" {
		var buf [512]byte

		file, err := openNoFollow(path)
		if err != nil {
			return "", err
		}

		defer file.Close()

		// Using `io.ReadFull()` because `file.Read()` may be chunked.
		// Ignoring errors because we don't care if the 512 bytes cannot be read.
		n, _ := io.ReadFull(file, buf[:])
		contentType = http.DetectContentType(buf[:n])
	}

	return contentType, nil
}
