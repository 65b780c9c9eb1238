package api

import (
	"mime/multipart"
	"net/http"
	"os"

	"github.com/dberezin/vidhub/internal/filex"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing;
// larger parts spill to disk.
const maxUploadMemory = 32 << 20

// spoolFormFile saves the named multipart part into the upload directory
// and returns its local path. Returns "" without error when the part is
// absent.
func (h *AccountHandler) spoolFormFile(r *http.Request, field string) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return "", nil
	}
	return filex.SaveUpload(h.uploadDir, headers[0])
}

// firstFilePart returns the first file part of the form regardless of its
// field name; the single-file update endpoints accept any name.
func firstFilePart(r *http.Request) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	for _, headers := range r.MultipartForm.File {
		if len(headers) > 0 {
			return headers[0]
		}
	}
	return nil
}

func removeIfSet(path string) {
	if path != "" {
		os.Remove(path)
	}
}
