package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"scribe/internal/textutil"
)

const (
	uploadField     = "audio"
	multipartMemory = 8 << 20
)

var errNoUpload = errors.New("no audio file provided")

// saveUpload copies the multipart audio field into dir and returns its path
// and size. The request body must already be wrapped by http.MaxBytesReader.
func saveUpload(r *http.Request, dir string) (string, int64, error) {
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", 0, errNoUpload
		}
		return "", 0, err
	}
	defer file.Close()

	name := textutil.SanitizeFileName(filepath.Base(header.Filename))
	if name == "" || name == "." {
		name = "upload"
	}
	dest := filepath.Join(dir, name)
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}
	written, copyErr := io.Copy(out, file)
	closeErr := out.Close()
	if copyErr != nil {
		return "", 0, fmt.Errorf("write upload file: %w", copyErr)
	}
	if closeErr != nil {
		return "", 0, fmt.Errorf("close upload file: %w", closeErr)
	}
	return dest, written, nil
}
