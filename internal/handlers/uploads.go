package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// saveFormAsset uploads the named multipart file to the object store under a
// random key within prefix and returns its public location. Missing files
// surface as http.ErrMissingFile so callers can decide whether the field is
// optional.
func saveFormAsset(ctx context.Context, storage AssetStorage, r *http.Request, field, prefix string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer file.Close()

	location, err := storage.Save(ctx, assetKey(prefix, header), file)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", field, err)
	}
	return location, nil
}

func assetKey(prefix string, header *multipart.FileHeader) string {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if len(ext) > 10 {
		ext = ""
	}
	return prefix + "/" + uuid.NewString() + ext
}

// spoolToTemp copies an uploaded file to a temporary file so it can be
// probed with external tooling before the upload to the object store. The
// returned file is positioned at the start; the caller must invoke cleanup.
func spoolToTemp(file multipart.File) (*os.File, func(), error) {
	tmp, err := os.CreateTemp("", "vidtube-upload-*")
	if err != nil {
		return nil, nil, fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	if _, err := io.Copy(tmp, file); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("spool upload: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("rewind temp file: %w", err)
	}

	return tmp, cleanup, nil
}
