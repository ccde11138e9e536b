package utils

import (
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// UploadRoot returns the local upload directory, UPLOAD_DIR or "uploads".
// Used as the fallback store when R2 is not configured.
func UploadRoot() string {
	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		return dir
	}
	return "uploads"
}

// EnsureUploadDir creates the upload root if it doesn't exist
func EnsureUploadDir() error {
	return os.MkdirAll(UploadRoot(), os.ModePerm)
}

// SaveFile writes the uploaded file to the given destination path,
// creating intermediate directories (e.g. proofs/, logos/) as needed
func SaveFile(fileHeader *multipart.FileHeader, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, file)
	return err
}

// GetUploadPath returns the full path for a key inside the upload root
func GetUploadPath(key string) string {
	return filepath.Join(UploadRoot(), key)
}
