package file

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mensylisir/xmdriver/common"
)

// PathExists reports whether path exists. Errors other than "not exist" are
// returned.
func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// CreateDir creates path and its parents with mode 0755. An existing
// directory is fine, an existing file is an error.
func CreateDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return nil
		}
		return errors.Errorf("path %s exists but is not a directory", path)
	}
	if os.IsNotExist(err) {
		return os.MkdirAll(path, common.FileMode0755)
	}
	return errors.Wrapf(err, "failed to check directory %s", path)
}

// CreateFileDir makes sure the parent directory of filePath exists.
func CreateFileDir(filePath string) error {
	dir := filepath.Dir(filePath)
	if dir == "." || dir == "" {
		return nil
	}
	return CreateDir(dir)
}

// WriteFrom copies r into filePath with mode 0644, creating parent
// directories first. It returns the number of bytes written.
func WriteFrom(filePath string, r io.Reader) (int64, error) {
	if err := CreateFileDir(filePath); err != nil {
		return 0, errors.Wrapf(err, "failed to create directory for file %s", filePath)
	}

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, common.FileMode0644)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to open file %s", filePath)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return n, errors.Wrapf(err, "failed to write file %s", filePath)
	}
	if err := f.Close(); err != nil {
		return n, errors.Wrapf(err, "failed to close file %s", filePath)
	}
	return n, nil
}
