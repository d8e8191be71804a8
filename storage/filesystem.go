package storage

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStorage implements the Storage interface against the local
// filesystem.
type FilesystemStorage struct {
	Config Config
}

func NewFilesystemStorage(config Config) *FilesystemStorage {
	return &FilesystemStorage{Config: config}
}

func (f *FilesystemStorage) Write(ctx context.Context, key string, body []byte) error {
	filename := f.buildPath(key)

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	if _, err := file.Write(body); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

func (f *FilesystemStorage) Read(ctx context.Context, key string) ([]byte, error) {
	filename := f.buildPath(key)

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, ErrNotFound
	}

	return ioutil.ReadFile(filename)
}

func (f *FilesystemStorage) Remove(ctx context.Context, key string) error {
	err := os.Remove(f.buildPath(key))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

func (f *FilesystemStorage) List(ctx context.Context, path string) ([]string, error) {
	dir := f.buildPath(path)

	keys := []string{}
	err := filepath.Walk(dir, func(file string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		key := strings.TrimPrefix(file, f.buildPath("")+"/")
		keys = append(keys, key)
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return keys, nil
}

func (f *FilesystemStorage) buildPath(key string) string {
	if len(key) == 0 {
		return f.Config.Root
	}
	return strings.Join([]string{f.Config.Root, key}, "/")
}
