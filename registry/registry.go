// Package registry はモデルディレクトリの一覧と個別情報を返す
//
// モデルは "<名前>.gob" として保存され、同じ名前の "_metadata.json" と
// ".csv" が隣に置かれる。サイドカーは一覧に含めない。
package registry

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/YuminosukeSato/tabml/pkg/errors"
	"github.com/YuminosukeSato/tabml/trainer"
)

// ModelExt is the extension of persisted pipelines.
const ModelExt = ".gob"

// Entry describes one model file.
type Entry struct {
	Name     string            `json:"name"`
	Size     int64             `json:"size"`
	Modified time.Time         `json:"modified"`
	Path     string            `json:"path"`
	Metadata *trainer.Metadata `json:"metadata,omitempty"`
}

// Resolve returns the path of file name inside dir. Names containing a path
// separator, "..", or a leading dot are rejected with a ValueError.
func Resolve(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") ||
		strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", errors.NewValueError("registry.Resolve", "invalid file name '"+name+"'")
	}
	return filepath.Join(dir, name), nil
}

// List returns every model in dir, newest first. A missing directory is
// an empty inventory.
func List(dir string) ([]Entry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, errors.NewUnexpectedFailure("read models directory", err)
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ModelExt {
			continue
		}
		e, err := Describe(dir, f.Name())
		if err != nil {
			// 一覧の途中で消されたファイルは飛ばす
			if errors.Code(err) == errors.CodeFileNotFound {
				continue
			}
			return nil, err
		}
		entries = append(entries, *e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Modified.Equal(entries[j].Modified) {
			return entries[i].Modified.After(entries[j].Modified)
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// Describe stats one model file and attaches its metadata when present.
func Describe(dir, name string) (*Entry, error) {
	path, err := Resolve(dir, name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.NewUnexpectedFailure("stat model", err)
	}
	if info.IsDir() {
		return nil, errors.NewFileNotFoundError(path)
	}

	e := &Entry{
		Name:     name,
		Size:     info.Size(),
		Modified: info.ModTime().UTC(),
		Path:     path,
	}
	meta, err := trainer.ReadMetadata(path)
	switch {
	case err == nil:
		e.Metadata = meta
	case errors.Code(err) != errors.CodeFileNotFound:
		return nil, err
	}
	return e, nil
}
