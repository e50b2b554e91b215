package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/YuminosukeSato/tabml/pkg/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する
//
// エンコードに失敗した場合、書きかけのファイルは削除される。
// インターフェース型のフィールドを持つモデルは、具象型を事前に gob.Register しておく必要がある。
//
// 使用例:
//
//	p := pipeline.New(...)
//	// ... 学習 ...
//	err := model.SaveModel(p, "model.gob")
func SaveModel(model interface{}, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return errors.NewUnexpectedFailure("create model file", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.NewUnexpectedFailure("close model file", cerr)
		}
		if err != nil {
			_ = os.Remove(filename)
		}
	}()

	return SaveModelToWriter(model, file)
}

// LoadModel はファイルからモデルを読み込む
//
// ファイルが存在しない場合は FileNotFoundError を返す。
//
// 使用例:
//
//	var p pipeline.Pipeline
//	err := model.LoadModel(&p, "model.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileNotFoundError(filename)
		}
		return errors.NewUnexpectedFailure("open model file", err)
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.NewUnexpectedFailure("encode model", err)
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.NewUnexpectedFailure("decode model", err)
	}
	return nil
}
