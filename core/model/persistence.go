package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/findhome/pkg/errors"
)

// SaveModel はモデルや変換パイプラインをgob形式でファイルに保存する
//
// 書き込みは同じディレクトリの一時ファイルに行い、成功した場合のみ rename する。
// 読み込み側が書きかけの成果物を見ることはない。
//
// 使用例:
//
//	err := model.SaveModel(bundle, "Artifacts/model.gob")
func SaveModel(v interface{}, filename string) (err error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewDataAccessError("SaveModel", dir, "cannot create artifact directory", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".*.tmp")
	if err != nil {
		return errors.NewDataAccessError("SaveModel", filename, "cannot create file", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := SaveModelToWriter(v, tmp); err != nil {
		_ = tmp.Close()
		return errors.NewDataAccessError("SaveModel", filename, "cannot encode artifact", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewDataAccessError("SaveModel", filename, "cannot flush file", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return errors.NewDataAccessError("SaveModel", filename, "cannot move file into place", err)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む（v はポインタ）
//
// 使用例:
//
//	var bundle training.Bundle
//	err := model.LoadModel(&bundle, "Artifacts/model.gob")
func LoadModel(v interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.NewDataAccessError("LoadModel", filename, "cannot open file", err)
	}
	defer file.Close()

	if err := LoadModelFromReader(v, file); err != nil {
		return errors.NewDataAccessError("LoadModel", filename, "cannot decode artifact", err)
	}
	return nil
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(v interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(v interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
