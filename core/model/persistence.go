package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// SaveFile は v を gob でエンコードして filename に保存します。
//
// 書き込みは同じディレクトリの一時ファイルに対して行い、完了後に
// rename で置き換えます。途中で失敗しても既存のファイルは壊れません。
//
// 使用例:
//
//	snap, _ := m.Snapshot()
//	err := model.SaveFile(snap, "run_best.gob")
func SaveFile(v interface{}, filename string) (err error) {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = Encode(v, tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp file")
	}
	if err = os.Rename(tmpName, filename); err != nil {
		return errors.Wrap(err, "failed to rename temp file")
	}
	return nil
}

// LoadFile は filename から v（ポインタ）へ gob でデコードします。
func LoadFile(v interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()
	return Decode(v, file)
}

// Encode は v を w に gob でエンコードします。
func Encode(v interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode")
	}
	return nil
}

// Decode は r から v（ポインタ）へ gob でデコードします。
func Decode(v interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode")
	}
	return nil
}
