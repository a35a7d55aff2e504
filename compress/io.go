package compress

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	RawExt = ".raw"
	Ext    = ".zst"
)

// Summary describes the files handled by Pack or Unpack.
type Summary struct {
	Files    int
	BytesIn  int64
	BytesOut int64
}

// Ratio returns the compression ratio, BytesIn / BytesOut.
func (s Summary) Ratio() float64 {
	if s.BytesOut == 0 {
		return 0
	}
	return float64(s.BytesIn) / float64(s.BytesOut)
}

// List returns every file below dir ending in ext, sorted.
func List(dir, ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Pack compresses every .raw file below dir into a .raw.zst file next to
// it. If remove is set, each .raw file is deleted once its archive has been
// written.
func Pack(dir string, level int, remove bool) (Summary, error) {
	sum := Summary{}
	files, err := List(dir, RawExt)
	if err != nil {
		return sum, err
	}

	for _, fname := range files {
		raw, err := os.ReadFile(fname)
		if err != nil {
			return sum, err
		}
		packed, err := Compress(raw, nil, level)
		if err != nil {
			return sum, err
		}

		if err := os.WriteFile(fname+Ext, packed, 0644); err != nil {
			return sum, err
		}
		if remove {
			if err := os.Remove(fname); err != nil {
				return sum, err
			}
		}

		sum.Files++
		sum.BytesIn += int64(len(raw))
		sum.BytesOut += int64(len(packed))
	}
	return sum, nil
}

// Unpack restores every .raw.zst file below dir to the .raw file it was made
// from. If remove is set, the archives are deleted afterwards.
func Unpack(dir string, remove bool) (Summary, error) {
	sum := Summary{}
	files, err := List(dir, RawExt+Ext)
	if err != nil {
		return sum, err
	}

	for _, fname := range files {
		packed, err := os.ReadFile(fname)
		if err != nil {
			return sum, err
		}
		raw, err := Decompress(packed)
		if err != nil {
			return sum, err
		}

		if err := os.WriteFile(strings.TrimSuffix(fname, Ext), raw, 0644); err != nil {
			return sum, err
		}
		if remove {
			if err := os.Remove(fname); err != nil {
				return sum, err
			}
		}

		sum.Files++
		sum.BytesIn += int64(len(raw))
		sum.BytesOut += int64(len(packed))
	}
	return sum, nil
}
