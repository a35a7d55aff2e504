package io

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

var end = binary.LittleEndian

// WriteError is returned when a grid could not be written. The contents of
// Path are undefined after a WriteError and should not be reused.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("could not write grid to '%s': %s", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

/*
WriteGrid writes xs to path as a raw sequence of little-endian float32
values. There is no header: the grid's shape and axis order must be known by
convention (see Manifest). Existing files are overwritten and missing parent
directories are created.
*/
func WriteGrid(path string, xs []float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &WriteError{path, err}
	}

	f, err := os.Create(path)
	if err != nil {
		return &WriteError{path, err}
	}

	wr := bufio.NewWriterSize(f, 1<<16)
	buf := make([]byte, 4)
	for _, x := range xs {
		end.PutUint32(buf, math.Float32bits(float32(x)))
		if _, err := wr.Write(buf); err != nil {
			f.Close()
			return &WriteError{path, err}
		}
	}

	if err := wr.Flush(); err != nil {
		f.Close()
		return &WriteError{path, err}
	}
	if err := f.Close(); err != nil {
		return &WriteError{path, err}
	}
	return nil
}

// ReadGrid reads a raw grid with cells^3 elements written by WriteGrid.
func ReadGrid(path string, cells int) ([]float32, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	n := cells * cells * cells
	if info.Size() != int64(4*n) {
		return nil, fmt.Errorf(
			"Grid file '%s' is %d bytes long, but a %d^3 grid of float32 "+
				"values is %d bytes long.", path, info.Size(), cells, 4*n,
		)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	xs := make([]float32, n)
	if err := binary.Read(bufio.NewReader(f), end, xs); err != nil {
		return nil, err
	}
	return xs, nil
}

// GridCells returns the side length of the cubic raw grid stored at path.
// It fails if the file size is not 4 times a perfect cube.
func GridCells(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.Size()%4 != 0 {
		return 0, fmt.Errorf("Size of '%s' is not a multiple of 4.", path)
	}

	n := info.Size() / 4
	cells := int(math.Round(math.Cbrt(float64(n))))
	if int64(cells*cells*cells) != n {
		return 0, fmt.Errorf(
			"'%s' holds %d values, which is not a perfect cube.", path, n,
		)
	}
	return cells, nil
}
