package experiment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phil-mansfield/gridpipe/analyze"
	"github.com/phil-mansfield/gridpipe/io"
	"github.com/phil-mansfield/gridpipe/snapshot"
)

// Job describes the conversion of a directory of snapshots into raw grids.
type Job struct {
	RawDir, DataDir string
	Pattern         snapshot.Pattern
	MinTimestep     int
	Resolution      int
	Hint            snapshot.Hint
	Options         snapshot.Options
	// Fields restricts the exported fields. Empty means every field.
	Fields         []string
	CacheSnapshots bool
	// Manifest is filled in and written to DataDir. May be nil.
	Manifest *io.Manifest
}

// ConvertResult describes what a Convert call wrote.
type ConvertResult struct {
	Kind      snapshot.Kind
	Fields    []string
	Timesteps []string
	// Skipped lists the labels of unreadable snapshots.
	Skipped []string
	Grids   int
}

// Convert writes every field of every snapshot in job.RawDir to
// job.DataDir/<field>/<label>.raw. DataDir is deleted and recreated first.
//
// The field list comes from the first snapshot. If that snapshot can't be
// read the conversion fails; later unreadable snapshots are logged and
// skipped. A failed write ends the conversion with an *io.WriteError.
func Convert(job *Job, lg *Logger) (*ConvertResult, error) {
	entries, err := snapshot.Enumerate(job.RawDir, job.Pattern, job.MinTimestep)
	if err != nil {
		return nil, &snapshot.UnreadableError{Path: job.RawDir, Err: err}
	} else if len(entries) == 0 {
		return nil, &snapshot.UnreadableError{
			Path: job.RawDir, Err: fmt.Errorf(
				"no snapshots named %s<timestep>%s at or after step %d",
				job.Pattern.Prefix, job.Pattern.Suffix, job.MinTimestep,
			),
		}
	}

	layout, err := snapshot.Fields(entries, job.Hint, job.Options)
	if err != nil {
		return nil, err
	}
	res := &ConvertResult{Kind: layout.Kind}
	dom := layout.Domain
	if res.Fields, err = selectFields(layout.Fields, job.Fields); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(job.DataDir); err != nil {
		return nil, &io.WriteError{Path: job.DataDir, Err: err}
	}
	for _, field := range res.Fields {
		dir := filepath.Join(job.DataDir, field)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &io.WriteError{Path: dir, Err: err}
		}
	}

	lg.Print(1, "convert raw plt data ...")
	cache := snapshot.NewCache(job.Hint, job.Options, job.CacheSnapshots)
	defer cache.Close()

	for _, entry := range entries {
		lg.Printf(2, "time %s", entry.Label)
		ok, err := convertEntry(job, entry, res.Fields, cache, lg)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Timesteps = append(res.Timesteps, entry.Label)
			res.Grids += len(res.Fields)
		} else {
			res.Skipped = append(res.Skipped, entry.Label)
		}
	}
	lg.Print(1, "convert done ...")

	if job.Manifest != nil {
		m := job.Manifest
		m.Source = res.Kind.String()
		m.Resolution = job.Resolution
		m.Shape = [3]int{job.Resolution, job.Resolution, job.Resolution}
		m.Domain = io.Bounds{Lo: dom.Lo, Hi: dom.Hi}
		m.Fields, m.Timesteps, m.Skipped = res.Fields, res.Timesteps, res.Skipped
		if err := io.WriteManifest(job.DataDir, m); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// convertEntry writes every field of a single snapshot. It returns false
// without an error if the snapshot could not be read, after removing any
// grids it already wrote, so a timestep is exported for every field or for
// none of them.
func convertEntry(
	job *Job, entry snapshot.Entry, fields []string,
	cache *snapshot.Cache, lg *Logger,
) (bool, error) {
	written := []string{}
	for _, field := range fields {
		snap, err := cache.Get(entry.Path)
		if err != nil {
			return false, skipEntry(entry, err, written, lg)
		}

		xs, err := snapshot.Resample(snap, field, job.Resolution)
		cache.Release(snap)
		if err != nil {
			err = &snapshot.UnreadableError{Path: entry.Path, Err: err}
			return false, skipEntry(entry, err, written, lg)
		}

		path := filepath.Join(job.DataDir, field, entry.Label+".raw")
		if err := io.WriteGrid(path, xs); err != nil {
			return false, err
		}
		written = append(written, path)
		lg.Printf(3, "%s: %s", field, analyze.Describe(xs))
	}
	return true, nil
}

// skipEntry logs why entry is skipped and deletes the grids in written.
func skipEntry(
	entry snapshot.Entry, reason error, written []string, lg *Logger,
) error {
	lg.Printf(3, "skipping %s: %s", entry.Label, reason)
	for _, path := range written {
		if err := os.Remove(path); err != nil {
			return &io.WriteError{Path: path, Err: err}
		}
	}
	return nil
}

// selectFields returns the requested fields, or every available field if
// none were requested.
func selectFields(available, requested []string) ([]string, error) {
	if len(requested) == 0 {
		if len(available) == 0 {
			return nil, errors.New("snapshot has no exportable fields")
		}
		return available, nil
	}

	ok := map[string]bool{}
	for _, f := range available {
		ok[f] = true
	}
	for _, f := range requested {
		if !ok[f] {
			return nil, fmt.Errorf(
				"field '%s' is not one of the snapshot's fields %v", f, available,
			)
		}
	}
	return requested, nil
}
