package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/phil-mansfield/gridpipe/geom"
)

// Pattern describes how snapshot names are built from timesteps.
type Pattern struct {
	Prefix, Suffix string
}

var (
	// PlotfilePattern matches AMReX plotfiles, e.g. plt00150.
	PlotfilePattern = Pattern{"plt", ""}
	// Gadget4Pattern matches Gadget-4 HDF5 snapshots, e.g. snap_012.hdf5.
	Gadget4Pattern = Pattern{"snap_", ".hdf5"}
)

// Entry is a snapshot found by Enumerate.
type Entry struct {
	Timestep int
	// Label is the name with the pattern stripped, leading zeros and all.
	// Exported grids are named after it.
	Label string
	Path  string
}

// Timestep parses the timestep out of name. ok is false if name does not
// match the pattern or the remainder is not an integer.
func (pat Pattern) Timestep(name string) (step int, label string, ok bool) {
	if len(name) < len(pat.Prefix)+len(pat.Suffix) ||
		!strings.HasPrefix(name, pat.Prefix) || !strings.HasSuffix(name, pat.Suffix) {
		return 0, "", false
	}
	label = name[len(pat.Prefix):]
	label = label[:len(label)-len(pat.Suffix)]
	step, err := strconv.Atoi(label)
	if err != nil {
		return 0, "", false
	}
	return step, label, true
}

// Enumerate lists the snapshots in dir whose timestep is at least
// minTimestep, sorted by timestep. Entries which don't match pat are not
// snapshots and are skipped silently.
func Enumerate(dir string, pat Pattern, minTimestep int) ([]Entry, error) {
	infos, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	for _, info := range infos {
		step, label, ok := pat.Timestep(info.Name())
		if !ok || step < minTimestep {
			continue
		}
		entries = append(entries, Entry{
			Timestep: step, Label: label, Path: filepath.Join(dir, info.Name()),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestep < entries[j].Timestep
	})
	return entries, nil
}

// Timesteps returns the timesteps of a sequence of entries.
func Timesteps(entries []Entry) []int {
	steps := make([]int, len(entries))
	for i := range entries {
		steps[i] = entries[i].Timestep
	}
	return steps
}

// Layout is what the first snapshot of a run says about all of them.
type Layout struct {
	Kind   Kind
	Domain geom.Domain
	Fields []string
}

// Fields opens the first entry and returns its field names, kind and
// domain. Every later snapshot of a run is assumed to have the same fields;
// this is not checked. The error is an *UnreadableError if the snapshot
// can't be read.
func Fields(entries []Entry, hint Hint, opt Options) (*Layout, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no snapshots to read field names from")
	}
	snap, err := Open(entries[0].Path, hint, opt)
	if err != nil {
		return nil, err
	}
	defer snap.Close()
	return &Layout{snap.Kind(), snap.Domain(), snap.FieldNames()}, nil
}
