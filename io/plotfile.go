package io

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/phil-mansfield/gridpipe/geom"
)

/*
An AMReX plotfile is a directory containing a text Header and one directory
per refinement level:

    pltNNNNN/Header
    pltNNNNN/Level_0/Cell_H
    pltNNNNN/Level_0/Cell_D_00000
    ...

Header lists the variables, the physical domain, the index-space domain of
every level, and the boxes of every level. Cell_H lists the boxes again along
with the Cell_D file and byte offset where each box ("FAB") is stored. Each
FAB starts with a one-line text header describing its number format, box and
component count, followed by the components one after another, each stored
with the first index varying fastest.
*/

const plotfileVersion = "HyperCLaw-V1.1"

// Plotfile is the parsed metadata of an AMReX plotfile.
type Plotfile struct {
	Dir         string
	Vars        []string
	Time        float64
	FinestLevel int

	ProbLo, ProbHi [3]float64
	RefRatio       []int
	Domains        []geom.CellBounds
	Steps          []int
	Dx             [][3]float64

	Levels []PlotLevel
}

// PlotLevel describes the boxes stored at a single refinement level.
type PlotLevel struct {
	Level  int
	Prefix string
	Boxes  []geom.CellBounds
	Fabs   []FabOnDisk
}

// FabOnDisk gives the location of a single box's data.
type FabOnDisk struct {
	File   string
	Offset int64
}

var (
	tripletRE = regexp.MustCompile(`\((-?\d+),(-?\d+),(-?\d+)\)`)
	fabRE     = regexp.MustCompile(
		`^FAB \(\((\d+), \(([0-9 ]+)\)\),\((\d+), \(([0-9 ]+)\)\)\)(.*) (\d+)\s*$`,
	)
)

// lineReader hands out the lines of a text file and remembers where it is
// so that errors can point at the offending line.
type lineReader struct {
	name  string
	lines []string
	i     int
}

func newLineReader(name string) (*lineReader, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	text := strings.ReplaceAll(string(b), "\r\n", "\n")
	return &lineReader{name: name, lines: strings.Split(text, "\n")}, nil
}

func (lr *lineReader) next() (string, error) {
	if lr.i >= len(lr.lines) {
		return "", fmt.Errorf("'%s' ended early at line %d.", lr.name, lr.i+1)
	}
	line := strings.TrimSpace(lr.lines[lr.i])
	lr.i++
	return line, nil
}

func (lr *lineReader) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("'%s', line %d: %s", lr.name, lr.i, fmt.Sprintf(format, args...))
}

func (lr *lineReader) int() (int, error) {
	line, err := lr.next()
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0, lr.errorf("expected an integer, got an empty line")
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, lr.errorf("expected an integer, got '%s'", line)
	}
	return n, nil
}

func (lr *lineReader) floats() ([]float64, error) {
	line, err := lr.next()
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	xs := make([]float64, len(fields))
	for i := range fields {
		if xs[i], err = strconv.ParseFloat(fields[i], 64); err != nil {
			return nil, lr.errorf("could not parse '%s' as a number", fields[i])
		}
	}
	return xs, nil
}

func (lr *lineReader) vec() ([3]float64, error) {
	xs, err := lr.floats()
	if err != nil {
		return [3]float64{}, err
	}
	if len(xs) < 3 {
		return [3]float64{}, lr.errorf("expected 3 values, got %d", len(xs))
	}
	return [3]float64{xs[0], xs[1], xs[2]}, nil
}

// parseBoxes reads every ((lo) (hi) (type)) box in text.
func parseBoxes(text string) []geom.CellBounds {
	ms := tripletRE.FindAllStringSubmatch(text, -1)
	boxes := make([]geom.CellBounds, 0, len(ms)/3)
	for i := 0; i+1 < len(ms); i += 3 {
		cb := geom.CellBounds{}
		for k := 0; k < 3; k++ {
			lo, _ := strconv.Atoi(ms[i][k+1])
			hi, _ := strconv.Atoi(ms[i+1][k+1])
			cb.Origin[k], cb.Width[k] = lo, hi-lo+1
		}
		boxes = append(boxes, cb)
	}
	return boxes
}

// IsPlotfile returns true if dir looks like an AMReX plotfile.
func IsPlotfile(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "Header"))
	return err == nil && !info.IsDir()
}

// ReadPlotfile reads the Header and Cell_H files of the plotfile in dir.
// Cell data is not read until ReadFab is called.
func ReadPlotfile(dir string) (*Plotfile, error) {
	lr, err := newLineReader(filepath.Join(dir, "Header"))
	if err != nil {
		return nil, err
	}

	pf := &Plotfile{Dir: dir}
	version, err := lr.next()
	if err != nil {
		return nil, err
	} else if version != plotfileVersion {
		return nil, lr.errorf(
			"unsupported plotfile version '%s', expected '%s'",
			version, plotfileVersion,
		)
	}

	nVars, err := lr.int()
	if err != nil {
		return nil, err
	}
	for i := 0; i < nVars; i++ {
		name, err := lr.next()
		if err != nil {
			return nil, err
		}
		pf.Vars = append(pf.Vars, name)
	}

	dim, err := lr.int()
	if err != nil {
		return nil, err
	} else if dim != 3 {
		return nil, lr.errorf("only 3D plotfiles are supported, got %dD", dim)
	}

	time, err := lr.floats()
	if err != nil {
		return nil, err
	} else if len(time) != 1 {
		return nil, lr.errorf("expected a single time value")
	}
	pf.Time = time[0]

	if pf.FinestLevel, err = lr.int(); err != nil {
		return nil, err
	}
	if pf.ProbLo, err = lr.vec(); err != nil {
		return nil, err
	}
	if pf.ProbHi, err = lr.vec(); err != nil {
		return nil, err
	}

	ratios, err := lr.floats()
	if err != nil {
		return nil, err
	}
	for _, r := range ratios {
		pf.RefRatio = append(pf.RefRatio, int(r))
	}

	domainLine, err := lr.next()
	if err != nil {
		return nil, err
	}
	pf.Domains = parseBoxes(domainLine)
	if len(pf.Domains) != pf.FinestLevel+1 {
		return nil, lr.errorf(
			"expected %d level domains, found %d",
			pf.FinestLevel+1, len(pf.Domains),
		)
	}

	steps, err := lr.floats()
	if err != nil {
		return nil, err
	}
	for _, s := range steps {
		pf.Steps = append(pf.Steps, int(s))
	}

	for lev := 0; lev <= pf.FinestLevel; lev++ {
		dx, err := lr.vec()
		if err != nil {
			return nil, err
		}
		pf.Dx = append(pf.Dx, dx)
	}

	// Coordinate system and boundary width.
	if _, err = lr.int(); err != nil {
		return nil, err
	}
	if _, err = lr.int(); err != nil {
		return nil, err
	}

	for lev := 0; lev <= pf.FinestLevel; lev++ {
		head, err := lr.floats()
		if err != nil {
			return nil, err
		} else if len(head) < 2 || int(head[0]) != lev {
			return nil, lr.errorf("expected the header of level %d", lev)
		}
		nGrids := int(head[1])

		if _, err = lr.int(); err != nil {
			return nil, err
		}
		for i := 0; i < nGrids*dim; i++ {
			if _, err = lr.next(); err != nil {
				return nil, err
			}
		}

		prefix, err := lr.next()
		if err != nil {
			return nil, err
		}
		level, err := readCellHeader(dir, lev, prefix)
		if err != nil {
			return nil, err
		}
		if len(level.Boxes) != nGrids {
			return nil, fmt.Errorf(
				"Header of '%s' lists %d grids on level %d, but its Cell_H "+
					"file lists %d.", dir, nGrids, lev, len(level.Boxes),
			)
		}
		pf.Levels = append(pf.Levels, *level)
	}

	return pf, nil
}

// readCellHeader reads the <prefix>_H file of one level.
func readCellHeader(dir string, lev int, prefix string) (*PlotLevel, error) {
	lr, err := newLineReader(filepath.Join(dir, prefix+"_H"))
	if err != nil {
		return nil, err
	}

	level := &PlotLevel{Level: lev, Prefix: prefix}
	levelDir := filepath.Dir(filepath.Join(dir, prefix))

	for lr.i < len(lr.lines) {
		line, _ := lr.next()
		switch {
		case strings.HasPrefix(line, "(("):
			level.Boxes = append(level.Boxes, parseBoxes(line)...)
		case strings.HasPrefix(line, "FabOnDisk:"):
			fields := strings.Fields(line)
			if len(fields) != 3 {
				return nil, lr.errorf("malformed FabOnDisk entry '%s'", line)
			}
			off, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				return nil, lr.errorf("malformed FabOnDisk offset '%s'", fields[2])
			}
			level.Fabs = append(level.Fabs, FabOnDisk{
				File: filepath.Join(levelDir, fields[1]), Offset: off,
			})
		}
	}

	if len(level.Fabs) != len(level.Boxes) {
		return nil, fmt.Errorf(
			"'%s_H' lists %d boxes but %d FabOnDisk entries.",
			filepath.Join(dir, prefix), len(level.Boxes), len(level.Fabs),
		)
	}
	return level, nil
}

// Var returns the component index of a variable or -1 if it is not present.
func (pf *Plotfile) Var(name string) int {
	for i, v := range pf.Vars {
		if v == name {
			return i
		}
	}
	return -1
}

// fabHeader is the one-line header at the start of every FAB.
type fabHeader struct {
	bytes int
	order binary.ByteOrder
	box   geom.CellBounds
	nComp int
}

func parseFabHeader(line string) (*fabHeader, error) {
	m := fabRE.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return nil, fmt.Errorf("could not parse FAB header '%s'", line)
	}

	hd := &fabHeader{}
	order := strings.Fields(m[4])
	hd.bytes = len(order)
	if hd.bytes != 4 && hd.bytes != 8 {
		return nil, fmt.Errorf("FAB values are %d bytes wide, which is not "+
			"a supported float size", hd.bytes)
	}
	if order[0] == "1" {
		hd.order = binary.BigEndian
	} else {
		hd.order = binary.LittleEndian
	}

	boxes := parseBoxes(m[5])
	if len(boxes) != 1 {
		return nil, fmt.Errorf("FAB header '%s' does not contain one box", line)
	}
	hd.box = boxes[0]
	hd.nComp, _ = strconv.Atoi(m[6])
	return hd, nil
}

// ReadFab reads component comp of box i on level lev. The returned values
// are ordered with the first index varying fastest.
func (pf *Plotfile) ReadFab(lev, i, comp int) ([]float64, geom.CellBounds, error) {
	if lev < 0 || lev >= len(pf.Levels) {
		return nil, geom.CellBounds{}, fmt.Errorf("no level %d in '%s'", lev, pf.Dir)
	}
	level := &pf.Levels[lev]
	if i < 0 || i >= len(level.Fabs) {
		return nil, geom.CellBounds{}, fmt.Errorf(
			"no box %d on level %d of '%s'", i, lev, pf.Dir,
		)
	}
	fod := level.Fabs[i]

	f, err := os.Open(fod.File)
	if err != nil {
		return nil, geom.CellBounds{}, err
	}
	defer f.Close()

	if _, err := f.Seek(fod.Offset, io.SeekStart); err != nil {
		return nil, geom.CellBounds{}, err
	}
	rd := bufio.NewReader(f)
	line, err := rd.ReadString('\n')
	if err != nil {
		return nil, geom.CellBounds{}, fmt.Errorf(
			"could not read FAB header in '%s': %w", fod.File, err,
		)
	}
	hd, err := parseFabHeader(line)
	if err != nil {
		return nil, geom.CellBounds{}, fmt.Errorf("'%s': %w", fod.File, err)
	}
	if comp < 0 || comp >= hd.nComp {
		return nil, geom.CellBounds{}, fmt.Errorf(
			"FAB in '%s' has %d components, can't read component %d",
			fod.File, hd.nComp, comp,
		)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, geom.CellBounds{}, err
	}
	rest := info.Size() - fod.Offset - int64(len(line))
	n, err := fabCells(hd, comp, rest)
	if err != nil {
		return nil, geom.CellBounds{}, fmt.Errorf("FAB in '%s': %w", fod.File, err)
	}

	if _, err := rd.Discard(comp * n * hd.bytes); err != nil {
		return nil, geom.CellBounds{}, fmt.Errorf(
			"FAB in '%s' is truncated: %w", fod.File, err,
		)
	}

	out := make([]float64, n)
	if hd.bytes == 8 {
		err = binary.Read(rd, hd.order, out)
	} else {
		buf := make([]float32, n)
		err = binary.Read(rd, hd.order, buf)
		for j := range buf {
			out[j] = float64(buf[j])
		}
	}
	if err != nil {
		return nil, geom.CellBounds{}, fmt.Errorf(
			"FAB in '%s' is truncated: %w", fod.File, err,
		)
	}
	return out, hd.box, nil
}

// fabCells returns the number of cells in the FAB described by hd after
// checking that components 0 through comp fit in the rest bytes which follow
// its header.
func fabCells(hd *fabHeader, comp int, rest int64) (int, error) {
	size := int64(hd.bytes)
	for _, w := range hd.box.Width {
		if w <= 0 {
			return 0, fmt.Errorf("box %v has a non-positive width", hd.box)
		}
		if int64(w) > rest/size {
			return 0, fmt.Errorf(
				"box %v needs more than the %d bytes left in the file",
				hd.box, rest,
			)
		}
		size *= int64(w)
	}
	if int64(comp+1) > rest/size {
		return 0, fmt.Errorf(
			"component %d of box %v needs %d bytes, but only %d are left",
			comp, hd.box, int64(comp+1)*size, rest,
		)
	}
	return int(size) / hd.bytes, nil
}

// WritePlotfile writes a plotfile with the metadata in pf. Only Vars, Time,
// ProbLo, ProbHi, RefRatio, Domains and the Boxes of each level are used.
// data[lev][box][comp] holds the values of each component of each box with
// the first index varying fastest. Values are written as little-endian
// doubles, one Cell_D file per level. It exists so that tests and tools can
// produce small plotfiles.
func WritePlotfile(dir string, pf *Plotfile, data [][][][]float64) error {
	nLev := len(pf.Levels)
	if nLev == 0 || len(pf.Domains) != nLev || len(data) != nLev {
		return fmt.Errorf(
			"plotfile has %d levels, %d domains and %d data levels",
			nLev, len(pf.Domains), len(data),
		)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	dx := make([][3]float64, nLev)
	for lev := range dx {
		for k := 0; k < 3; k++ {
			dx[lev][k] = (pf.ProbHi[k] - pf.ProbLo[k]) /
				float64(pf.Domains[lev].Width[k])
		}
	}

	sb := &strings.Builder{}
	fmt.Fprintln(sb, plotfileVersion)
	fmt.Fprintln(sb, len(pf.Vars))
	for _, v := range pf.Vars {
		fmt.Fprintln(sb, v)
	}
	fmt.Fprintln(sb, 3)
	fmt.Fprintln(sb, formatFloat(pf.Time))
	fmt.Fprintln(sb, nLev-1)
	fmt.Fprintln(sb, formatVec(pf.ProbLo))
	fmt.Fprintln(sb, formatVec(pf.ProbHi))
	for lev := 0; lev < nLev-1; lev++ {
		fmt.Fprintf(sb, "%d ", pf.RefRatio[lev])
	}
	fmt.Fprintln(sb)
	for _, d := range pf.Domains {
		fmt.Fprintf(sb, "%s ", formatBox(d))
	}
	fmt.Fprintln(sb)
	for lev := 0; lev < nLev; lev++ {
		fmt.Fprintf(sb, "%d ", 0)
	}
	fmt.Fprintln(sb)
	for lev := 0; lev < nLev; lev++ {
		fmt.Fprintln(sb, formatVec(dx[lev]))
	}
	fmt.Fprintln(sb, 0)
	fmt.Fprintln(sb, 0)

	for lev, level := range pf.Levels {
		fmt.Fprintf(sb, "%d %d %s\n", lev, len(level.Boxes), formatFloat(pf.Time))
		fmt.Fprintln(sb, 0)
		for _, b := range level.Boxes {
			for k := 0; k < 3; k++ {
				lo := pf.ProbLo[k] + float64(b.Origin[k])*dx[lev][k]
				hi := lo + float64(b.Width[k])*dx[lev][k]
				fmt.Fprintf(sb, "%s %s\n", formatFloat(lo), formatFloat(hi))
			}
		}
		prefix := fmt.Sprintf("Level_%d/Cell", lev)
		fmt.Fprintln(sb, prefix)

		if err := writeLevel(dir, prefix, pf, level.Boxes, data[lev]); err != nil {
			return err
		}
	}

	return os.WriteFile(filepath.Join(dir, "Header"), []byte(sb.String()), 0644)
}

func writeLevel(
	dir, prefix string, pf *Plotfile,
	boxes []geom.CellBounds, data [][][]float64,
) error {
	levelDir := filepath.Join(dir, filepath.Dir(prefix))
	if err := os.MkdirAll(levelDir, 0755); err != nil {
		return err
	}
	if len(data) != len(boxes) {
		return fmt.Errorf("%d boxes but %d data boxes", len(boxes), len(data))
	}

	const dataName = "Cell_D_00000"
	f, err := os.Create(filepath.Join(levelDir, dataName))
	if err != nil {
		return err
	}
	defer f.Close()

	offsets := make([]int64, len(boxes))
	offset := int64(0)
	for i, b := range boxes {
		if len(data[i]) != len(pf.Vars) {
			return fmt.Errorf(
				"box %d has %d components, but there are %d variables",
				i, len(data[i]), len(pf.Vars),
			)
		}
		offsets[i] = offset
		header := fmt.Sprintf(
			"FAB ((8, (64 11 52 0 1 12 0 1023)),(8, (8 7 6 5 4 3 2 1)))%s %d\n",
			formatBox(b), len(pf.Vars),
		)
		if _, err := f.WriteString(header); err != nil {
			return err
		}
		offset += int64(len(header))
		for _, comp := range data[i] {
			if err := binary.Write(f, binary.LittleEndian, comp); err != nil {
				return err
			}
			offset += int64(8 * len(comp))
		}
	}

	sb := &strings.Builder{}
	fmt.Fprintln(sb, 1)
	fmt.Fprintln(sb, 0)
	fmt.Fprintln(sb, len(pf.Vars))
	fmt.Fprintln(sb, 0)
	fmt.Fprintf(sb, "(%d 0\n", len(boxes))
	for _, b := range boxes {
		fmt.Fprintln(sb, formatBox(b))
	}
	fmt.Fprintln(sb, ")")
	fmt.Fprintln(sb, len(boxes))
	for i := range boxes {
		fmt.Fprintf(sb, "FabOnDisk: %s %d\n", dataName, offsets[i])
	}

	return os.WriteFile(filepath.Join(dir, prefix+"_H"), []byte(sb.String()), 0644)
}

func formatBox(b geom.CellBounds) string {
	return fmt.Sprintf("((%d,%d,%d) (%d,%d,%d) (0,0,0))",
		b.Origin[0], b.Origin[1], b.Origin[2],
		b.Origin[0]+b.Width[0]-1, b.Origin[1]+b.Width[1]-1,
		b.Origin[2]+b.Width[2]-1)
}

func formatVec(v [3]float64) string {
	return fmt.Sprintf("%s %s %s", formatFloat(v[0]), formatFloat(v[1]), formatFloat(v[2]))
}

func formatFloat(x float64) string {
	if math.IsInf(x, 0) || math.IsNaN(x) {
		return "0"
	}
	return strconv.FormatFloat(x, 'g', -1, 64)
}
