package io

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/phil-mansfield/gridpipe/geom"
)

// Particles is a particle snapshot held in memory. Positions are wrapped
// into [0, BoxSize) when BoxSize is positive.
type Particles struct {
	Xs, Vs []geom.Vec
	Ms     []float64

	// Scalars holds any additional per-particle quantities, keyed by the
	// name they are exported under.
	Scalars map[string][]float64

	BoxSize        float64
	Time, Redshift float64
}

// Len returns the number of particles.
func (p *Particles) Len() int { return len(p.Xs) }

// gadgetHeader is the formatting for meta-information used by Gadget 2.
type gadgetHeader struct {
	NPart                                     [6]uint32
	Mass                                      [6]float64
	Time, Redshift                            float64
	FlagSfr, FlagFeedback                     int32
	NPartTotal                                [6]uint32
	FlagCooling, NumFiles                     int32
	BoxSize, Omega0, OmegaLambda, HubbleParam float64
	FlagStellarAge, HashTabSize               int32

	Padding [88]byte
}

const gadgetHeaderSize = 256

// count returns the number of particles in this file.
func (gh *gadgetHeader) count() int {
	n := 0
	for _, np := range gh.NPart {
		n += int(np)
	}
	return n
}

// variableMassCount returns the number of particles whose masses are stored
// in the MASS block instead of the header.
func (gh *gadgetHeader) variableMassCount() int {
	n := 0
	for i, np := range gh.NPart {
		if gh.Mass[i] == 0 {
			n += int(np)
		}
	}
	return n
}

// WrapDistance takes a value and interprets it as a position defined within
// a periodic domain of width h.BoxSize.
func (gh *gadgetHeader) WrapDistance(x float64) float64 {
	return wrap(x, gh.BoxSize)
}

// wrap maps x into [0, width). Widths which aren't positive leave x alone.
func wrap(x, width float64) float64 {
	if width <= 0 {
		return x
	}
	x = math.Mod(x, width)
	if x < 0 {
		x += width
	}
	// x + width rounds up to width when x is a tiny negative number.
	if x >= width {
		x = 0
	}
	return x
}

// finite returns an error naming the first NaN or infinite value in xs.
func finite(name string, xs []float64) error {
	for i, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%s value %d is %g.", name, i, x)
		}
	}
	return nil
}

// gadgetOrder figures out the byte order of a Gadget-2 file from the size of
// its header block.
func gadgetOrder(f io.ReadSeeker) (binary.ByteOrder, error) {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	if binary.LittleEndian.Uint32(buf) == gadgetHeaderSize {
		return binary.LittleEndian, nil
	} else if binary.BigEndian.Uint32(buf) == gadgetHeaderSize {
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf(
		"The first block of a Gadget-2 file must be the %d-byte header, but "+
			"the block marker could not be read as %d in either byte order.",
		gadgetHeaderSize, gadgetHeaderSize,
	)
}

// readBlock reads one Fortran-style block, checking that both markers agree
// with the size of data.
func readBlock(r io.Reader, order binary.ByteOrder, name string, data interface{}) error {
	size := binary.Size(data)

	var head, foot int32
	if err := binary.Read(r, order, &head); err != nil {
		return fmt.Errorf("could not read %s block marker: %w", name, err)
	}
	if int(head) != size {
		return fmt.Errorf(
			"%s block is %d bytes long, but %d bytes were expected.",
			name, head, size,
		)
	}
	if err := binary.Read(r, order, data); err != nil {
		return fmt.Errorf("could not read %s block: %w", name, err)
	}
	if err := binary.Read(r, order, &foot); err != nil {
		return fmt.Errorf("could not read %s block marker: %w", name, err)
	}
	if foot != head {
		return fmt.Errorf(
			"%s block starts with marker %d but ends with marker %d.",
			name, head, foot,
		)
	}
	return nil
}

// checkBlock checks that the next block is size bytes long and that it fits
// in a file of fileSize bytes. The block marker is not consumed.
func checkBlock(
	f io.ReadSeeker, order binary.ByteOrder, name string, size, fileSize int64,
) error {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if rest := fileSize - pos - 8; size > rest {
		return fmt.Errorf(
			"the header implies a %s block of %d bytes, but only %d bytes "+
				"remain in the file.", name, size, rest,
		)
	}

	var head int32
	if err := binary.Read(f, order, &head); err != nil {
		return fmt.Errorf("could not read %s block marker: %w", name, err)
	}
	if int64(head) != size {
		return fmt.Errorf(
			"%s block is %d bytes long, but the header implies %d bytes.",
			name, head, size,
		)
	}
	_, err = f.Seek(pos, io.SeekStart)
	return err
}

// skipBlock skips a Fortran-style block of unknown length.
func skipBlock(f io.ReadSeeker, order binary.ByteOrder) error {
	var head int32
	if err := binary.Read(f, order, &head); err != nil {
		return err
	}
	_, err := f.Seek(int64(head)+4, io.SeekCurrent)
	return err
}

// ReadGadget2 reads a single-file Gadget-2 snapshot. Velocities are converted
// from Gadget's internal sqrt(a)-scaled units to peculiar velocities.
func ReadGadget2(path string) (*Particles, error) {
	if err := checkRegularFile(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	order, err := gadgetOrder(f)
	if err != nil {
		return nil, fmt.Errorf("'%s': %w", path, err)
	}

	gh := &gadgetHeader{}
	if err := readBlock(f, order, "HEAD", gh); err != nil {
		return nil, fmt.Errorf("'%s': %w", path, err)
	}
	n := gh.count()
	if err := checkBlock(f, order, "POS", 12*int64(n), info.Size()); err != nil {
		return nil, fmt.Errorf("'%s': %w", path, err)
	}

	floatBuf := make([]float32, 3*n)
	if err := readBlock(f, order, "POS", floatBuf); err != nil {
		return nil, fmt.Errorf("'%s': %w", path, err)
	}

	p := &Particles{
		Xs: make([]geom.Vec, n), Vs: make([]geom.Vec, n),
		Ms: make([]float64, n), Scalars: map[string][]float64{},
		BoxSize: gh.BoxSize, Time: gh.Time, Redshift: gh.Redshift,
	}

	for i := range p.Xs {
		for k := 0; k < 3; k++ {
			x := float64(floatBuf[3*i+k])
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf(
					"'%s': particle %d has position %g.", path, i, x,
				)
			}
			p.Xs[i][k] = float32(gh.WrapDistance(x))
		}
	}

	if err := readBlock(f, order, "VEL", floatBuf); err != nil {
		return nil, fmt.Errorf("'%s': %w", path, err)
	}
	rootA := float32(math.Sqrt(gh.Time))
	for i := range p.Vs {
		for k := 0; k < 3; k++ {
			p.Vs[i][k] = floatBuf[3*i+k] * rootA
		}
	}

	// IDs are not needed for deposition and may be 32 or 64 bits wide.
	if err := skipBlock(f, order); err != nil {
		return nil, fmt.Errorf("'%s': could not skip ID block: %w", path, err)
	}

	var varMass []float32
	if nv := gh.variableMassCount(); nv > 0 {
		if err := checkBlock(f, order, "MASS", 4*int64(nv), info.Size()); err != nil {
			return nil, fmt.Errorf("'%s': %w", path, err)
		}
		varMass = make([]float32, nv)
		if err := readBlock(f, order, "MASS", varMass); err != nil {
			return nil, fmt.Errorf("'%s': %w", path, err)
		}
	}

	i, j := 0, 0
	for typ, np := range gh.NPart {
		for k := 0; k < int(np); k++ {
			if gh.Mass[typ] == 0 {
				p.Ms[i] = float64(varMass[j])
				j++
			} else {
				p.Ms[i] = gh.Mass[typ]
			}
			i++
		}
	}

	addVelocityScalars(p)
	return p, nil
}

// addVelocityScalars exposes the velocity components as scalar fields.
func addVelocityScalars(p *Particles) {
	names := []string{"x_velocity", "y_velocity", "z_velocity"}
	for k, name := range names {
		vs := make([]float64, len(p.Vs))
		for i := range vs {
			vs[i] = float64(p.Vs[i][k])
		}
		p.Scalars[name] = vs
	}
}

// WriteGadget2 writes p as a little-endian single-file Gadget-2 snapshot
// with all particles stored as type 1 and 64-bit IDs. It exists so that
// tests and tools can produce small snapshots.
func WriteGadget2(path string, p *Particles) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	wr := bufio.NewWriter(f)

	n := p.Len()
	gh := &gadgetHeader{}
	gh.NPart[1], gh.NPartTotal[1] = uint32(n), uint32(n)
	gh.Time, gh.Redshift, gh.BoxSize, gh.NumFiles = p.Time, p.Redshift, p.BoxSize, 1
	if gh.Time == 0 {
		gh.Time = 1
	}

	floatBuf := make([]float32, 3*n)
	for i := range p.Xs {
		copy(floatBuf[3*i:3*i+3], p.Xs[i][:])
	}
	velBuf := make([]float32, 3*n)
	rootA := float32(math.Sqrt(gh.Time))
	for i := range p.Vs {
		for k := 0; k < 3; k++ {
			velBuf[3*i+k] = p.Vs[i][k] / rootA
		}
	}
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i)
	}
	ms := make([]float32, n)
	for i := range ms {
		ms[i] = float32(p.Ms[i])
	}

	for _, data := range []interface{}{gh, floatBuf, velBuf, ids, ms} {
		if err := writeBlock(wr, data); err != nil {
			f.Close()
			return err
		}
	}

	if err := wr.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeBlock(wr io.Writer, data interface{}) error {
	size := int32(binary.Size(data))
	if err := binary.Write(wr, binary.LittleEndian, size); err != nil {
		return err
	}
	if err := binary.Write(wr, binary.LittleEndian, data); err != nil {
		return err
	}
	return binary.Write(wr, binary.LittleEndian, size)
}

// checkRegularFile returns an error if path does not exist or is a
// directory.
func checkRegularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a snapshot file.", path)
	}
	return nil
}
