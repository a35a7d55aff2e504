package geom

// Vec is a position or velocity in simulation units.
type Vec [3]float32

// Domain is an axis-aligned physical bounding box.
type Domain struct {
	Lo, Hi [3]float64
}

// CubeDomain returns the domain [0, width)^3 used by periodic particle
// snapshots.
func CubeDomain(width float64) Domain {
	return Domain{Hi: [3]float64{width, width, width}}
}

// Width returns the extent of the domain along each axis.
func (d *Domain) Width() [3]float64 {
	return [3]float64{d.Hi[0] - d.Lo[0], d.Hi[1] - d.Lo[1], d.Hi[2] - d.Lo[2]}
}

// CellWidth returns the width of one cell along each axis when the domain
// is split into cells cells on a side.
func (d *Domain) CellWidth(cells int) [3]float64 {
	w := d.Width()
	n := float64(cells)
	return [3]float64{w[0] / n, w[1] / n, w[2] / n}
}

// CellVolume returns the volume of one cell of a cells^3 lattice over d.
func (d *Domain) CellVolume(cells int) float64 {
	cw := d.CellWidth(cells)
	return cw[0] * cw[1] * cw[2]
}

// Valid returns true if the domain has a positive width along every axis.
func (d *Domain) Valid() bool {
	w := d.Width()
	return w[0] > 0 && w[1] > 0 && w[2] > 0
}

// Bounding returns the smallest domain containing every point in xs.
func Bounding(xs []Vec) Domain {
	if len(xs) == 0 {
		return Domain{}
	}
	d := Domain{}
	for k := 0; k < 3; k++ {
		d.Lo[k], d.Hi[k] = float64(xs[0][k]), float64(xs[0][k])
	}
	for _, x := range xs[1:] {
		for k := 0; k < 3; k++ {
			v := float64(x[k])
			if v < d.Lo[k] {
				d.Lo[k] = v
			} else if v > d.Hi[k] {
				d.Hi[k] = v
			}
		}
	}
	return d
}
