/*package params reads, canonicalizes and stages the key = value parameter
files consumed by the simulation.
*/
package params

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// KeyWidth is the column width keys are padded to by Canonicalize.
const KeyWidth = 35

// Header is the comment line which separates a staged file's base
// parameters from its run-specific overrides.
const Header = "# new params"

// Param is a single key = value line.
type Param struct {
	Key, Value string
}

func (p Param) String() string {
	return fmt.Sprintf("%s = %s", p.Key, p.Value)
}

// Parse reads every parameter in rd. Text following a '#' is a comment and
// blank lines are ignored. Every other line must contain an '='.
func Parse(rd io.Reader) ([]Param, error) {
	var ps []Param
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 1<<16), 1<<20)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		i := strings.IndexByte(line, '=')
		if i < 0 {
			return nil, fmt.Errorf(
				"Line %d, '%s', is not of the form 'key = value'.", n, line,
			)
		}
		ps = append(ps, Param{
			strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]),
		})
	}
	return ps, sc.Err()
}

// Canonicalize writes the parameters in rd to wr sorted by key and then by
// value, one per line, with keys left-justified to KeyWidth columns. Comments
// and blank lines are dropped. Canonicalizing the output again produces the
// same bytes.
func Canonicalize(rd io.Reader, wr io.Writer) error {
	ps, err := Parse(rd)
	if err != nil {
		return err
	}

	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Key != ps[j].Key {
			return ps[i].Key < ps[j].Key
		}
		return ps[i].Value < ps[j].Value
	})

	bw := bufio.NewWriter(wr)
	for _, p := range ps {
		if _, err := fmt.Fprintf(bw, "%-*s = %s\n", KeyWidth, p.Key, p.Value); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// CanonicalizeFile canonicalizes the parameter file in to the file out.
func CanonicalizeFile(in, out string) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	g, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := Canonicalize(f, g); err != nil {
		g.Close()
		return err
	}
	return g.Close()
}

// Stage copies the parameter file base to dst and appends Header followed
// by one line per override. Later lines take precedence in the simulation's
// parser, so overrides win over the base values.
func Stage(base, dst string, overrides []Param) error {
	b, err := os.ReadFile(base)
	if err != nil {
		return err
	}

	sb := &strings.Builder{}
	sb.Write(b)
	sb.WriteString("\n\n" + Header)
	for _, p := range overrides {
		sb.WriteString("\n" + p.String())
	}

	return os.WriteFile(dst, []byte(sb.String()), 0644)
}

// Lookup returns the last value assigned to key in ps, which is the one the
// simulation will use.
func Lookup(ps []Param, key string) (string, bool) {
	val, ok := "", false
	for _, p := range ps {
		if p.Key == key {
			val, ok = p.Value, true
		}
	}
	return val, ok
}
