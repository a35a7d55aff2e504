package snapshot

// Cache keeps the most recently opened snapshot open so that the fields of a
// single timestep can be converted without rereading it. When disabled, Get
// opens the snapshot every time and Release closes it again.
type Cache struct {
	hint    Hint
	opt     Options
	enabled bool

	path string
	snap Snapshot
	err  error

	// Opens counts how many times a snapshot was actually opened.
	Opens int
}

// NewCache returns a cache which opens snapshots with the given hint and
// options.
func NewCache(hint Hint, opt Options, enabled bool) *Cache {
	return &Cache{hint: hint, opt: opt, enabled: enabled}
}

// Get returns the snapshot at path. A failed open is remembered as well, so
// a corrupt snapshot is only read once per timestep.
func (c *Cache) Get(path string) (Snapshot, error) {
	if c.enabled && path == c.path && (c.snap != nil || c.err != nil) {
		return c.snap, c.err
	}
	c.Close()

	c.Opens++
	snap, err := Open(path, c.hint, c.opt)
	if c.enabled {
		c.path, c.snap, c.err = path, snap, err
	}
	return snap, err
}

// Release hands back a snapshot returned by Get.
func (c *Cache) Release(snap Snapshot) error {
	if c.enabled || snap == nil {
		return nil
	}
	return snap.Close()
}

// Close closes the cached snapshot, if any.
func (c *Cache) Close() error {
	var err error
	if c.snap != nil {
		err = c.snap.Close()
	}
	c.path, c.snap, c.err = "", nil, nil
	return err
}
