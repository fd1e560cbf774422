package tokay

// memoStatus tags a Cache entry's lifecycle (spec.md §4.3).
type memoStatus int

const (
	memoInProgress memoStatus = iota // seed-growing: a reject marker, or a growing seed
	memoHit
)

// memoEntry is one cached outcome at (parselet, offset, reader).
// Immutable once finalized, except during left-recursion seed growth,
// where GrowSeed updates reject/end/value/severity in place —
// isolated here behind the Cache's own methods so ordinary
// Hit entries elsewhere in the engine are never mutated by surprise
// (spec.md §9's "isolate that mutability inside the cache module").
type memoEntry struct {
	status   memoStatus
	reject   bool // true: Hit{reject}; false: Hit{success}
	end      int
	value    Value
	severity int
	growing  bool // true while this entry is an active left-recursion seed
}

// memoKey identifies one cache slot.
type memoKey struct {
	parseletID int
	readerID   int
	offset     int
}

// Cache is the packrat memoization table bound to one Thread
// (spec.md §4.3: "thread-local... discarded when the thread ends").
// Grounded loosely on the *shape* of the teacher's `vm_oracle_state.go`
// snapshot-carrying state (a map keyed by position, cloned rather than
// mutated in place when exploring alternatives) — the teacher has no
// literal packrat cache since langlang is a plain greedy PEG VM.
type Cache struct {
	entries map[memoKey]*memoEntry
}

func NewCache() *Cache {
	return &Cache{entries: map[memoKey]*memoEntry{}}
}

// Lookup returns the entry at key, or nil if absent (a Miss).
func (c *Cache) Lookup(key memoKey) *memoEntry {
	return c.entries[key]
}

// BeginSeed installs an InProgress entry with a reject-marker seed,
// called right before entering a consuming parselet not already
// cached (spec.md §4.3 "If Miss, an InProgress-seed entry... is
// installed").
func (c *Cache) BeginSeed(key memoKey) *memoEntry {
	e := &memoEntry{status: memoInProgress, reject: true, growing: true}
	c.entries[key] = e
	return e
}

// GrowSeed replaces an in-progress entry's seed with a new, further-
// advancing outcome, to be re-tried.
func (c *Cache) GrowSeed(key memoKey, end int, value Value, severity int) {
	e := c.entries[key]
	e.reject = false
	e.end = end
	e.value = value
	e.severity = severity
}

// Finalize converts an in-progress entry into an immutable Hit,
// called once growth stops advancing (or the very first execution
// rejected outright).
func (c *Cache) Finalize(key memoKey, reject bool, end int, value Value, severity int) {
	c.entries[key] = &memoEntry{
		status:   memoHit,
		reject:   reject,
		end:      end,
		value:    value,
		severity: severity,
	}
}

// Remove discards a key's entry. vm.go's invoke uses it to drop the
// seed BeginSeed installed when the call ends with an error other than
// a reject (a parse error, a runtime error, an abort, an exit).
func (c *Cache) Remove(key memoKey) {
	delete(c.entries, key)
}
