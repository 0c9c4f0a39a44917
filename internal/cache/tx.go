package cache

// Tx is the view of a Store inside Batch. It must not be used after Batch
// returns.
type Tx struct {
	s       *Store
	changes []Change
	done    bool
}

func (tx *Tx) check() {
	if tx.done {
		panic("cache: Tx used after Batch returned")
	}
}

// Get returns the raw value stored under key.
func (tx *Tx) Get(key Key) (any, bool) {
	tx.check()
	return tx.s.get(key)
}

// Put stores v under key.
func (tx *Tx) Put(key Key, v any) {
	tx.check()
	tx.changes = append(tx.changes, tx.s.put(key, v))
}

// Remove deletes the entry for key.
func (tx *Tx) Remove(key Key) {
	tx.check()
	if c, ok := tx.s.remove(key); ok {
		tx.changes = append(tx.changes, c)
	}
}

// Keys returns every present key under prefix, sorted.
func (tx *Tx) Keys(prefix Key) []Key {
	tx.check()
	return tx.s.keys(prefix)
}

// Invalidate marks every entry under prefix stale.
func (tx *Tx) Invalidate(prefix Key) {
	tx.check()
	tx.changes = append(tx.changes, tx.s.invalidate(prefix)...)
}

// InvalidateKey marks exactly key stale.
func (tx *Tx) InvalidateKey(key Key) {
	tx.check()
	if c, ok := tx.s.invalidateKey(key); ok {
		tx.changes = append(tx.changes, c)
	}
}

// IsStale is Store.IsStale inside a batch.
func (tx *Tx) IsStale(key Key) bool {
	tx.check()
	return !tx.s.fresh(key)
}

// CancelInFlight is Store.CancelInFlight inside a batch.
func (tx *Tx) CancelInFlight(key Key) {
	tx.check()
	tx.s.cancel(key.String())
}

func (tx *Tx) update(key Key, fn func(cur any, ok bool) any) {
	tx.check()
	cur, ok := tx.s.get(key)
	tx.changes = append(tx.changes, tx.s.put(key, fn(cur, ok)))
}
