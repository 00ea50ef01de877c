package rmem

import (
	"sort"

	"reld/record"
)

// Cursor iterates a snapshot of its Recmap's key order taken when the
// cursor was opened, matching the kernel's expectation that an aborted
// transaction's cursors stop being usable rather than silently reflecting
// concurrent writes from elsewhere (spec §5).
type Cursor struct {
	rm    *Recmap
	tx    *Transaction
	write bool
	keys  []string
	pos   int
	dirty []byte // unused: Set writes each change straight through to the recmap
}

func (c *Cursor) checkAlive() error {
	c.tx.mu.Lock()
	done := c.tx.done
	c.tx.mu.Unlock()
	if done {
		return record.NewError(record.CodeInvalidArgument, "cursor's transaction is no longer active")
	}
	return nil
}

func (c *Cursor) Seek(key []byte) error {
	if err := c.checkAlive(); err != nil {
		return err
	}
	k := string(key)
	idx := sort.SearchStrings(c.keys, k)
	if idx >= len(c.keys) {
		return record.NewError(record.CodeNotFound, "seek past end")
	}
	c.pos = idx
	return nil
}

func (c *Cursor) Next() error {
	if err := c.checkAlive(); err != nil {
		return err
	}
	c.pos++
	if c.pos >= len(c.keys) {
		return record.NewError(record.CodeNotFound, "end of recmap")
	}
	return nil
}

func (c *Cursor) current() ([]byte, error) {
	if c.pos < 0 || c.pos >= len(c.keys) {
		return nil, record.NewError(record.CodeInvalidArgument, "cursor not positioned")
	}
	c.rm.mu.RLock()
	defer c.rm.mu.RUnlock()
	raw, ok := c.rm.data[c.keys[c.pos]]
	if !ok {
		return nil, record.NewError(record.CodeNotFound, "record deleted under cursor")
	}
	return raw, nil
}

func (c *Cursor) Get(field int) ([]byte, error) {
	raw, err := c.current()
	if err != nil {
		return nil, err
	}
	parts := splitFields(raw, c.rm.fields)
	if field < 0 || field >= len(parts) {
		return nil, record.NewError(record.CodeInvalidArgument, "field index out of range")
	}
	return parts[field], nil
}

func (c *Cursor) Set(field int, value []byte) error {
	if !c.write {
		return record.NewError(record.CodeInvalidArgument, "cursor opened read-only")
	}
	raw, err := c.current()
	if err != nil {
		return err
	}
	parts := splitFields(raw, c.rm.fields)
	if field < 0 || field >= len(parts) {
		return record.NewError(record.CodeInvalidArgument, "field index out of range")
	}
	old := append([]byte(nil), raw...)
	parts[field] = value
	newRaw := joinFields(parts, c.rm.fields)

	key := c.keys[c.pos]
	c.rm.mu.Lock()
	c.rm.data[key] = newRaw
	c.rm.mu.Unlock()
	c.tx.recordUndo(func() {
		c.rm.mu.Lock()
		c.rm.data[key] = old
		c.rm.mu.Unlock()
	})
	return nil
}

func (c *Cursor) Delete() error {
	if !c.write {
		return record.NewError(record.CodeInvalidArgument, "cursor opened read-only")
	}
	if c.pos < 0 || c.pos >= len(c.keys) {
		return record.NewError(record.CodeInvalidArgument, "cursor not positioned")
	}
	key := c.keys[c.pos]
	c.rm.mu.Lock()
	old, ok := c.rm.data[key]
	if ok {
		delete(c.rm.data, key)
	}
	c.rm.mu.Unlock()
	if !ok {
		return record.NewError(record.CodeNotFound, "record already deleted")
	}
	c.tx.recordUndo(func() {
		c.rm.mu.Lock()
		c.rm.data[key] = old
		c.rm.mu.Unlock()
	})
	return nil
}

func (c *Cursor) Close() error {
	c.keys = nil
	return nil
}
