package btrieve

import "github.com/heyvito/btrieve/internal"

// cursor is the per-session position within a file. offset is the physical
// offset of the current record, and zero when no record was ever positioned.
// It keeps pointing to a deleted record, so stepping still works from there.
type cursor struct {
	offset uint32
	query  *query
}

// query is the logical currency established by a key lookup. Relative
// navigation resumes from its anchor, which holds the key value and offset of
// the last record it produced. The anchor does not need to remain live.
type query struct {
	keyNumber    int
	key          *internal.Key
	operator     Operator
	anchorKey    []byte
	anchorOffset uint32
}

func (c *cursor) reset() {
	c.offset = 0
	c.query = nil
}

func (c *cursor) moveTo(offset uint32) {
	c.offset = offset
	c.query = nil
}

func (c *cursor) anchor(q *query, offset uint32, key []byte) {
	c.offset = offset
	q.anchorKey = key
	q.anchorOffset = offset
	c.query = q
}
