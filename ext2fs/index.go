package ext2fs

// EntryRecord is one observed appearance of an inode inside a directory —
// either a live, reachable record or a ghost recovered from slack.
type EntryRecord struct {
	FullPath string
	Name     string
	Parent   uint32
	Ghost    bool
}

// InodeRecord aggregates everything discovered about one inode during the
// tree walk: a cached snapshot of its inode data, and every live/ghost
// reference to it, in discovery order.
type InodeRecord struct {
	Inode   Inode
	Entries []EntryRecord
}

// ReferenceIndex accumulates, per inode number, every reference discovered
// during the walk. It is mutated only during the walk and read-only
// afterward (inference and rendering never add or remove entries).
type ReferenceIndex struct {
	order []uint32
	byIno map[uint32]*InodeRecord
}

// NewReferenceIndex returns an empty index.
func NewReferenceIndex() *ReferenceIndex {
	return &ReferenceIndex{byIno: make(map[uint32]*InodeRecord)}
}

// Record appends one reference to inode's record, snapshotting its inode
// data on first sight and leaving it untouched on subsequent calls.
func (idx *ReferenceIndex) Record(inoNum uint32, inode Inode, entry EntryRecord) {
	rec, ok := idx.byIno[inoNum]
	if !ok {
		rec = &InodeRecord{Inode: inode}
		idx.byIno[inoNum] = rec
		idx.order = append(idx.order, inoNum)
	}
	rec.Entries = append(rec.Entries, entry)
}

// Get returns the record for inoNum, if any inode has been observed.
func (idx *ReferenceIndex) Get(inoNum uint32) (*InodeRecord, bool) {
	rec, ok := idx.byIno[inoNum]
	return rec, ok
}

// InodeNumbers returns every inode number present in the index, in
// discovery order.
func (idx *ReferenceIndex) InodeNumbers() []uint32 {
	return idx.order
}
