package ext2fs

// GroupDescriptor is one 32-byte block group descriptor. Only the inode
// table location is consulted downstream; the full on-disk record is
// declared anyway.
type GroupDescriptor struct {
	BlockBitmap     uint32 `struc:"uint32,little"`
	InodeBitmap     uint32 `struc:"uint32,little"`
	InodeTable      uint32 `struc:"uint32,little"`
	FreeBlocksCount uint16 `struc:"uint16,little"`
	FreeInodesCount uint16 `struc:"uint16,little"`
	UsedDirsCount   uint16 `struc:"uint16,little"`
	Pad             uint16 `struc:"uint16,little"`
	Reserved        [12]byte `struc:"[12]byte"`
}

// GroupDescriptorSize is the on-disk size of one group descriptor record.
const GroupDescriptorSize = 32
