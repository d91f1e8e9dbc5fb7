package ext2fs

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/xerrors"
)

// Mode bits consulted by the forensic core.
const (
	ModeDir = 0x4000
)

// Inode is the on-disk ext2 inode record. ext2 inodes address data blocks
// through twelve direct pointers and three levels of indirection (unlike
// ext4's extent trees), so the pointer fields are declared by name.
type Inode struct {
	Mode       uint16 `struc:"uint16,little"`
	UID        uint16 `struc:"uint16,little"`
	SizeLo     uint32 `struc:"uint32,little"`
	Atime      uint32 `struc:"uint32,little"`
	Ctime      uint32 `struc:"uint32,little"`
	Mtime      uint32 `struc:"uint32,little"`
	Dtime      uint32 `struc:"uint32,little"`
	GID        uint16 `struc:"uint16,little"`
	LinksCount uint16 `struc:"uint16,little"`
	BlocksLo   uint32 `struc:"uint32,little"`
	Flags      uint32 `struc:"uint32,little"`
	OSD1       uint32 `struc:"uint32,little"`

	DirectBlock    [12]uint32 `struc:"[12]uint32,little"`
	SingleIndirect uint32     `struc:"uint32,little"`
	DoubleIndirect uint32     `struc:"uint32,little"`
	TripleIndirect uint32     `struc:"uint32,little"`

	Generation uint32   `struc:"uint32,little"`
	FileACL    uint32   `struc:"uint32,little"`
	SizeHigh   uint32   `struc:"uint32,little"`
	FragAddr   uint32   `struc:"uint32,little"`
	OSD2       [12]byte `struc:"[12]byte"`
}

// IsDir reports whether the inode's mode carries the directory bit.
func (i Inode) IsDir() bool {
	return i.Mode&ModeDir != 0
}

// Deleted reports whether the inode's deletion time is set (nonzero).
func (i Inode) Deleted() bool {
	return i.Dtime != 0
}

// ReadInode reads inode number num (1-based). num == 0 means "no inode"
// and returns a zeroed Inode.
func (img *Image) ReadInode(num uint32) (Inode, error) {
	if num == 0 {
		return Inode{}, nil
	}

	sb := &img.Superblock
	group := (num - 1) / sb.InodesPerGroup
	index := (num - 1) % sb.InodesPerGroup

	if group >= uint32(len(img.GroupDescriptors)) {
		return Inode{}, xerrors.Errorf("inode %d: group %d out of range (have %d groups)", num, group, len(img.GroupDescriptors))
	}

	inodesPerBlock := sb.InodesPerBlock()
	if inodesPerBlock == 0 {
		return Inode{}, xerrors.New("inode size is zero")
	}

	tableBlock := img.GroupDescriptors[group].InodeTable
	blockNum := tableBlock + index/inodesPerBlock
	byteOffset := (index % inodesPerBlock) * uint32(sb.InodeSize)

	buf, err := img.ReadBlock(blockNum)
	if err != nil {
		return Inode{}, xerrors.Errorf("failed to read inode %d: %w", num, err)
	}

	end := int(byteOffset) + int(sb.InodeSize)
	if end > len(buf) {
		return Inode{}, xerrors.Errorf("inode %d: record extends past block", num)
	}

	var inode Inode
	if err := binary.Read(bytes.NewReader(buf[byteOffset:end]), binary.LittleEndian, &inode); err != nil {
		return Inode{}, xerrors.Errorf("failed to parse inode %d: %w", num, err)
	}
	return inode, nil
}
