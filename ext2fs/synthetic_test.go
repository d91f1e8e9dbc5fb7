package ext2fs

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// syntheticImage builds a minimal, single-block-group ext2 image entirely
// in memory: a 1024-byte block size, an 8-block inode table starting at
// block 5 (room for 64 inodes at 128 bytes each), and data blocks starting
// at block 13 allocated on demand. It exists purely to exercise the reader
// components against byte layouts the tests construct directly, without
// needing a real disk image.
type syntheticImage struct {
	blocks          map[uint32][]byte
	nextDataBlock   uint32
	inodeTableStart uint32
	inodesPerBlock  uint32
	inodeSize       uint16
	blockSize       int64
}

func newSyntheticImage() *syntheticImage {
	return &syntheticImage{
		blocks:          map[uint32][]byte{},
		inodeTableStart: 5,
		inodesPerBlock:  8,
		inodeSize:       128,
		blockSize:       1024,
		nextDataBlock:   13,
	}
}

func (b *syntheticImage) allocBlock() uint32 {
	n := b.nextDataBlock
	b.nextDataBlock++
	return n
}

func (b *syntheticImage) setBlock(n uint32, data []byte) {
	buf := make([]byte, b.blockSize)
	copy(buf, data)
	b.blocks[n] = buf
}

func (b *syntheticImage) setInode(t *testing.T, num uint32, inode Inode) {
	idx := num - 1
	blockNum := b.inodeTableStart + idx/b.inodesPerBlock
	within := idx % b.inodesPerBlock

	buf, ok := b.blocks[blockNum]
	if !ok {
		buf = make([]byte, b.blockSize)
	}

	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, inode); err != nil {
		t.Fatalf("encode inode %d: %v", num, err)
	}
	offset := int(within) * int(b.inodeSize)
	copy(buf[offset:], out.Bytes())
	b.blocks[blockNum] = buf
}

// build assembles every staged block into a contiguous byte slice and
// parses it through NewImage, the same entry point Open uses.
func (b *syntheticImage) build(t *testing.T) *Image {
	sb := Superblock{
		InodeCount:     64,
		BlockCountLo:   64,
		FirstDataBlock: 1,
		LogBlockSize:   0,
		BlocksPerGroup: 256,
		InodesPerGroup: 64,
		Magic:          ExtMagic,
		InodeSize:      b.inodeSize,
	}
	var sbBuf bytes.Buffer
	if err := binary.Write(&sbBuf, binary.LittleEndian, sb); err != nil {
		t.Fatalf("encode superblock: %v", err)
	}
	b.setBlock(1, sbBuf.Bytes())

	gd := GroupDescriptor{InodeTable: b.inodeTableStart}
	var gdBuf bytes.Buffer
	if err := binary.Write(&gdBuf, binary.LittleEndian, gd); err != nil {
		t.Fatalf("encode group descriptor: %v", err)
	}
	b.setBlock(2, gdBuf.Bytes())

	var maxBlock uint32
	for n := range b.blocks {
		if n > maxBlock {
			maxBlock = n
		}
	}

	full := make([]byte, (int64(maxBlock)+1)*b.blockSize)
	for n, data := range b.blocks {
		copy(full[int64(n)*b.blockSize:], data)
	}

	img, err := NewImage(bytes.NewReader(full))
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	return img
}

func encodeForTest(t *testing.T, v interface{}) []byte {
	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, v); err != nil {
		t.Fatalf("encode %T: %v", v, err)
	}
	return out.Bytes()
}

func byteReaderAt(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

// dirEntrySpec describes one record to pack into a synthetic directory
// block, optionally followed by raw ghost bytes placed in its slack.
type dirEntrySpec struct {
	inode    uint32
	name     string
	fileType uint8
	recLen   uint16 // 0 means "tight fit, no slack"
	ghosts   []dirEntrySpec
}

// packDirBlock lays out specs sequentially starting at offset 0, writing
// any per-entry ghosts into the slack between the entry's actual size and
// its declared rec_len, and extends the final entry's rec_len to the end
// of the block the way a real directory block's last record always does.
func packDirBlock(blockSize int, specs []dirEntrySpec) []byte {
	buf := make([]byte, blockSize)
	offset := 0
	for i, s := range specs {
		actual := actualSize(len(s.name))
		recLen := s.recLen
		if recLen == 0 {
			recLen = uint16(actual)
		}
		if i == len(specs)-1 {
			recLen = uint16(blockSize - offset)
		}
		putDirEntry(buf, offset, s.inode, recLen, s.fileType, s.name)

		slackOffset := offset + actual
		for _, g := range s.ghosts {
			gActual := actualSize(len(g.name))
			gRecLen := g.recLen
			if gRecLen == 0 {
				gRecLen = uint16(gActual)
			}
			putDirEntry(buf, slackOffset, g.inode, gRecLen, g.fileType, g.name)
			slackOffset += int(gRecLen)
		}

		offset += int(recLen)
	}
	return buf
}
