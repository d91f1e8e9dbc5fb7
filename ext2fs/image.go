package ext2fs

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"golang.org/x/xerrors"
)

// RootInodeNumber is the well-known inode number of the filesystem root.
const RootInodeNumber = 2

// Image is the read-only accessor over an unmounted ext2-style image file.
// It is treated as an immutable context: once opened, Superblock and
// GroupDescriptors never change, and every other component takes an *Image
// rather than reaching for package-level state.
type Image struct {
	r      io.ReaderAt
	closer io.Closer

	Superblock       Superblock
	GroupDescriptors []GroupDescriptor

	blockSize int64
}

// Open opens the image at path, parses its superblock and group descriptor
// table, and returns a ready-to-use Image. The caller owns the returned
// file handle's lifetime via Close.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open image: %w", err)
	}

	img, err := NewImage(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	img.closer = f
	return img, nil
}

// NewImage parses a superblock and group descriptor table from r.
func NewImage(r io.ReaderAt) (*Image, error) {
	sbBuf := make([]byte, 1024)
	if _, err := r.ReadAt(sbBuf, SuperblockOffset); err != nil {
		return nil, xerrors.Errorf("failed to read superblock: %w", err)
	}

	var sb Superblock
	if err := binary.Read(bytes.NewReader(sbBuf), binary.LittleEndian, &sb); err != nil {
		return nil, xerrors.Errorf("failed to parse superblock: %w", err)
	}
	if sb.Magic != ExtMagic {
		return nil, xerrors.Errorf("bad superblock magic: 0x%04x", sb.Magic)
	}

	img := &Image{
		r:         r,
		Superblock: sb,
		blockSize: sb.BlockSize(),
	}

	gds, err := img.readGroupDescriptors()
	if err != nil {
		return nil, xerrors.Errorf("failed to read group descriptor table: %w", err)
	}
	img.GroupDescriptors = gds

	return img, nil
}

func (img *Image) readGroupDescriptors() ([]GroupDescriptor, error) {
	count := img.Superblock.GroupCount()
	tableBlock := img.Superblock.FirstDataBlock + 1

	gds := make([]GroupDescriptor, 0, count)
	perBlock := int(img.blockSize / GroupDescriptorSize)
	if perBlock == 0 {
		return nil, xerrors.New("block size too small for a group descriptor")
	}

	for i := uint32(0); i < count; i++ {
		blockIdx := tableBlock + i/uint32(perBlock)
		within := int(i) % perBlock

		buf, err := img.ReadBlock(blockIdx)
		if err != nil {
			return nil, xerrors.Errorf("failed to read group descriptor block %d: %w", blockIdx, err)
		}

		var gd GroupDescriptor
		offset := within * GroupDescriptorSize
		if err := binary.Read(bytes.NewReader(buf[offset:offset+GroupDescriptorSize]), binary.LittleEndian, &gd); err != nil {
			return nil, xerrors.Errorf("failed to parse group descriptor %d: %w", i, err)
		}
		gds = append(gds, gd)
	}
	return gds, nil
}

// BlockSize returns the filesystem's block size in bytes.
func (img *Image) BlockSize() int64 {
	return img.blockSize
}

// ReadBlock reads one full block by its absolute block number. A failing
// read is reported as an error for the caller to catch and skip: the
// walker logs a bad block and goes on with the directory's next block,
// never aborting the whole walk.
func (img *Image) ReadBlock(n uint32) ([]byte, error) {
	buf := make([]byte, img.blockSize)
	if _, err := img.r.ReadAt(buf, int64(n)*img.blockSize); err != nil {
		return nil, xerrors.Errorf("failed to read block %d: %w", n, err)
	}
	return buf, nil
}

// Close releases the underlying file handle, if one was opened via Open.
func (img *Image) Close() error {
	if img.closer != nil {
		return img.closer.Close()
	}
	return nil
}
