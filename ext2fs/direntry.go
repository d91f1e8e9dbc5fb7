package ext2fs

import (
	"bytes"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"golang.org/x/xerrors"
)

// DirEntryDirType is the file-type code reserved for directories in a
// directory record's FileType byte.
const DirEntryDirType = 2

// dirEntryHeaderSize is the fixed 8-byte portion of every directory record
// (inode, rec_len, name_len, file_type) preceding its name.
const dirEntryHeaderSize = 8

// RawDirEntry is one on-disk directory record: a 4-byte aligned,
// variable-length record whose Name field is exactly NameLen bytes long,
// sized at decode time via struc's sizeof tag.
type RawDirEntry struct {
	Inode    uint32 `struc:"uint32,little"`
	RecLen   uint16 `struc:"uint16,little"`
	NameLen  uint8  `struc:"uint8,sizeof=Name"`
	FileType uint8  `struc:"uint8"`
	Name     string `struc:"[]byte"`
}

// align4 rounds n up to the next multiple of 4.
func align4(n int) int {
	return (n + 3) &^ 3
}

// actualSize returns the space a record with the given name length actually
// needs on disk: the 8-byte header plus the name, 4-byte aligned.
func actualSize(nameLen int) int {
	return align4(dirEntryHeaderSize + nameLen)
}

// decodeLiveEntry decodes one record of a directory block's active linked
// list starting at offset. ok is false when the declared length field is
// zero or the record falls outside buf; both terminate the block (a
// malformed length or end-of-block sentinel).
func decodeLiveEntry(buf []byte, offset int) (entry RawDirEntry, ok bool, err error) {
	if offset+dirEntryHeaderSize > len(buf) {
		return RawDirEntry{}, false, nil
	}
	length := binary.LittleEndian.Uint16(buf[offset+4 : offset+6])
	if length == 0 {
		return RawDirEntry{}, false, nil
	}
	nameLen := int(buf[offset+6])
	end := offset + dirEntryHeaderSize + nameLen
	if end > len(buf) {
		return RawDirEntry{}, false, nil
	}

	if err := struc.Unpack(bytes.NewReader(buf[offset:end]), &entry); err != nil {
		return RawDirEntry{}, false, xerrors.Errorf("failed to decode directory entry at offset %d: %w", offset, err)
	}
	entry.RecLen = length
	return entry, true, nil
}
