package ext2fs

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// Logger receives diagnostics for recoverable failures (a bad block or a
// malformed inode location). A nil Logger discards them.
type Logger func(format string, args ...interface{})

// TreeNode is one node of the reconstructed directory tree, live or ghost.
type TreeNode struct {
	Inode    uint32
	Name     string
	IsDir    bool
	Ghost    bool
	Children []*TreeNode
}

// childRef is one child enqueued by a block scan, pending recursion/emission
// once every block of the owning directory has been processed.
type childRef struct {
	name  string
	inode uint32
	isDir bool
}

// Walk walks the directory tree starting at the root inode (2), registering
// every live and ghost reference into idx and returning the tree snapshot.
// logf receives diagnostics for recoverable per-block/per-inode failures;
// it may be nil.
func Walk(img *Image, idx *ReferenceIndex, opts ScanOptions, logf Logger) (*TreeNode, error) {
	w := &walker{img: img, idx: idx, opts: opts, logf: logf}

	// The root is never named by any scanned record (its "." and ".."
	// references are skipped like everyone else's), but it is always live,
	// so it is seeded here to get its own creation event in the history.
	rootInode, err := img.ReadInode(RootInodeNumber)
	if err != nil {
		return nil, xerrors.Errorf("failed to read root inode: %w", err)
	}
	idx.Record(RootInodeNumber, rootInode, EntryRecord{
		FullPath: "/",
		Name:     "root",
		Parent:   RootInodeNumber,
	})

	root := &TreeNode{Inode: RootInodeNumber, Name: "root", IsDir: true}
	if err := w.walkDir(RootInodeNumber, root, "", false); err != nil {
		return nil, xerrors.Errorf("failed to walk root: %w", err)
	}
	return root, nil
}

type walker struct {
	img  *Image
	idx  *ReferenceIndex
	opts ScanOptions
	logf Logger
}

func (w *walker) log(format string, args ...interface{}) {
	if w.logf != nil {
		w.logf(format, args...)
	}
}

// walkDir processes every data block of directory inode dirInode (direct
// blocks, then single/double/triple indirect), then recurses into every
// directory child discovered across all of them. Whether a child is a
// directory is decided by its record's file-type byte, not by re-reading
// the child inode's mode bit; the two disagree only in corrupted images,
// and the record's classification wins for descent.
func (w *walker) walkDir(dirInode uint32, node *TreeNode, path string, insideGhost bool) error {
	inode, err := w.img.ReadInode(dirInode)
	if err != nil {
		w.log("histext2fs: failed to read inode %d: %v", dirInode, err)
		return nil
	}

	blocks := w.directoryBlocks(inode)

	var liveAll, ghostAll []childRef
	for _, blockNum := range blocks {
		buf, err := w.img.ReadBlock(blockNum)
		if err != nil {
			w.log("histext2fs: failed to read directory block %d of inode %d: %v", blockNum, dirInode, err)
			continue
		}
		live, ghosts := w.scanBlock(buf, dirInode, path)
		liveAll = append(liveAll, live...)
		ghostAll = append(ghostAll, ghosts...)
	}

	// Directory children first (recursed in discovery order), then
	// non-directory children, then ghosts. The renderer emits children in
	// exactly this order.
	for _, c := range liveAll {
		if !c.isDir {
			continue
		}
		child := &TreeNode{Inode: c.inode, Name: c.name, IsDir: true, Ghost: insideGhost}
		node.Children = append(node.Children, child)
		if err := w.walkDir(c.inode, child, joinPath(path, c.name), insideGhost); err != nil {
			return err
		}
	}

	for _, c := range liveAll {
		if c.isDir {
			continue
		}
		if insideGhost {
			// Registered in the index already; not part of the live
			// tree so must not be rendered as if it were.
			continue
		}
		node.Children = append(node.Children, &TreeNode{Inode: c.inode, Name: c.name, IsDir: false})
	}

	for _, g := range ghostAll {
		if g.isDir {
			child := &TreeNode{Inode: g.inode, Name: g.name, IsDir: true, Ghost: true}
			node.Children = append(node.Children, child)
			if err := w.walkDir(g.inode, child, joinPath(path, g.name), true); err != nil {
				return err
			}
			continue
		}
		node.Children = append(node.Children, &TreeNode{Inode: g.inode, Name: g.name, IsDir: false, Ghost: true})
	}

	return nil
}

// directoryBlocks enumerates every data block of a directory inode in the
// fixed traversal order: up to 12 direct blocks (stopping at the first
// zero), then single-, double-, and triple-indirect.
func (w *walker) directoryBlocks(inode Inode) []uint32 {
	var blocks []uint32
	for _, b := range inode.DirectBlock {
		if b == 0 {
			break
		}
		blocks = append(blocks, b)
	}
	if inode.SingleIndirect != 0 {
		blocks = append(blocks, w.indirectBlocks(inode.SingleIndirect, 1)...)
	}
	if inode.DoubleIndirect != 0 {
		blocks = append(blocks, w.indirectBlocks(inode.DoubleIndirect, 2)...)
	}
	if inode.TripleIndirect != 0 {
		blocks = append(blocks, w.indirectBlocks(inode.TripleIndirect, 3)...)
	}
	return blocks
}

// indirectBlocks resolves one level-deep pointer block (level indicates how
// many levels of indirection remain above the data blocks it ultimately
// yields), stopping at the first zero pointer at every level.
func (w *walker) indirectBlocks(ptr uint32, level int) []uint32 {
	buf, err := w.img.ReadBlock(ptr)
	if err != nil {
		w.log("histext2fs: failed to read indirect block %d: %v", ptr, err)
		return nil
	}

	var out []uint32
	count := len(buf) / 4
	for i := 0; i < count; i++ {
		p := binary.LittleEndian.Uint32(buf[i*4:])
		if p == 0 {
			break
		}
		if level == 1 {
			out = append(out, p)
		} else {
			out = append(out, w.indirectBlocks(p, level-1)...)
		}
	}
	return out
}

// scanBlock walks the active linked list of one directory block, registering
// every live reference and every slack-recovered ghost into the reference
// index, and returns the children to enqueue for recursion/emission.
// A ghost is suppressed only against the active set accumulated so far in
// this same forward pass; it is intentionally not rechecked against the
// block's final active set, so residue of a name that still appears live
// later in the block (a rename within one directory) is kept.
func (w *walker) scanBlock(buf []byte, dirInode uint32, path string) (live, ghosts []childRef) {
	activeSet := make(map[uint32]bool)
	offset := 0

	for {
		entry, ok, err := decodeLiveEntry(buf, offset)
		if err != nil {
			w.log("histext2fs: %v", err)
			break
		}
		if !ok {
			break
		}

		if entry.Inode != 0 && entry.Name != "." && entry.Name != ".." {
			activeSet[entry.Inode] = true
			childInode, err := w.img.ReadInode(entry.Inode)
			if err != nil {
				w.log("histext2fs: failed to read inode %d: %v", entry.Inode, err)
			} else {
				full := "/" + joinPath(path, entry.Name)
				w.idx.Record(entry.Inode, childInode, EntryRecord{
					FullPath: full,
					Name:     entry.Name,
					Parent:   dirInode,
					Ghost:    false,
				})
				live = append(live, childRef{name: entry.Name, inode: entry.Inode, isDir: entry.FileType == DirEntryDirType})
			}
		}

		actual := actualSize(int(entry.NameLen))
		recLen := int(entry.RecLen)
		if recLen > actual {
			slackStart := offset + actual
			slack := recLen - actual
			for _, g := range scavengeGhosts(buf, slackStart, slack, w.opts) {
				if activeSet[g.Inode] {
					continue
				}
				childInode, err := w.img.ReadInode(g.Inode)
				if err != nil {
					w.log("histext2fs: failed to read inode %d: %v", g.Inode, err)
					continue
				}
				full := "/" + joinPath(path, g.Name)
				w.idx.Record(g.Inode, childInode, EntryRecord{
					FullPath: full,
					Name:     g.Name,
					Parent:   dirInode,
					Ghost:    true,
				})
				ghosts = append(ghosts, childRef{name: g.Name, inode: g.Inode, isDir: g.FileType == DirEntryDirType})
			}
		}

		offset += recLen
		if recLen == 0 || offset >= len(buf) {
			break
		}
	}

	return live, ghosts
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "/" + name
}
