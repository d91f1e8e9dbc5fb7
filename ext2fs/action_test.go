package ext2fs

import "testing"

// buildTwoParentImage returns a synthetic image with two directory inodes
// (2 and 30) carrying distinct timestamps, used to exercise the Creation
// rule's cross-directory comparisons directly against a hand-built
// ReferenceIndex rather than through a full directory-block scan.
func buildTwoParentImage(t *testing.T) *Image {
	b := newSyntheticImage()
	b.mustSetInode(t, RootInodeNumber, Inode{Mode: ModeDir | 0755, Mtime: 500, Atime: 500})
	b.mustSetInode(t, 30, Inode{Mode: ModeDir | 0755, Mtime: 999, Atime: 10})
	return b.build(t)
}

func TestInferActionsSimpleCreateNoGhosts(t *testing.T) {
	b := newSyntheticImage()
	b.mustSetInode(t, RootInodeNumber, Inode{Mode: ModeDir | 0755})
	b.mustSetInode(t, 11, Inode{Mode: 0100644, Atime: 42})
	img := b.build(t)

	idx := NewReferenceIndex()
	idx.Record(11, mustInode(img, t, 11), EntryRecord{FullPath: "/a", Name: "a", Parent: RootInodeNumber})

	actions := InferActions(img, idx)
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1: %+v", len(actions), actions)
	}
	if actions[0].Kind != "touch" || actions[0].Timestamp != 42 || actions[0].Args[0] != "/a" {
		t.Errorf("unexpected action: %+v", actions[0])
	}
}

func TestInferActionsCreationRuleExactMatchWins(t *testing.T) {
	img := buildTwoParentImage(t)

	target := Inode{Mode: 0100644, Atime: 500, Mtime: 700, Ctime: 700, Dtime: 0}

	idx := NewReferenceIndex()
	idx.Record(70, target, EntryRecord{FullPath: "/cur", Name: "cur", Parent: RootInodeNumber})
	idx.Record(70, target, EntryRecord{FullPath: "/old1", Name: "old1", Parent: RootInodeNumber, Ghost: true})
	idx.Record(70, target, EntryRecord{FullPath: "/old2", Name: "old2", Parent: 30, Ghost: true})

	actions := InferActions(img, idx)
	if len(actions) != 3 {
		t.Fatalf("got %d actions, want 3: %+v", len(actions), actions)
	}

	var touch *Action
	var moves []Action
	for i := range actions {
		if actions[i].Kind == "touch" {
			touch = &actions[i]
		} else {
			moves = append(moves, actions[i])
		}
	}
	if touch == nil {
		t.Fatal("expected exactly one touch action")
	}
	if touch.Timestamp != 500 || touch.Args[0] != "/old1" {
		t.Errorf("touch = %+v, want timestamp 500 and creation path /old1 (exact P.mtime==I.atime match)", *touch)
	}
	if len(moves) != 2 {
		t.Fatalf("got %d mv actions, want 2", len(moves))
	}
	if moves[0].Args[0] != "/old1" || moves[0].Args[1] != "/old2" {
		t.Errorf("first mv = %+v, want [/old1 /old2]", moves[0])
	}
	if moves[1].Args[0] != "/old2" || moves[1].Args[1] != "/cur" {
		t.Errorf("second mv = %+v, want [/old2 /cur]", moves[1])
	}
}

func TestInferActionsCreateRenameDeleteSameDirectory(t *testing.T) {
	b := newSyntheticImage()
	// Both ghosts share the same parent directory, so the exact-match rule
	// is satisfied by whichever ghost the forward pass reaches first.
	b.mustSetInode(t, RootInodeNumber, Inode{Mode: ModeDir | 0755, Mtime: 100})
	target := Inode{Mode: 0100644, Atime: 100, Dtime: 400}
	b.mustSetInode(t, 60, target)
	img := b.build(t)

	idx := NewReferenceIndex()
	idx.Record(60, target, EntryRecord{FullPath: "/c", Name: "c", Parent: RootInodeNumber, Ghost: true})
	idx.Record(60, target, EntryRecord{FullPath: "/d", Name: "d", Parent: RootInodeNumber, Ghost: true})

	actions := InferActions(img, idx)
	var touch, del *Action
	for i := range actions {
		switch actions[i].Kind {
		case "touch":
			touch = &actions[i]
		case "rm":
			del = &actions[i]
		}
	}
	if touch == nil || del == nil {
		t.Fatalf("expected a touch and an rm action, got %+v", actions)
	}
	if touch.Args[0] != "/c" {
		t.Errorf("touch.Args = %v, want [/c] (first ghost in discovery order)", touch.Args)
	}
	if del.Args[0] != "/d" {
		t.Errorf("rm.Args = %v, want [/d] (the remaining ghost)", del.Args)
	}
}

func mustInode(img *Image, t *testing.T, num uint32) Inode {
	inode, err := img.ReadInode(num)
	if err != nil {
		t.Fatalf("ReadInode(%d): %v", num, err)
	}
	return inode
}
