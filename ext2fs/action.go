package ext2fs

import "sort"

// Action is one inferred higher-level filesystem operation.
type Action struct {
	Timestamp uint32
	Kind      string // "mkdir", "touch", "rmdir", "rm", "mv"
	Args      []string
	Dirs      []uint32
	Inode     uint32
}

// resolved captures the classification of one inode's references produced
// by resolve: which entry is believed to be its creation name, its final
// name before removal, and any intermediate rename hop.
type resolved struct {
	liveCount, ghostCount                         int
	live, creation, deletion, otherGhost          *EntryRecord
	foundCreation, foundDeletion, foundOtherGhost bool
}

// engine threads the Image through the inference functions so parent
// directory timestamps can be looked up on demand.
type engine struct {
	img *Image
}

func (e *engine) parent(entry EntryRecord) Inode {
	inode, err := e.img.ReadInode(entry.Parent)
	if err != nil {
		return Inode{}
	}
	return inode
}

// InferActions converts the reference index into a timestamp-ordered
// sequence of inferred operations. Actions with unknown timestamps sort
// before every dated action.
func InferActions(img *Image, idx *ReferenceIndex) []Action {
	eng := &engine{img: img}
	var actions []Action

	for _, ino := range idx.InodeNumbers() {
		rec, ok := idx.Get(ino)
		if !ok {
			continue
		}
		r := eng.resolve(rec)
		actions = append(actions, eng.emit(ino, rec, r)...)
	}

	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Timestamp < actions[j].Timestamp
	})
	return actions
}

// resolve partitions an inode's entries into live/ghost counts and picks
// out the creation, deletion and intermediate-hop entries, branching on
// the (ghost count, live count) shape.
func (e *engine) resolve(rec *InodeRecord) resolved {
	var r resolved
	var live EntryRecord
	for _, entry := range rec.Entries {
		if entry.Ghost {
			r.ghostCount++
		} else {
			r.liveCount++
			live = entry
		}
	}
	if r.liveCount >= 1 {
		l := live
		r.live = &l
	}

	iAtime := rec.Inode.Atime
	iCtime := rec.Inode.Ctime
	iDtime := rec.Inode.Dtime

	switch {
	case r.ghostCount == 0 && r.liveCount == 1:
		r.creation = r.live
		r.foundCreation = true

	case r.ghostCount == 1 && r.liveCount == 1:
		for i, entry := range rec.Entries {
			if entry.Ghost {
				r.creation = &rec.Entries[i]
				r.foundCreation = true
				break
			}
		}

	case r.ghostCount == 2 && r.liveCount == 1:
		r.creation, r.foundCreation = e.findCreationAmongGhosts(rec, iAtime)
		if r.foundCreation {
			r.otherGhost, r.foundOtherGhost = e.otherGhost(rec, *r.creation)
		} else {
			livePMtime := e.parent(*r.live).Mtime
			for i, entry := range rec.Entries {
				if !entry.Ghost {
					continue
				}
				pm := e.parent(entry).Mtime
				if pm == livePMtime || pm == iCtime {
					r.otherGhost = &rec.Entries[i]
					r.foundOtherGhost = true
					break
				}
			}
			if r.foundOtherGhost {
				for i, entry := range rec.Entries {
					if entry.Ghost && entry != *r.otherGhost {
						r.creation = &rec.Entries[i]
						r.foundCreation = true
					}
				}
			}
		}

	case r.ghostCount > 2 && r.liveCount == 1:
		r.creation, r.foundCreation = e.findCreationAmongGhosts(rec, iAtime)

	case r.ghostCount == 1 && r.liveCount == 0:
		r.creation = &rec.Entries[0]
		r.deletion = &rec.Entries[0]
		r.foundCreation = true
		r.foundDeletion = true

	case r.ghostCount == 2 && r.liveCount == 0:
		r.creation, r.foundCreation = e.findCreationAll(rec, iAtime)
		if r.foundCreation {
			for i, entry := range rec.Entries {
				if entry.Ghost && entry != *r.creation {
					r.deletion = &rec.Entries[i]
					r.foundDeletion = true
				}
			}
		} else {
			r.deletion, r.foundDeletion = e.findDeletionAll(rec, iDtime)
			if r.foundDeletion {
				for i, entry := range rec.Entries {
					if entry != *r.deletion {
						r.creation = &rec.Entries[i]
						r.foundCreation = true
					}
				}
			}
		}

	case r.ghostCount > 2 && r.liveCount == 0:
		r.creation, r.foundCreation = e.findCreationAll(rec, iAtime)
		r.deletion, r.foundDeletion = e.findDeletionAll(rec, iDtime)
	}

	return r
}

// findCreationAmongGhosts applies the shared Creation-identification rule to
// the ghost entries of rec: (a) the first ghost whose parent's mtime exactly
// matches the inode's access_time, else (b) the unique ghost whose parent's
// atime precedes it — ambiguous when more than one candidate satisfies (b).
func (e *engine) findCreationAmongGhosts(rec *InodeRecord, iAtime uint32) (*EntryRecord, bool) {
	potentialCount := 0
	var potential *EntryRecord
	for i, entry := range rec.Entries {
		if !entry.Ghost {
			continue
		}
		p := e.parent(entry)
		if p.Mtime == iAtime {
			return &rec.Entries[i], true
		}
		if p.Atime < iAtime {
			potentialCount++
			potential = &rec.Entries[i]
		}
	}
	if potentialCount == 1 {
		return potential, true
	}
	return nil, false
}

// findCreationAll is findCreationAmongGhosts without the is-ghost filter,
// used when live_count == 0 (every entry is a ghost already).
func (e *engine) findCreationAll(rec *InodeRecord, iAtime uint32) (*EntryRecord, bool) {
	potentialCount := 0
	var potential *EntryRecord
	for i, entry := range rec.Entries {
		p := e.parent(entry)
		if p.Mtime == iAtime {
			return &rec.Entries[i], true
		}
		if p.Atime < iAtime {
			potentialCount++
			potential = &rec.Entries[i]
		}
	}
	if potentialCount == 1 {
		return potential, true
	}
	return nil, false
}

// findDeletionAll identifies Deletion among all of rec's entries: (a) the
// first whose parent's mtime exactly matches the inode's deletion_time,
// else (b) the unique entry whose parent's mtime exceeds it.
func (e *engine) findDeletionAll(rec *InodeRecord, iDtime uint32) (*EntryRecord, bool) {
	potentialCount := 0
	var potential *EntryRecord
	for i, entry := range rec.Entries {
		p := e.parent(entry)
		if p.Mtime == iDtime {
			return &rec.Entries[i], true
		}
		if p.Mtime > iDtime {
			potentialCount++
			potential = &rec.Entries[i]
		}
	}
	if potentialCount == 1 {
		return potential, true
	}
	return nil, false
}

// otherGhost returns the ghost entry of rec other than exclude, assuming
// exactly two ghosts are present (the G=2 case).
func (e *engine) otherGhost(rec *InodeRecord, exclude EntryRecord) (*EntryRecord, bool) {
	for i, entry := range rec.Entries {
		if entry.Ghost && entry != exclude {
			return &rec.Entries[i], true
		}
	}
	return nil, false
}

// emit produces the Action sequence for one inode: one creation event
// always, a deletion event when the inode's deletion time is set, and
// whatever rename hops the ghost residue supports.
func (e *engine) emit(ino uint32, rec *InodeRecord, r resolved) []Action {
	createKind, deleteKind := "touch", "rm"
	if rec.Inode.IsDir() {
		createKind, deleteKind = "mkdir", "rmdir"
	}

	var actions []Action

	create := Action{Timestamp: rec.Inode.Atime, Kind: createKind, Inode: ino}
	if r.foundCreation {
		create.Args = []string{r.creation.FullPath}
		create.Dirs = []uint32{r.creation.Parent}
	} else {
		create.Args = []string{""}
		create.Dirs = []uint32{0}
	}
	actions = append(actions, create)

	if r.ghostCount == 0 && rec.Inode.Dtime == 0 {
		return actions
	}

	if rec.Inode.Dtime != 0 {
		del := Action{Timestamp: rec.Inode.Dtime, Kind: deleteKind, Inode: ino}
		if r.foundDeletion {
			del.Args = []string{r.deletion.FullPath}
			del.Dirs = []uint32{r.deletion.Parent}
		} else {
			del.Args = []string{""}
			del.Dirs = []uint32{0}
		}
		actions = append(actions, del)

		switch {
		case r.ghostCount == 2 && r.foundCreation && r.foundDeletion:
			actions = append(actions, Action{
				Kind: "mv", Inode: ino,
				Args: []string{r.creation.FullPath, r.deletion.FullPath},
				Dirs: []uint32{r.creation.Parent, r.deletion.Parent},
			})

		case r.ghostCount > 1 && !r.foundCreation:
			if r.foundDeletion {
				actions = append(actions, Action{
					Kind: "mv", Inode: ino,
					Args: []string{"", r.deletion.FullPath},
					Dirs: []uint32{0, r.deletion.Parent},
				})
				for i, entry := range rec.Entries {
					if entry.Ghost && entry != *r.deletion {
						actions = append(actions, Action{
							Kind: "mv", Inode: ino,
							Args: []string{rec.Entries[i].FullPath, ""},
							Dirs: []uint32{rec.Entries[i].Parent, 0},
						})
					}
				}
			} else {
				for i, entry := range rec.Entries {
					if entry.Ghost && e.parent(entry).Mtime != rec.Inode.Dtime {
						actions = append(actions, Action{
							Kind: "mv", Inode: ino,
							Args: []string{rec.Entries[i].FullPath, ""},
							Dirs: []uint32{rec.Entries[i].Parent, 0},
						})
					}
				}
			}
		}
		return actions
	}

	// deletion_time == 0: the inode is still live, so remaining ghosts
	// describe rename hops into its current name.

	if r.live == nil {
		// Ghost references to an undeleted inode with no live reference
		// in any reachable directory (a hard link elsewhere, or a move
		// into an unreadable subtree). There is no current name to chain
		// the hops toward, so each ghost becomes a move to an unknown
		// destination.
		for i, entry := range rec.Entries {
			if !entry.Ghost {
				continue
			}
			actions = append(actions, Action{
				Kind: "mv", Inode: ino,
				Args: []string{rec.Entries[i].FullPath, ""},
				Dirs: []uint32{rec.Entries[i].Parent, 0},
			})
		}
		return actions
	}

	switch {
	case r.ghostCount == 1:
		var ts uint32
		if rec.Inode.Ctime != rec.Inode.Mtime {
			ts = rec.Inode.Ctime
		}
		e0, e1 := rec.Entries[0], rec.Entries[1]
		mv := Action{Kind: "mv", Inode: ino, Timestamp: ts, Dirs: []uint32{e0.Parent, e1.Parent}}
		if e0.Ghost {
			mv.Args = []string{e0.FullPath, e1.FullPath}
		} else {
			mv.Args = []string{e1.FullPath, e0.FullPath}
		}
		actions = append(actions, mv)

	case r.ghostCount == 2 && r.foundCreation && r.foundOtherGhost:
		actions = append(actions, Action{
			Kind: "mv", Inode: ino,
			Args: []string{r.creation.FullPath, r.otherGhost.FullPath},
			Dirs: []uint32{r.creation.Parent, r.otherGhost.Parent},
		})

		pOtherMtime := e.parent(*r.otherGhost).Mtime
		pLiveMtime := e.parent(*r.live).Mtime
		var ts uint32
		if pOtherMtime == pLiveMtime || pOtherMtime == rec.Inode.Ctime {
			ts = pOtherMtime
		} else if rec.Inode.Ctime != rec.Inode.Mtime {
			ts = rec.Inode.Ctime
		}
		actions = append(actions, Action{
			Kind: "mv", Inode: ino, Timestamp: ts,
			Args: []string{r.otherGhost.FullPath, r.live.FullPath},
			Dirs: []uint32{r.otherGhost.Parent, r.live.Parent},
		})

	default:
		matched := false
		livePMtime := e.parent(*r.live).Mtime
		for i, entry := range rec.Entries {
			if !entry.Ghost {
				continue
			}
			pm := e.parent(entry).Mtime
			if pm == livePMtime || pm == rec.Inode.Ctime {
				matched = true
				actions = append(actions, Action{
					Kind: "mv", Inode: ino, Timestamp: pm,
					Args: []string{rec.Entries[i].FullPath, r.live.FullPath},
					Dirs: []uint32{rec.Entries[i].Parent, r.live.Parent},
				})
			} else {
				actions = append(actions, Action{
					Kind: "mv", Inode: ino,
					Args: []string{rec.Entries[i].FullPath, ""},
					Dirs: []uint32{rec.Entries[i].Parent, 0},
				})
			}
		}
		if !matched {
			var ts uint32
			if rec.Inode.Ctime != rec.Inode.Mtime {
				ts = rec.Inode.Ctime
			}
			actions = append(actions, Action{
				Kind: "mv", Inode: ino, Timestamp: ts,
				Args: []string{"", r.live.FullPath},
				Dirs: []uint32{0, r.live.Parent},
			})
		}
	}

	return actions
}
