package ext2fs

import (
	"fmt"
	"io"
	"strings"
)

// RenderTree writes the reconstructed directory snapshot in depth-first,
// pre-order form, one entry per line. Each line's dash count is depth+1
// (the root line itself carries one dash). A ghost entry — or anything
// below a ghost directory — is parenthesized. Children print in the
// order the walker established: directory children in discovery order,
// then files, then ghosts.
func RenderTree(w io.Writer, root *TreeNode) error {
	if _, err := fmt.Fprintf(w, "- %d:root/\n", root.Inode); err != nil {
		return err
	}
	return renderChildren(w, root, 1)
}

func renderChildren(w io.Writer, node *TreeNode, depth int) error {
	dashes := strings.Repeat("-", depth+1)

	for _, c := range node.Children {
		entry := fmt.Sprintf("%d:%s", c.Inode, c.Name)
		if c.IsDir {
			entry += "/"
		}
		if c.Ghost {
			entry = "(" + entry + ")"
		}
		line := dashes + " " + entry
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if c.IsDir {
			if err := renderChildren(w, c, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// RenderHistory writes the inferred action log, one action per line, in the
// order given (callers pass the already timestamp-sorted slice from
// InferActions). Each line is
//
//	<ts-or-?> <kind> [<args space-joined>] [<dirs space-joined>] [<inode>]
//
// Unknown fields (an unresolved path, parent directory, or move timestamp)
// render as "?".
func RenderHistory(w io.Writer, actions []Action) error {
	for _, a := range actions {
		if _, err := fmt.Fprintln(w, formatAction(a)); err != nil {
			return err
		}
	}
	return nil
}

func formatAction(a Action) string {
	ts := "?"
	if a.Timestamp != 0 {
		ts = fmt.Sprintf("%d", a.Timestamp)
	}

	args := make([]string, len(a.Args))
	for i, s := range a.Args {
		args[i] = orUnknown(s)
	}

	dirs := make([]string, len(a.Dirs))
	for i, d := range a.Dirs {
		if d == 0 {
			dirs[i] = "?"
		} else {
			dirs[i] = fmt.Sprintf("%d", d)
		}
	}

	return fmt.Sprintf("%s %s [%s] [%s] [%d]", ts, a.Kind, strings.Join(args, " "), strings.Join(dirs, " "), a.Inode)
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
