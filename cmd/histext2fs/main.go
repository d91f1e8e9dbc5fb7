// Command histext2fs reads an ext2-style filesystem image and emits two
// text files: a reconstructed directory tree (live entries plus ghosts
// recovered from directory-block slack) and a best-effort log of the
// filesystem operations inferred from inode timestamps and ghost residue.
//
// Usage:
//
//	histext2fs <image> <state_output> <history_output>
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/amulay/histext2fs/ext2fs"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: histext2fs <image> <state_output> <history_output>\n")
	os.Exit(1)
}

func main() {
	log.SetPrefix("histext2fs: ")
	log.SetFlags(0)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) != 3 {
		usage()
	}

	if err := run(args[0], args[1], args[2]); err != nil {
		log.Fatal(err)
	}
}

// run wraps every fatal failure with the path or stage it happened at.
func run(imagePath, statePath, historyPath string) error {
	img, err := ext2fs.Open(imagePath)
	if err != nil {
		return errors.Wrapf(err, "open %s", imagePath)
	}
	defer img.Close()

	idx := ext2fs.NewReferenceIndex()
	root, err := ext2fs.Walk(img, idx, ext2fs.ScanOptions{}, log.Printf)
	if err != nil {
		return errors.Wrap(err, "walk directory tree")
	}

	if err := writeTree(statePath, root); err != nil {
		return errors.Wrapf(err, "write state output %s", statePath)
	}

	actions := ext2fs.InferActions(img, idx)
	if err := writeHistory(historyPath, actions); err != nil {
		return errors.Wrapf(err, "write history output %s", historyPath)
	}

	return nil
}

func writeTree(path string, root *ext2fs.TreeNode) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ext2fs.RenderTree(f, root); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeHistory(path string, actions []ext2fs.Action) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ext2fs.RenderHistory(f, actions); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
