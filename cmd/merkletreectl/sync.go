package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/brindlefield/merkletree/persist"
)

var syncCmd = cli.Command{
	Action:    syncTree,
	Name:      "sync",
	Usage:     "flushes the page cache and mmap, writes a metadata record, and truncates the WAL",
	ArgsUsage: "<directory>",
}

func syncTree(context *cli.Context) error {
	dir, err := requireDir(context)
	if err != nil {
		return err
	}
	cfg, err := buildConfig(context, dir)
	if err != nil {
		return err
	}
	t, err := persist.Open(cfg)
	if err != nil {
		return err
	}
	if err := t.Sync(); err != nil {
		_ = t.Close()
		return err
	}
	root := t.Root()
	if err := t.Close(); err != nil {
		return err
	}
	fmt.Printf("%x\n", root)
	return nil
}
