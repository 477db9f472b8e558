package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/brindlefield/merkletree/persist"
)

var updateCmd = cli.Command{
	Action:    updateLeaf,
	Name:      "update",
	Usage:     "replaces the data at an already-appended index",
	ArgsUsage: "<directory> <index> <data>",
}

func updateLeaf(context *cli.Context) error {
	if context.Args().Len() != 3 {
		return fmt.Errorf("expected exactly 3 arguments: <directory> <index> <data>")
	}
	dir := context.Args().Get(0)
	index, err := strconv.ParseUint(context.Args().Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", context.Args().Get(1), err)
	}
	data := context.Args().Get(2)

	cfg, err := buildConfig(context, dir)
	if err != nil {
		return err
	}
	t, err := persist.Open(cfg)
	if err != nil {
		return err
	}
	defer t.Close()

	if err := t.Update(index, []byte(data)); err != nil {
		return err
	}
	fmt.Printf("%x\n", t.Root())
	return nil
}
