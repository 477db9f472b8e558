package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/brindlefield/merkletree/persist"
)

var openCmd = cli.Command{
	Action:    openTree,
	Name:      "open",
	Usage:     "creates the directory if absent and reports its current state",
	ArgsUsage: "<directory>",
}

func openTree(context *cli.Context) error {
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
	defer t.Close()

	fmt.Printf("directory:  %s\n", dir)
	fmt.Printf("depth:      %d\n", t.Depth())
	fmt.Printf("next_index: %d\n", t.NextIndex())
	fmt.Printf("root:       %x\n", t.Root())
	return nil
}
