package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/brindlefield/merkletree/persist"
)

var compactCmd = cli.Command{
	Action:    compactTree,
	Name:      "compact",
	Usage:     "rewrites the data file densely from the current leaves and truncates the WAL",
	ArgsUsage: "<directory>",
}

func compactTree(context *cli.Context) error {
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

	if err := t.Compact(); err != nil {
		return err
	}
	fmt.Printf("%x\n", t.Root())
	return nil
}
