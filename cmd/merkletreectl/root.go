package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/brindlefield/merkletree/persist"
)

var rootCmd = cli.Command{
	Action:    printRoot,
	Name:      "root",
	Usage:     "prints the current root digest as hex",
	ArgsUsage: "<directory>",
}

func printRoot(context *cli.Context) error {
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

	fmt.Printf("%x\n", t.Root())
	return nil
}
