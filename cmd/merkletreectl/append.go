package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/brindlefield/merkletree/persist"
)

var appendCmd = cli.Command{
	Action:    appendLeaf,
	Name:      "append",
	Usage:     "appends a leaf holding data and prints its index",
	ArgsUsage: "<directory> <data>",
}

func appendLeaf(context *cli.Context) error {
	if context.Args().Len() != 2 {
		return fmt.Errorf("expected exactly 2 arguments: <directory> <data>")
	}
	dir := context.Args().Get(0)
	data := context.Args().Get(1)

	cfg, err := buildConfig(context, dir)
	if err != nil {
		return err
	}
	t, err := persist.Open(cfg)
	if err != nil {
		return err
	}
	defer t.Close()

	index, err := t.Append([]byte(data))
	if err != nil {
		return err
	}
	fmt.Println(index)
	return nil
}
