package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/brindlefield/merkletree/persist"
)

var proveCmd = cli.Command{
	Action:    proveLeaf,
	Name:      "prove",
	Usage:     "prints an inclusion proof for an index: labeled root, index, leaf and each sibling, one per line, digests in hex",
	ArgsUsage: "<directory> <index>",
}

func proveLeaf(context *cli.Context) error {
	if context.Args().Len() != 2 {
		return fmt.Errorf("expected exactly 2 arguments: <directory> <index>")
	}
	dir := context.Args().Get(0)
	index, err := strconv.ParseUint(context.Args().Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", context.Args().Get(1), err)
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

	proof, err := t.Prove(index)
	if err != nil {
		return err
	}
	fmt.Printf("root:  %x\n", t.Root())
	fmt.Printf("index: %d\n", proof.Index)
	fmt.Printf("leaf:  %x\n", proof.Leaf)
	for level, sibling := range proof.Siblings {
		fmt.Printf("sibling[%d]: %x\n", level, sibling)
	}
	return nil
}
