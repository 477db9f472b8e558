package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/brindlefield/merkletree/hash"
	"github.com/brindlefield/merkletree/persist"
	"github.com/brindlefield/merkletree/tree"
)

var verifyCmd = cli.Command{
	Action:    verifyProof,
	Name:      "verify",
	Usage:     "checks a leaf/index/siblings proof against a root, defaulting the root to the tree's current one",
	Flags:     []cli.Flag{&rootFlag},
	ArgsUsage: "<directory> <index> <leaf-hex> <sibling-hex>...",
}

func verifyProof(context *cli.Context) error {
	if context.Args().Len() < 3 {
		return fmt.Errorf("expected at least 3 arguments: <directory> <index> <leaf-hex> [sibling-hex...]")
	}
	dir := context.Args().Get(0)
	index, err := strconv.ParseUint(context.Args().Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid index %q: %w", context.Args().Get(1), err)
	}
	leaf, err := parseDigest(context.Args().Get(2))
	if err != nil {
		return err
	}
	siblings := make([]hash.Digest, 0, context.Args().Len()-3)
	for i := 3; i < context.Args().Len(); i++ {
		d, err := parseDigest(context.Args().Get(i))
		if err != nil {
			return err
		}
		siblings = append(siblings, d)
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

	expectedRoot := t.Root()
	if rootHex := context.String(rootFlag.Name); rootHex != "" {
		expectedRoot, err = parseDigest(rootHex)
		if err != nil {
			return err
		}
	}

	if tree.VerifyProof(leaf, index, siblings, expectedRoot) {
		fmt.Println("valid")
		return nil
	}
	fmt.Println("invalid")
	return fmt.Errorf("proof does not verify against root %x", expectedRoot)
}
