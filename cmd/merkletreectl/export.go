package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/brindlefield/merkletree/persist"
	"github.com/brindlefield/merkletree/serialize"
)

var exportCmd = cli.Command{
	Action:    exportTree,
	Name:      "export",
	Usage:     "serializes the current tree state with the configured format and compression",
	Flags:     []cli.Flag{&outFlag},
	ArgsUsage: "<directory>",
}

func exportTree(context *cli.Context) error {
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

	data, err := t.Serialize(serialize.Options{
		Format:           cfg.SerializationFormat,
		Compress:         cfg.CompressionEnabled,
		CompressionLevel: cfg.CompressionLevel,
	})
	if err != nil {
		return err
	}

	out := context.String(outFlag.Name)
	if out == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %d bytes to %s\n", len(data), out)
	return nil
}
