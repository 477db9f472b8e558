// Command merkletreectl operates a persistent Merkle tree directory from
// the shell: create or open one, append and update leaves, inspect the
// root, produce and check inclusion proofs, and force a sync or compact.
//
// Run using
//
//	go run ./cmd/merkletreectl <command> <flags>
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/brindlefield/merkletree/config"
	"github.com/brindlefield/merkletree/tree"
)

var (
	depthFlag = cli.IntFlag{
		Name:  "depth",
		Usage: "tree depth, must match the depth an existing directory was created with",
		Value: 20,
	}
	pageSizeFlag = cli.IntFlag{
		Name:  "page-size",
		Usage: "data file page size in bytes, must be a multiple of 33",
		Value: config.DefaultPageSizeBytes,
	}
	cacheBytesFlag = cli.IntFlag{
		Name:  "cache-bytes",
		Usage: "page cache budget in bytes",
		Value: 1 << 20,
	}
	mmapBytesFlag = cli.IntFlag{
		Name:  "mmap-bytes",
		Usage: "length of the memory-mapped hot region, 0 to disable, must be a multiple of 33",
		Value: config.DefaultMmapBytes,
	}
	noWALFlag = cli.BoolFlag{
		Name:  "no-wal",
		Usage: "disable the write-ahead log",
	}
	formatFlag = cli.StringFlag{
		Name:  "format",
		Usage: "serialization format: fast, portable or compact",
		Value: "fast",
	}
	compressFlag = cli.BoolFlag{
		Name:  "compress",
		Usage: "gzip-wrap serialized output",
	}
	compressLevelFlag = cli.IntFlag{
		Name:  "compress-level",
		Usage: "gzip level 0-9",
		Value: 6,
	}
	rootFlag = cli.StringFlag{
		Name:  "root",
		Usage: "expected root as hex, defaults to the tree's current root",
	}
	outFlag = cli.StringFlag{
		Name:  "out",
		Usage: "output file, defaults to stdout",
	}
)

func main() {
	app := &cli.App{
		Name:  "merkletreectl",
		Usage: "operate a persistent Merkle tree directory",
		Flags: []cli.Flag{
			&depthFlag, &pageSizeFlag, &cacheBytesFlag, &mmapBytesFlag,
			&noWALFlag, &formatFlag, &compressFlag, &compressLevelFlag,
		},
		Commands: []*cli.Command{
			&openCmd,
			&appendCmd,
			&updateCmd,
			&rootCmd,
			&proveCmd,
			&verifyCmd,
			&syncCmd,
			&compactCmd,
			&exportCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(tree.ExitCode(err))
	}
}
