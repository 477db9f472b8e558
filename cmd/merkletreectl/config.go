package main

import (
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/brindlefield/merkletree/config"
	"github.com/brindlefield/merkletree/hash"
	"github.com/brindlefield/merkletree/serialize"
)

func requireDir(context *cli.Context) (string, error) {
	if context.Args().Len() < 1 {
		return "", fmt.Errorf("missing directory argument")
	}
	return context.Args().Get(0), nil
}

func buildConfig(context *cli.Context, dir string) (config.Config, error) {
	cfg := config.Default(dir)
	cfg.Depth = uint8(context.Int(depthFlag.Name))
	cfg.PageSizeBytes = context.Int(pageSizeFlag.Name)
	cfg.CacheBytes = context.Int(cacheBytesFlag.Name)
	cfg.MmapBytes = context.Int(mmapBytesFlag.Name)
	cfg.WALEnabled = !context.Bool(noWALFlag.Name)
	cfg.CompressionEnabled = context.Bool(compressFlag.Name)
	cfg.CompressionLevel = context.Int(compressLevelFlag.Name)

	format, err := parseFormat(context.String(formatFlag.Name))
	if err != nil {
		return config.Config{}, err
	}
	cfg.SerializationFormat = format

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func parseFormat(name string) (serialize.Format, error) {
	switch name {
	case "fast":
		return serialize.FormatFast, nil
	case "portable":
		return serialize.FormatPortable, nil
	case "compact":
		return serialize.FormatCompact, nil
	default:
		return 0, fmt.Errorf("unknown serialization format %q", name)
	}
}

func parseDigest(hexStr string) (hash.Digest, error) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil || len(raw) != hash.Size {
		return hash.Digest{}, fmt.Errorf("invalid hex digest %q", hexStr)
	}
	var d hash.Digest
	copy(d[:], raw)
	return d, nil
}
