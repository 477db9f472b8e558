package serialize

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/brindlefield/merkletree/tree"
)

// gzipCompress wraps a codec's output the same way Carmen's export tooling
// wraps its own snapshot writer, swapped from compress/gzip to
// klauspost/compress/gzip for its faster deflate implementation. level is
// 0-9 (gzip.NoCompression through gzip.BestCompression); package config
// supplies the default of 6 when a caller has not set one explicitly.
func gzipCompress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, tree.Wrap(tree.ErrInvalidArgument, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, tree.Wrap(tree.ErrIO, err)
	}
	if err := w.Close(); err != nil {
		return nil, tree.Wrap(tree.ErrIO, err)
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, tree.Wrap(tree.ErrCorruption, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, tree.Wrap(tree.ErrCorruption, err)
	}
	return out, nil
}
