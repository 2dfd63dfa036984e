package indexer

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

// headerBytes is how much of a file contributes to its id.
const headerBytes = 16 * 1024 * 1024

// VideoID returns the lowercase hex XXH3-128 digest of the first 16 MiB of
// the file at path (the whole file when it is shorter).
func VideoID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return videoIDFrom(f)
}

func videoIDFrom(r io.Reader) (string, error) {
	h := xxh3.New()
	if _, err := io.Copy(h, io.LimitReader(r, headerBytes)); err != nil {
		return "", fmt.Errorf("failed to read video header: %w", err)
	}
	sum := h.Sum128().Bytes()
	return hex.EncodeToString(sum[:]), nil
}
