package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JonMunkholm/bomdiff/internal/core"
)

// readResult loads a comparison result saved by "bomdiff compare" or
// returned by the backend.
func readResult(path string) (*core.ComparisonResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return decodeResult(f, path)
}

func decodeResult(r io.Reader, name string) (*core.ComparisonResult, error) {
	var result core.ComparisonResult
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode comparison result %s: %w", name, err)
	}
	if !result.Consistent() {
		slog.Warn("summary counts disagree with part lists, resyncing", "file", name)
		result.Resync()
	}
	return &result, nil
}

// writeResult writes result as indented JSON.
func writeResult(w io.Writer, result *core.ComparisonResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
