// Package render persists the finished digest to disk.
package render

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hunkim/botmadang-digest/internal/logger"
)

// WriteDigestFile writes the digest markdown under outputDir as
// {date}_digest.md, creating the directory if needed. Returns the written
// path.
func WriteDigestFile(content, outputDir, dateStr string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", outputDir, err)
	}

	path := filepath.Join(outputDir, fmt.Sprintf("%s_digest.md", dateStr))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing digest file: %w", err)
	}

	logger.Info("digest file written", "path", path, "bytes", len(content))
	return path, nil
}
