package monitoring

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// AddRepositoryCheck checks the repository backend, typically the
// RepositoryFactory's Redis ping.
func (h *HealthChecker) AddRepositoryCheck(check func(ctx context.Context) error, timeout time.Duration) {
	h.AddCheck("repository", check, timeout)
}

// AddFFmpegCheck fails when the transcoder binary cannot be resolved.
func (h *HealthChecker) AddFFmpegCheck(path string, timeout time.Duration) {
	h.AddFFmpegCheckWith(path, exec.LookPath, timeout)
}

func (h *HealthChecker) AddFFmpegCheckWith(path string, lookPath func(string) (string, error), timeout time.Duration) {
	h.AddCheck("ffmpeg", func(ctx context.Context) error {
		if _, err := lookPath(path); err != nil {
			return fmt.Errorf("ffmpeg not found at %q: %w", path, err)
		}
		return nil
	}, timeout)
}
