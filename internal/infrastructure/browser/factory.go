// Package browser provides the browsing capability implementations:
// a chromedp-driven real Chrome and an in-memory stub for tests and
// dry runs.
package browser

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/trafficsim/backend/internal/domain/traffic"
	"github.com/trafficsim/backend/internal/infrastructure/config"
)

// New creates the capability selected by the browser configuration
func New(cfg *config.BrowserConfig, logger *zap.Logger) (traffic.Capability, error) {
	switch cfg.Engine {
	case "chromedp", "":
		return NewChromeCapability(ChromeConfig{
			ExecPath:  cfg.ExecPath,
			NoSandbox: cfg.NoSandbox,
			Logger:    logger,
		}), nil
	case "stub":
		return NewStubCapability(nil), nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", cfg.Engine)
	}
}
