package config

import (
	"fmt"

	"github.com/marmos91/tcpfs/pkg/adapter"
	"github.com/marmos91/tcpfs/pkg/adapter/tcpfs"
	"github.com/marmos91/tcpfs/pkg/metrics"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// Parameters:
//   - cfg: The complete tcpfs configuration
//   - tcpfsMetrics: Optional tcpfs metrics collector (nil = no metrics)
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config, tcpfsMetrics metrics.TCPFSMetrics) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.TCPFS.Enabled {
		adapters = append(adapters, tcpfs.New(cfg.Adapters.TCPFS, tcpfsMetrics))
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
