package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	protocol "github.com/marmos91/tcpfs/internal/protocol/tcpfs"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	tcp := cfg.Adapters.TCPFS

	if !tcp.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if tcp.Address != "" && net.ParseIP(tcp.Address) == nil && tcp.Address != "localhost" {
		return fmt.Errorf("adapters.tcpfs.address: %q is not an IP address", tcp.Address)
	}

	if tcp.MaxObjectSize > protocol.MaxWireObjectSize {
		return fmt.Errorf("adapters.tcpfs.max_object_size: %s exceeds the wire limit of %s",
			humanize.IBytes(tcp.MaxObjectSize), humanize.IBytes(protocol.MaxWireObjectSize))
	}

	if cfg.Server.Metrics.Enabled && tcp.Port != 0 && cfg.Server.Metrics.Port == tcp.Port {
		return fmt.Errorf("server.metrics.port: %d already used by adapters.tcpfs", tcp.Port)
	}

	if cfg.GC.IsEnabled() && cfg.GC.GracePeriod < tcp.ReadTimeout {
		return fmt.Errorf("gc.grace_period (%s) must be at least adapters.tcpfs.read_timeout (%s)",
			cfg.GC.GracePeriod, tcp.ReadTimeout)
	}

	if cfg.Content.Type == "s3" {
		if _, ok := cfg.Content.S3["bucket"]; !ok {
			return fmt.Errorf("content.s3.bucket is required when content.type is s3")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		// Return the first validation error with context
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
