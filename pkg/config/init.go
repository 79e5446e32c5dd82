package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

const configHeader = `# tcpfs Configuration File
#
# Every value can be overridden with an environment variable named after its
# key with a TCPFS_ prefix, e.g. TCPFS_LOGGING_LEVEL=DEBUG or
# TCPFS_ADAPTERS_TCPFS_PORT=7171.
#
# Durations use Go syntax (30s, 5m, 1h). Sizes accept humanized forms
# (512MiB, 1 GB).`

// InitConfig writes a default configuration file to the default location.
//
// Returns the path of the written file. Fails if a file already exists
// there, unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// field is one commented key of a generated mapping.
type field struct {
	key     string
	comment string
	value   *yaml.Node
}

// generateYAMLWithComments renders cfg as YAML with a comment above each key.
func generateYAMLWithComments(cfg *Config) (string, error) {
	tcp := cfg.Adapters.TCPFS

	root := mapping(
		field{key: "logging", comment: "Log output settings", value: mapping(
			field{key: "level", comment: "DEBUG, INFO, WARN or ERROR", value: scalar(cfg.Logging.Level)},
			field{key: "format", comment: "text or json", value: scalar(cfg.Logging.Format)},
			field{key: "output", comment: "stdout, stderr or a file path", value: scalar(cfg.Logging.Output)},
		)},
		field{key: "server", comment: "Server-wide settings", value: mapping(
			field{key: "shutdown_timeout", comment: "Upper bound for a graceful shutdown", value: scalar(cfg.Server.ShutdownTimeout)},
			field{key: "implicit_namespaces", comment: "Create unknown namespaces on first upload", value: scalar(cfg.Server.ImplicitNamespacesEnabled())},
			field{key: "metrics", comment: "Prometheus endpoint at /metrics", value: mapping(
				field{key: "enabled", value: scalar(cfg.Server.Metrics.Enabled)},
				field{key: "port", value: scalar(cfg.Server.Metrics.Port)},
			)},
		)},
		field{key: "metadata", comment: "Metadata index: sqlite or badger", value: mapping(
			field{key: "type", value: scalar(cfg.Metadata.Type)},
			field{key: "sqlite", value: options(cfg.Metadata.SQLite)},
			field{key: "badger", value: options(cfg.Metadata.Badger)},
		)},
		field{key: "content", comment: "Object bytes: filesystem, s3 or memory", value: mapping(
			field{key: "type", value: scalar(cfg.Content.Type)},
			field{key: "filesystem", value: options(cfg.Content.Filesystem)},
			field{key: "s3", comment: "region, bucket, endpoint, key_prefix, access_key_id, secret_access_key", value: options(cfg.Content.S3)},
		)},
		field{key: "gc", comment: "Removal of stored bytes no index row references", value: mapping(
			field{key: "enabled", value: scalar(cfg.GC.IsEnabled())},
			field{key: "interval", value: scalar(cfg.GC.Interval)},
			field{key: "grace_period", comment: "Must exceed the longest expected upload", value: scalar(cfg.GC.GracePeriod)},
			field{key: "batch_size", value: scalar(cfg.GC.BatchSize)},
			field{key: "run_timeout", value: scalar(cfg.GC.RunTimeout)},
			field{key: "dry_run", value: scalar(cfg.GC.DryRun)},
		)},
		field{key: "adapters", comment: "Protocol adapters", value: mapping(
			field{key: "tcpfs", value: mapping(
				field{key: "enabled", value: scalar(tcp.Enabled)},
				field{key: "address", comment: "Interface to bind; empty binds all", value: scalar(tcp.Address)},
				field{key: "port", value: scalar(tcp.Port)},
				field{key: "max_connections", comment: "0 means unlimited", value: scalar(tcp.MaxConnections)},
				field{key: "accept_rate", comment: "New connections per second; 0 means unlimited", value: scalar(tcp.AcceptRate)},
				field{key: "accept_burst", value: scalar(tcp.AcceptBurst)},
				field{key: "read_timeout", comment: "Per-read socket timeout", value: scalar(tcp.ReadTimeout)},
				field{key: "write_timeout", comment: "Per-write socket timeout", value: scalar(tcp.WriteTimeout)},
				field{key: "shutdown_timeout", value: scalar(tcp.ShutdownTimeout)},
				field{key: "max_path_length", value: scalar(tcp.MaxPathLength)},
				field{key: "max_object_size", comment: "Largest accepted upload (at most 4 GiB)", value: scalar(humanize.IBytes(tcp.MaxObjectSize))},
				field{key: "metrics_log_interval", value: scalar(tcp.MetricsLogInterval)},
			)},
		)},
	)

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: configHeader,
		Content:     []*yaml.Node{root},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return buf.String(), nil
}

func mapping(fields ...field) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fields {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.key}
		if f.comment != "" {
			key.HeadComment = "# " + f.comment
		}
		node.Content = append(node.Content, key, f.value)
	}
	return node
}

// options renders a store-specific map with sorted keys.
func options(m map[string]any) *yaml.Node {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, field{key: k, value: scalar(m[k])})
	}
	node := mapping(fields...)
	if len(fields) == 0 {
		node.Style = yaml.FlowStyle
	}
	return node
}

func scalar(v any) *yaml.Node {
	node := &yaml.Node{Kind: yaml.ScalarNode}
	switch x := v.(type) {
	case string:
		node.Tag, node.Value = "!!str", x
	case bool:
		node.Tag, node.Value = "!!bool", strconv.FormatBool(x)
	case int:
		node.Tag, node.Value = "!!int", strconv.Itoa(x)
	case uint32:
		node.Tag, node.Value = "!!int", strconv.FormatUint(uint64(x), 10)
	case uint64:
		node.Tag, node.Value = "!!int", strconv.FormatUint(x, 10)
	case float64:
		node.Tag, node.Value = "!!float", strconv.FormatFloat(x, 'g', -1, 64)
	case time.Duration:
		node.Tag, node.Value = "!!str", x.String()
	default:
		node.Tag, node.Value = "!!str", fmt.Sprint(x)
	}
	return node
}
