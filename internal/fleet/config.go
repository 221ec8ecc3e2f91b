// Package fleet turns a launch configuration document into a validated,
// ordered description of the node processes that make up a local test
// network.
package fleet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// DefaultChainName is used when a configuration does not name its chain.
const DefaultChainName = "local-chain"

// Config is the decoded, not yet validated, launch configuration.
type Config struct {
	Name       string       `json:"name,omitempty" toml:"name" yaml:"name,omitempty"`
	Docker     DockerConfig `json:"docker,omitempty" toml:"docker" yaml:"docker,omitempty"`
	Validators []NodeConfig `json:"validators" toml:"validators" yaml:"validators"`
	Collators  []NodeConfig `json:"collators" toml:"collators" yaml:"collators"`
}

// DockerConfig holds the images used when rendering deployment descriptors.
type DockerConfig struct {
	RelayImage    string `json:"relay_image,omitempty" toml:"relay_image" yaml:"relay_image,omitempty"`
	CollatorImage string `json:"collator_image,omitempty" toml:"collator_image" yaml:"collator_image,omitempty"`
}

// NodeConfig describes one validator or collator as written in the config file.
// A zero port means the port is not declared.
type NodeConfig struct {
	Name       string   `json:"name" toml:"name" yaml:"name"`
	Bin        string   `json:"bin" toml:"bin" yaml:"bin"`
	Chain      string   `json:"chain,omitempty" toml:"chain" yaml:"chain,omitempty"`
	Args       []string `json:"args,omitempty" toml:"args" yaml:"args,omitempty"`
	WorkingDir string   `json:"working_dir,omitempty" toml:"working_dir" yaml:"working_dir,omitempty"`
	Port       int      `json:"port,omitempty" toml:"port" yaml:"port,omitempty"`
	RPCPort    int      `json:"rpc_port,omitempty" toml:"rpc_port" yaml:"rpc_port,omitempty"`
	WSPort     int      `json:"ws_port,omitempty" toml:"ws_port" yaml:"ws_port,omitempty"`
	Image      string   `json:"image,omitempty" toml:"image" yaml:"image,omitempty"`

	// Collators only: the embedded relay-chain node.
	RelayPort int      `json:"relay_port,omitempty" toml:"relay_port" yaml:"relay_port,omitempty"`
	RelayArgs []string `json:"relay_args,omitempty" toml:"relay_args" yaml:"relay_args,omitempty"`
}

// Load reads a configuration file. The format is chosen by extension:
// .json (comments and trailing commas allowed), .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := Decode(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses data in the format named by ext (".json", ".toml", ".yaml", ".yml").
func Decode(ext string, data []byte) (*Config, error) {
	var cfg Config

	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, err
		}
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys: %v", undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q (expected .json, .toml, .yaml or .yml)", ErrInvalidConfig, ext)
	}

	if cfg.Name == "" {
		cfg.Name = DefaultChainName
	}
	return &cfg, nil
}
