// Package compose renders a fleet as a docker-compose file.
package compose

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/benaskins/pendulum-launch/internal/fleet"
)

// FileName is the name of the generated file.
const FileName = "docker-compose.yml"

const dataDir = "/data"

// Options configures Generate. Image options override the images in the
// fleet config; a per-node image overrides both.
type Options struct {
	OutDir        string
	EnableVolume  bool
	RelayImage    string
	CollatorImage string
}

// File is the top level of a compose document.
type File struct {
	Services yaml.Node `yaml:"services"`
}

// Service is one compose service.
type Service struct {
	Image         string   `yaml:"image"`
	ContainerName string   `yaml:"container_name"`
	Command       []string `yaml:"command,omitempty"`
	Ports         []string `yaml:"ports,omitempty"`
	Volumes       []string `yaml:"volumes,omitempty"`
	DependsOn     []string `yaml:"depends_on,omitempty"`
}

// Render builds the compose document for desc. Services appear in start
// order; collators depend on every validator.
func Render(desc *fleet.Descriptor, opts Options) ([]byte, error) {
	docker := desc.Docker()
	relayImage := firstNonEmpty(opts.RelayImage, docker.RelayImage)
	collatorImage := firstNonEmpty(opts.CollatorImage, docker.CollatorImage)

	var validators []string
	for _, n := range desc.Members() {
		if n.Role == fleet.RoleValidator {
			validators = append(validators, n.Name)
		}
	}

	services := yaml.Node{Kind: yaml.MappingNode}
	for _, n := range desc.Members() {
		svc := Service{
			ContainerName: desc.Name() + "-" + n.Name,
			Command:       slices.Clone(n.Args),
		}

		switch {
		case n.Image != "":
			svc.Image = n.Image
		case n.Role == fleet.RoleCollator:
			svc.Image = collatorImage
		default:
			svc.Image = relayImage
		}
		if svc.Image == "" {
			return nil, fmt.Errorf("no docker image for %s %q: set docker.%s_image or the node's image",
				n.Role, n.Name, imageKey(n.Role))
		}

		for _, p := range n.Ports {
			port := strconv.Itoa(p.Number)
			svc.Ports = append(svc.Ports, port+":"+port)
		}

		if opts.EnableVolume {
			svc.Volumes = []string{"./volumes/" + n.Name + ":" + dataDir}
			svc.Command = withBasePath(svc.Command)
		}

		if n.Role == fleet.RoleCollator {
			svc.DependsOn = slices.Clone(validators)
		}

		var value yaml.Node
		if err := value.Encode(svc); err != nil {
			return nil, fmt.Errorf("encoding service %s: %w", n.Name, err)
		}
		services.Content = append(services.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: n.Name},
			&value,
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(File{Services: services}); err != nil {
		return nil, fmt.Errorf("encoding compose file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Generate writes the compose file to opts.OutDir and returns its path.
// With volumes enabled, the per-node data directories are created too.
func Generate(desc *fleet.Descriptor, opts Options) (string, error) {
	if opts.OutDir == "" {
		return "", fmt.Errorf("generate compose: output directory is required")
	}
	if err := desc.CheckPorts(); err != nil {
		return "", err
	}

	data, err := Render(desc, opts)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	if opts.EnableVolume {
		for _, n := range desc.Members() {
			if err := os.MkdirAll(filepath.Join(opts.OutDir, "volumes", n.Name), 0755); err != nil {
				return "", fmt.Errorf("creating volume dir: %w", err)
			}
		}
	}

	path := filepath.Join(opts.OutDir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	slog.With("component", "compose").Info("wrote compose file",
		"path", path, "services", desc.Len(), "volumes", opts.EnableVolume)
	return path, nil
}

// withBasePath adds --base-path to the node's own arguments, ahead of any
// embedded relay-chain arguments after "--".
func withBasePath(args []string) []string {
	i := slices.Index(args, "--")
	if i < 0 {
		return append(args, "--base-path", dataDir)
	}
	return slices.Insert(args, i, "--base-path", dataDir)
}

func imageKey(r fleet.Role) string {
	if r == fleet.RoleCollator {
		return "collator"
	}
	return "relay"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
