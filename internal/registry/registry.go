// Package registry holds the static table of workflow services the
// orchestrator knows how to manage. The table is data, not code: adding a
// service means adding an entry, either here or in a services.yaml overlay.
package registry

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Tier is the startup priority bucket of a service.
type Tier int

const (
	TierEssential Tier = iota
	TierAdvanced
	TierOptional
)

var tierNames = map[Tier]string{
	TierEssential: "essential",
	TierAdvanced:  "advanced",
	TierOptional:  "optional",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier converts a tier name into a Tier.
func ParseTier(s string) (Tier, error) {
	for tier, name := range tierNames {
		if name == s {
			return tier, nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q (expected essential, advanced or optional)", s)
}

// UnmarshalYAML decodes a tier from its lowercase name.
func (t *Tier) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	tier, err := ParseTier(name)
	if err != nil {
		return err
	}
	*t = tier
	return nil
}

// MarshalYAML encodes a tier as its lowercase name.
func (t Tier) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// Service describes one managed workflow tool. Immutable after load.
type Service struct {
	Name        string `yaml:"name"`
	ComposeFile string `yaml:"compose_file,omitempty"`
	Port        int    `yaml:"port"`
	HealthPath  string `yaml:"health_path"`
	Tier        Tier   `yaml:"tier"`

	// Image is set for standalone services that run as a single container
	// straight from a local image instead of a compose file.
	Image string `yaml:"image,omitempty"`
}

// Standalone reports whether the service runs as a plain container rather
// than through a compose file.
func (s Service) Standalone() bool {
	return s.Image != "" && s.ComposeFile == ""
}

// URL is the local address the service is reachable at once ready.
func (s Service) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.Port)
}

// defaults is the built-in service table. Ports and health paths match the
// compose files shipped alongside the binary.
var defaults = []Service{
	{Name: "n8n", ComposeFile: "docker-compose.n8n.yml", Port: 5678, HealthPath: "/healthz", Tier: TierEssential},
	{Name: "tooljet", ComposeFile: "docker-compose.tooljet.yml", Port: 8082, HealthPath: "/api/health", Tier: TierEssential},
	{Name: "typebot", ComposeFile: "docker-compose.typebot.yml", Port: 8083, HealthPath: "/api/health", Tier: TierAdvanced},
	{Name: "langflow", Image: "langflowai/langflow", Port: 7860, HealthPath: "/health", Tier: TierAdvanced},
	{Name: "penpot", ComposeFile: "docker-compose.penpot.yml", Port: 9001, HealthPath: "/readyz", Tier: TierOptional},
}

// Registry is an immutable, validated set of service descriptors.
type Registry struct {
	services []Service
	byName   map[string]Service
}

// Default returns the built-in registry.
func Default() *Registry {
	reg, err := New(defaults)
	if err != nil {
		// The built-in table is validated by tests; a bad entry is a
		// programming error, not a runtime condition.
		panic(err)
	}
	return reg
}

// New builds a registry from an explicit service list.
func New(services []Service) (*Registry, error) {
	if err := validate(services); err != nil {
		return nil, err
	}
	byName := make(map[string]Service, len(services))
	for _, svc := range services {
		byName[svc.Name] = svc
	}
	return &Registry{services: services, byName: byName}, nil
}

// Load returns the built-in registry merged with the overlay file at path,
// if it exists. Overlay entries replace built-ins with the same name and
// append otherwise. A missing overlay file is not an error.
func Load(path string) (*Registry, error) {
	merged := make([]Service, len(defaults))
	copy(merged, defaults)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return New(merged)
			}
			return nil, fmt.Errorf("failed to read service overlay %s: %w", path, err)
		}
		var overlay struct {
			Services []Service `yaml:"services"`
		}
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return nil, fmt.Errorf("failed to parse service overlay %s: %w", path, err)
		}
		for _, svc := range overlay.Services {
			replaced := false
			for i := range merged {
				if merged[i].Name == svc.Name {
					merged[i] = svc
					replaced = true
					break
				}
			}
			if !replaced {
				merged = append(merged, svc)
			}
		}
	}

	return New(merged)
}

func validate(services []Service) error {
	names := make(map[string]bool, len(services))
	ports := make(map[int]string, len(services))
	for _, svc := range services {
		if svc.Name == "" {
			return fmt.Errorf("service with empty name")
		}
		if names[svc.Name] {
			return fmt.Errorf("duplicate service name %q", svc.Name)
		}
		names[svc.Name] = true

		if svc.Port < 1 || svc.Port > 65535 {
			return fmt.Errorf("service %s: invalid port %d", svc.Name, svc.Port)
		}
		if owner, taken := ports[svc.Port]; taken {
			return fmt.Errorf("service %s: port %d already used by %s", svc.Name, svc.Port, owner)
		}
		ports[svc.Port] = svc.Name

		if svc.ComposeFile == "" && svc.Image == "" {
			return fmt.Errorf("service %s: needs a compose_file or an image", svc.Name)
		}
		if svc.ComposeFile != "" && svc.Image != "" {
			return fmt.Errorf("service %s: compose_file and image are mutually exclusive", svc.Name)
		}
	}
	return nil
}

// Get looks up a service by name.
func (r *Registry) Get(name string) (Service, bool) {
	svc, ok := r.byName[name]
	return svc, ok
}

// ByTier returns the services of one tier in table order.
func (r *Registry) ByTier(tier Tier) []Service {
	var out []Service
	for _, svc := range r.services {
		if svc.Tier == tier {
			out = append(out, svc)
		}
	}
	return out
}

// All returns every service ordered essential first, then advanced, then
// optional, preserving table order within a tier.
func (r *Registry) All() []Service {
	out := make([]Service, len(r.services))
	copy(out, r.services)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Tier < out[j].Tier
	})
	return out
}

// Names returns every known service name in All() order.
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, svc := range all {
		names[i] = svc.Name
	}
	return names
}
