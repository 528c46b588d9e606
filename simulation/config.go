package simulation

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vortexsim/vortex/params"
)

// A Config describes a partitioned simulation: the rank count, the sync
// period, the component instances with their rank assignment, and the
// links between them. All ranks load the identical file, so every rank
// derives the same cross-rank link ids from it.
type Config struct {
	Ranks    int    `yaml:"ranks"`
	Period   uint64 `yaml:"period"`
	StopTime uint64 `yaml:"stop_time"`

	Checkpoint CheckpointConfig `yaml:"checkpoint"`

	Components []ComponentConfig `yaml:"components"`
	Links      []LinkConfig      `yaml:"links"`
}

// CheckpointConfig selects periodic checkpointing. A zero interval
// disables it.
type CheckpointConfig struct {
	Interval uint64 `yaml:"interval"`
	Dir      string `yaml:"dir"`
}

// A ComponentConfig names one component instance.
type ComponentConfig struct {
	Name   string            `yaml:"name"`
	Type   string            `yaml:"type"`
	Rank   int               `yaml:"rank"`
	Params map[string]string `yaml:"params"`
}

// A LinkConfig connects a sender's outbound port to a link configured by
// the receiving component. From and To are "<component>.<port>".
type LinkConfig struct {
	Name    string `yaml:"name"`
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Latency uint64 `yaml:"latency"`
}

// LoadConfig reads and validates a topology file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return ParseConfig(data)
}

// ParseConfig parses and validates topology YAML.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing topology: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the structural rules a topology must satisfy before a
// rank is built from it.
func (c *Config) Validate() error {
	if c.Ranks < 1 {
		c.Ranks = 1
	}

	if c.Ranks > 1 && c.Period == 0 {
		return fmt.Errorf("a %d-rank topology needs a nonzero period",
			c.Ranks)
	}

	// Without a stop time a multi-rank job never quiesces: the sync
	// barrier reschedules itself forever.
	if c.Ranks > 1 && c.StopTime == 0 {
		return fmt.Errorf("a %d-rank topology needs a stop_time",
			c.Ranks)
	}

	compRank := make(map[string]int, len(c.Components))
	for _, comp := range c.Components {
		if comp.Name == "" || comp.Type == "" {
			return fmt.Errorf(
				"component %q needs both a name and a type", comp.Name)
		}

		if _, dup := compRank[comp.Name]; dup {
			return fmt.Errorf("duplicate component name %q", comp.Name)
		}

		if comp.Rank < 0 || comp.Rank >= c.Ranks {
			return fmt.Errorf(
				"component %q assigned to rank %d of %d",
				comp.Name, comp.Rank, c.Ranks)
		}

		compRank[comp.Name] = comp.Rank
	}

	linkNames := make(map[string]bool, len(c.Links))
	for _, link := range c.Links {
		if link.Name == "" {
			return fmt.Errorf("link %s -> %s needs a name",
				link.From, link.To)
		}

		if linkNames[link.Name] {
			return fmt.Errorf("duplicate link name %q", link.Name)
		}
		linkNames[link.Name] = true

		fromComp, _, err := splitEndpoint(link.From)
		if err != nil {
			return fmt.Errorf("link %q: %w", link.Name, err)
		}

		toComp, _, err := splitEndpoint(link.To)
		if err != nil {
			return fmt.Errorf("link %q: %w", link.Name, err)
		}

		fromRank, found := compRank[fromComp]
		if !found {
			return fmt.Errorf(
				"link %q: unknown component %q", link.Name, fromComp)
		}

		toRank, found := compRank[toComp]
		if !found {
			return fmt.Errorf(
				"link %q: unknown component %q", link.Name, toComp)
		}

		if fromRank != toRank {
			if link.Latency == 0 {
				return fmt.Errorf(
					"link %q crosses ranks %d and %d with zero latency",
					link.Name, fromRank, toRank)
			}

			if link.Latency < c.Period {
				return fmt.Errorf(
					"link %q: latency %d cycles is below the sync "+
						"period %d", link.Name, link.Latency, c.Period)
			}
		}
	}

	return nil
}

func splitEndpoint(endpoint string) (component, port string, err error) {
	parts := strings.SplitN(endpoint, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf(
			"endpoint %q is not of the form component.port", endpoint)
	}

	return parts[0], parts[1], nil
}

// ComponentParams returns a component's parameter dictionary.
func (c *ComponentConfig) ComponentParams() params.Params {
	p := make(params.Params, len(c.Params))
	for k, v := range c.Params {
		p[k] = v
	}

	return p
}
