// Package config loads the topology of a simulation from YAML.
//
// A topology lists components and the links between them. Every link is
// already resolved to a concrete pair of components; there is no pattern
// matching on names.
package config

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is a simulation topology.
type Config struct {
	Name        string       `yaml:"name"`
	Cycles      uint64       `yaml:"cycles"`
	Trace       bool         `yaml:"trace"`
	Components  []Component  `yaml:"components"`
	Connections []Connection `yaml:"connections"`
}

// Component declares one component.
type Component struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:"params"`
}

// Connection links a downstream port of Src to an upstream port of Dst.
type Connection struct {
	Src     string `yaml:"src"`
	Dst     string `yaml:"dst"`
	Latency int    `yaml:"latency"`

	// VCs are the capacities of the request channels at Dst.
	VCs []int `yaml:"vcs"`

	// ResponseVCs are the capacities of the response channels at Src.
	// They default to VCs.
	ResponseVCs []int `yaml:"response_vcs"`

	Priorities  []int `yaml:"priorities"`
	CreditBased bool  `yaml:"credit_based"`

	// Credits is the initial credit count of every channel. Zero uses the
	// channel capacity.
	Credits int `yaml:"credits"`
}

// Load reads and validates a topology file. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading topology")
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}

	return cfg, nil
}

// Parse decodes and validates a topology.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "parsing topology")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks names, references and link parameters.
func (c *Config) Validate() error {
	if len(c.Components) == 0 {
		return errors.New("topology has no components")
	}

	names := make(map[string]bool, len(c.Components))

	for i, comp := range c.Components {
		if comp.Name == "" {
			return errors.Errorf("component %d has no name", i)
		}

		if comp.Type == "" {
			return errors.Errorf("component %s has no type", comp.Name)
		}

		if names[comp.Name] {
			return errors.Errorf("component %s is declared twice", comp.Name)
		}

		names[comp.Name] = true
	}

	for i, conn := range c.Connections {
		if err := conn.validate(names); err != nil {
			return errors.Wrapf(err, "connection %d", i)
		}
	}

	return nil
}

func (conn *Connection) validate(names map[string]bool) error {
	if !names[conn.Src] {
		return errors.Errorf("unknown source %q", conn.Src)
	}

	if !names[conn.Dst] {
		return errors.Errorf("unknown destination %q", conn.Dst)
	}

	if conn.Src == conn.Dst {
		return errors.Errorf("%s is connected to itself", conn.Src)
	}

	if conn.Latency < 0 {
		return errors.Errorf("negative latency %d", conn.Latency)
	}

	if len(conn.VCs) == 0 {
		return errors.New("no virtual channels")
	}

	if err := positive("vcs", conn.VCs); err != nil {
		return err
	}

	if err := positive("response_vcs", conn.ResponseVCs); err != nil {
		return err
	}

	// Responses travel on the channel id of their request.
	if len(conn.ResponseVCs) > 0 && len(conn.ResponseVCs) < len(conn.VCs) {
		return errors.Errorf("%d response channels for %d request channels",
			len(conn.ResponseVCs), len(conn.VCs))
	}

	if len(conn.Priorities) > 0 && len(conn.Priorities) != len(conn.VCs) {
		return errors.Errorf("%d priorities for %d virtual channels",
			len(conn.Priorities), len(conn.VCs))
	}

	if conn.Credits < 0 {
		return errors.Errorf("negative credits %d", conn.Credits)
	}

	if conn.Credits > 0 && !conn.CreditBased {
		return errors.New("credits set on a link that is not credit based")
	}

	return nil
}

func positive(field string, capacities []int) error {
	for i, c := range capacities {
		if c <= 0 {
			return errors.Errorf("%s[%d] must be positive, got %d", field, i, c)
		}
	}

	return nil
}

// ResponseCapacities returns the response channel capacities of the link.
func (conn *Connection) ResponseCapacities() []int {
	if len(conn.ResponseVCs) > 0 {
		return conn.ResponseVCs
	}

	return conn.VCs
}
