package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Iteration modes
const (
	IterationLedger = "ledger"
	IterationTime   = "time"
	IterationNone   = "none"
)

// IterationConfig bounds each run of the harness
type IterationConfig struct {
	Type                 string `yaml:"type"`
	MaxIterations        int    `yaml:"max_iterations"`
	MaxLedgerSeq         int    `yaml:"max_ledger_seq"`
	TimeoutSeconds       int    `yaml:"timeout_seconds"`
	LedgerTimeoutSeconds int    `yaml:"ledger_timeout_seconds"`
	MaxStallObservations int    `yaml:"max_stall_observations"`
}

// Timeout returns the wall clock bound of a run
func (c IterationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LedgerTimeout returns the bound on the time between two validated ledgers
func (c IterationConfig) LedgerTimeout() time.Duration {
	return time.Duration(c.LedgerTimeoutSeconds) * time.Second
}

// SubsetGroups is the list of receiver groups of one sender. A flat list
// in the config file is read as a single group.
type SubsetGroups [][]int

func (s *SubsetGroups) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("subsets must be a list, got %s", node.ShortTag())
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.ScalarNode {
		var flat []int
		if err := node.Decode(&flat); err != nil {
			return err
		}
		*s = SubsetGroups{flat}
		return nil
	}
	var groups [][]int
	if err := node.Decode(&groups); err != nil {
		return err
	}
	*s = groups
	return nil
}

// StrategyConfig holds the options shared by all strategies. Strategy
// specific values stay in Params until the strategy decodes them.
type StrategyConfig struct {
	Seed               *uint64              `yaml:"seed"`
	AutoPartition      bool                 `yaml:"auto_partition"`
	AutoParseIdentical bool                 `yaml:"auto_parse_identical"`
	AutoParseSubsets   bool                 `yaml:"auto_parse_subsets"`
	KeepActionLog      bool                 `yaml:"keep_action_log"`
	Subsets            map[int]SubsetGroups `yaml:"subsets"`
	Iteration          IterationConfig      `yaml:"iteration"`
	Params             yaml.Node            `yaml:"params"`
}

// DefaultStrategyConfig returns the values used for keys missing from a file
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		AutoPartition:      true,
		AutoParseIdentical: true,
		AutoParseSubsets:   true,
		KeepActionLog:      true,
		Iteration: IterationConfig{
			Type:                 IterationLedger,
			MaxIterations:        1,
			MaxLedgerSeq:         10,
			TimeoutSeconds:       300,
			LedgerTimeoutSeconds: 60,
		},
	}
}

// ParseStrategyConfig reads a strategy configuration file on top of the defaults
func ParseStrategyConfig(cfgPath string) (*StrategyConfig, error) {
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return &StrategyConfig{}, err
	}
	cfg := DefaultStrategyConfig()
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return &StrategyConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return &StrategyConfig{}, err
	}

	return &cfg, nil
}

// Validate checks the iteration bounds
func (c *StrategyConfig) Validate() error {
	it := c.Iteration
	switch it.Type {
	case IterationLedger:
		if it.MaxLedgerSeq <= 0 {
			return configErrorf("iteration.max_ledger_seq", "must be positive for ledger iterations")
		}
		if it.LedgerTimeoutSeconds <= 0 {
			return configErrorf("iteration.ledger_timeout_seconds", "must be positive for ledger iterations")
		}
	case IterationTime:
		if it.TimeoutSeconds <= 0 {
			return configErrorf("iteration.timeout_seconds", "must be positive for time iterations")
		}
	case IterationNone:
		if it.TimeoutSeconds <= 0 {
			return configErrorf("iteration.timeout_seconds", "must be positive")
		}
	default:
		return configErrorf("iteration.type", "unknown iteration type %q", it.Type)
	}
	if it.MaxIterations <= 0 {
		return configErrorf("iteration.max_iterations", "must be positive, got %d", it.MaxIterations)
	}
	if it.MaxStallObservations < 0 || it.LedgerTimeoutSeconds < 0 || it.TimeoutSeconds < 0 {
		return configErrorf("iteration", "bounds must not be negative")
	}
	for sender, groups := range c.Subsets {
		if sender < 0 {
			return configErrorf("subsets", "sender id %d is negative", sender)
		}
		for _, group := range groups {
			for _, id := range group {
				if id < 0 {
					return configErrorf("subsets", "receiver id %d is negative", id)
				}
			}
		}
	}
	return nil
}

// DecodeParams decodes the strategy specific values into out. Missing
// params leave out untouched.
func (c *StrategyConfig) DecodeParams(out any) error {
	if c.Params.Kind == 0 {
		return nil
	}
	if err := c.Params.Decode(out); err != nil {
		return configErrorf("params", "%v", err)
	}
	return nil
}

// ParseOverrides parses overrides of the form "KEY1=VALUE1,KEY2=VALUE2"
func ParseOverrides(s string) (map[string]string, error) {
	overrides := make(map[string]string)
	if strings.TrimSpace(s) == "" {
		return overrides, nil
	}
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, configErrorf("overrides", "invalid override %q, expected KEY=VALUE", pair)
		}
		overrides[key] = strings.TrimSpace(value)
	}
	return overrides, nil
}

// ApplyOverrides replaces or adds params values. Values are resolved like
// plain YAML scalars so "0.5" stays a float and "true" a bool.
func (c *StrategyConfig) ApplyOverrides(overrides map[string]string) {
	if len(overrides) == 0 {
		return
	}
	if c.Params.Kind == 0 {
		c.Params = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	for key, value := range overrides {
		replaced := false
		for i := 0; i+1 < len(c.Params.Content); i += 2 {
			if c.Params.Content[i].Value == key {
				c.Params.Content[i+1] = overrideNode(value)
				replaced = true
				break
			}
		}
		if !replaced {
			c.Params.Content = append(c.Params.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				overrideNode(value),
			)
		}
	}
}

func overrideNode(value string) *yaml.Node {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(value), &doc); err == nil && doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		return doc.Content[0]
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Value: value}
}
