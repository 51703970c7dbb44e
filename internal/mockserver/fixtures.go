package mockserver

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_fixtures.yaml
var defaultFixturesYAML []byte

// Fixtures is the data the fake upstream serves.
type Fixtures struct {
	// Lists maps a list name ("topstories") to its ids.
	Lists map[string][]int64 `yaml:"lists"`
	// Items maps an id to the item object.
	Items map[int64]map[string]any `yaml:"items"`
	// Users maps a user id to the user object.
	Users map[string]map[string]any `yaml:"users"`
	// MaxItem overrides the computed max item id when non-zero.
	MaxItem int64 `yaml:"maxitem"`
	// Updates is served at /updates.json.
	Updates *UpdatesFixture `yaml:"updates"`
	// Raw maps a path (e.g. "/topstories.json") to a literal body that is
	// served instead of the modeled data, valid JSON or not.
	Raw map[string]string `yaml:"raw"`
	// Faults are armed when the server starts.
	Faults []Fault `yaml:"faults"`
}

// UpdatesFixture is the /updates.json payload.
type UpdatesFixture struct {
	Items    []int64  `json:"items"    yaml:"items"`
	Profiles []string `json:"profiles" yaml:"profiles"`
}

// DefaultFixtures returns a small, internally consistent data set.
func DefaultFixtures() (*Fixtures, error) {
	return parseFixtures(defaultFixturesYAML)
}

// LoadFixtures reads fixtures from a YAML file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	fx, err := parseFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fx, nil
}

func parseFixtures(data []byte) (*Fixtures, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &fx, nil
}

// maxItem returns the configured max item id or the largest known id.
func (f *Fixtures) maxItem() int64 {
	if f.MaxItem != 0 {
		return f.MaxItem
	}
	var highest int64
	for id := range f.Items {
		highest = max(highest, id)
	}
	for _, ids := range f.Lists {
		for _, id := range ids {
			highest = max(highest, id)
		}
	}
	return highest
}
