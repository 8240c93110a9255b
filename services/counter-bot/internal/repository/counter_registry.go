package repository

import (
	"fmt"
	"os"
	"strings"

	"github.com/bikecount/bikecount/services/counter-bot/internal/models"
	"gopkg.in/yaml.v3"
)

// Placeholders every counter URL template must reference.
var RequiredPlaceholders = []string{"$start_date", "$end_date", "$interval"}

const ecoVisioBaseURL = "https://www.eco-visio.net/api/aladdin/1.0.0/pbl/publicwebpageplus/data/"

// DefaultCounters returns the Luxembourg City counters in registry order.
func DefaultCounters() []models.CounterConfig {
	return []models.CounterConfig{
		{
			ID:          "viaduc",
			Name:        "Viaduc",
			URLTemplate: ecoVisioBaseURL + "100065111?idOrganisme=4586&idPdc=100065111&fin=$end_date&debut=$start_date&interval=$interval&flowIds=101065111%3B102065111",
		},
		{
			ID:          "lift",
			Name:        "Pfaffenthal-Lift",
			URLTemplate: ecoVisioBaseURL + "100136902?idOrganisme=4586&idPdc=100136902&fin=$end_date&debut=$start_date&interval=$interval&flowIds=101136902%3B102136902%3B103136902%3B104136902",
		},
		{
			ID:          "glacis",
			Name:        "Glacis",
			URLTemplate: ecoVisioBaseURL + "100136901?idOrganisme=4586&idPdc=100136901&fin=$end_date&debut=$start_date&interval=$interval&flowIds=101136901%3B102136901%3B103136901%3B104136901%3B105136901%3B106136901%3B107136901%3B108136901",
		},
	}
}

type registryFile struct {
	Counters []models.CounterConfig `yaml:"counters"`
}

// LoadCounters reads the counter registry from a YAML file. An empty path
// yields DefaultCounters.
func LoadCounters(path string) ([]models.CounterConfig, error) {
	if path == "" {
		return DefaultCounters(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read counters file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode counters file: %w", err)
	}

	if err := ValidateCounters(file.Counters); err != nil {
		return nil, err
	}

	return file.Counters, nil
}

func ValidateCounters(counters []models.CounterConfig) error {
	if len(counters) == 0 {
		return fmt.Errorf("counter registry is empty")
	}

	ids := make(map[string]bool, len(counters))
	names := make(map[string]bool, len(counters))

	for i, c := range counters {
		if c.ID == "" {
			return fmt.Errorf("counter %d: id is required", i)
		}
		if c.Name == "" {
			return fmt.Errorf("counter %s: name is required", c.ID)
		}
		if ids[c.ID] {
			return fmt.Errorf("counter %s: duplicate id", c.ID)
		}
		if names[c.Name] {
			return fmt.Errorf("counter %s: duplicate name %q", c.ID, c.Name)
		}
		ids[c.ID] = true
		names[c.Name] = true

		for _, p := range RequiredPlaceholders {
			if !strings.Contains(c.URLTemplate, p) {
				return fmt.Errorf("counter %s: url template is missing %s", c.ID, p)
			}
		}
	}

	return nil
}
