package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flybeeper/trajflow/internal/models"
)

// GridFile сетки параметров, заданные файлом
//
//	flow:
//	  - {min_distance: 50, max_distance: 100}
//	density:
//	  - {eps: 0.0005, min_samples: 5}
type GridFile struct {
	Flow    []models.Params `yaml:"flow"`
	Density []models.Params `yaml:"density"`
}

// LoadGridFile читает YAML файл сеток. Вид параметров проставляется по секции.
func LoadGridFile(path string) (*GridFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grid file: %w", err)
	}

	var grids GridFile
	if err := yaml.Unmarshal(data, &grids); err != nil {
		return nil, fmt.Errorf("failed to parse grid file: %w", err)
	}

	for i := range grids.Flow {
		grids.Flow[i].Kind = models.FlowAggregation
	}
	for i := range grids.Density {
		grids.Density[i].Kind = models.DensityClustering
	}

	return &grids, nil
}
