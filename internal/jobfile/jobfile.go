// Package jobfile reads the YAML list of search jobs used to seed the queue.
package jobfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tkilaker/newsminer/internal/models"
)

// File is the structure of a job file
type File struct {
	Jobs []models.SearchJob `yaml:"jobs"`
}

// Defaults are the jobs published when no file is given
func Defaults() []models.SearchJob {
	return []models.SearchJob{
		{SearchPhrase: "Carnival", NewsCategory: "World & Nation", NumberOfMonths: 50},
		{SearchPhrase: "Bitcoin", NewsCategory: "", NumberOfMonths: 45},
		{SearchPhrase: "Elon Musk", NewsCategory: "", NumberOfMonths: 100},
	}
}

// Load reads and validates the jobs in path. Returns nil if the file doesn't
// exist (not an error).
func Load(path string) ([]models.SearchJob, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse job file: %w", err)
	}

	for i, job := range f.Jobs {
		if err := job.Validate(); err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
	}

	return f.Jobs, nil
}

// Write stores jobs in path in the format Load reads
func Write(path string, jobs []models.SearchJob) error {
	data, err := yaml.Marshal(File{Jobs: jobs})
	if err != nil {
		return fmt.Errorf("failed to encode job file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write job file: %w", err)
	}
	return nil
}
