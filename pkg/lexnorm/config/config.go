package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Project is the on-disk project configuration
type Project struct {
	Name string `yaml:"name"`
	// Lexicons maps category names to lexicon files. Files ending in
	// .yaml/.yml use the terms-list format; anything else is read as a
	// plain word list, one term per line.
	Lexicons map[string]string `yaml:"lexicons"`
	// Replacements points to a YAML replacement-map file (optional).
	Replacements string `yaml:"replacements"`
	// DigitsInVocabulary treats purely numeric tokens as resolved.
	DigitsInVocabulary bool `yaml:"digits_in_vocabulary"`
}

// LoadProject loads a project configuration from a YAML file
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	return &p, nil
}
