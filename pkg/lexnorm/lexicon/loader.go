package lexicon

import (
	"bufio"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSetFromYAML loads a lexicon set from a YAML file.
//
// Expected format:
//
//	terms:
//	  - hello
//	  - world
func LoadSetFromYAML(category, path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file struct {
		Terms []string `yaml:"terms"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	set := NewSet(category)
	for _, term := range file.Terms {
		set.Add(strings.TrimSpace(term))
	}
	return set, nil
}

// LoadSetFromWordList loads a lexicon set from a plain text file with one
// term per line. Blank lines and '#' comments are skipped.
func LoadSetFromWordList(category, path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	set := NewSet(category)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// LoadReplacementMapFromYAML loads a replacement map from a YAML file.
//
// Expected format:
//
//	replacements:
//	  teh: the
//	  helo: hello
func LoadReplacementMapFromYAML(path string) (*ReplacementMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file struct {
		Replacements map[string]string `yaml:"replacements"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	return NewReplacementMap(file.Replacements), nil
}
