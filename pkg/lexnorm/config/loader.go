package config

import (
	"fmt"
	"strings"

	"github.com/cognicore/lexnorm/pkg/lexnorm/ingest"
	"github.com/cognicore/lexnorm/pkg/lexnorm/lexicon"
)

// Loader loads all project resource files and constructs components
type Loader struct {
	Path string // project YAML path
}

// Components holds all loaded configuration components
type Components struct {
	Project      *Project
	Lexicons     *lexicon.Collection
	Replacements *lexicon.ReplacementMap
	Builder      *ingest.Builder
}

// Load reads the project file and its resources and returns initialized
// components ready for engine construction
func (l *Loader) Load() (*Components, error) {
	proj, err := LoadProject(l.Path)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}

	comp := &Components{
		Project:  proj,
		Lexicons: lexicon.NewCollection(),
	}

	for category, path := range proj.Lexicons {
		var set *lexicon.Set
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			set, err = lexicon.LoadSetFromYAML(category, path)
		} else {
			set, err = lexicon.LoadSetFromWordList(category, path)
		}
		if err != nil {
			return nil, fmt.Errorf("load lexicon %s: %w", category, err)
		}
		comp.Lexicons.AddSet(set)
	}

	if proj.Replacements != "" {
		comp.Replacements, err = lexicon.LoadReplacementMapFromYAML(proj.Replacements)
		if err != nil {
			return nil, fmt.Errorf("load replacements: %w", err)
		}
	}

	comp.Builder = ingest.NewBuilder(comp.Lexicons, comp.Replacements)
	comp.Builder.SetDigitsInVocabulary(proj.DigitsInVocabulary)

	return comp, nil
}
