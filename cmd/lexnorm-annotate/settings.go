package main

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Settings holds annotation session preferences loaded from a TOML file.
type Settings struct {
	CLI CliSettings `toml:"cli"`
}

// CliSettings has the interactive session options.
type CliSettings struct {
	PageSize        int    `toml:"page_size"`
	SuggestLimit    int    `toml:"suggest_limit"`
	SuggestCategory string `toml:"suggest_category"`
	ShowInactive    bool   `toml:"show_inactive"`
}

func defaultSettings() Settings {
	return Settings{
		CLI: CliSettings{
			PageSize:        10,
			SuggestLimit:    8,
			SuggestCategory: "english",
		},
	}
}

// loadSettings reads the TOML settings file, falling back to defaults if
// the file is absent.
func loadSettings(path string) (Settings, error) {
	s := defaultSettings()
	if path == "" {
		return s, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return s, err
	}
	if s.CLI.PageSize <= 0 {
		s.CLI.PageSize = 10
	}
	if s.CLI.SuggestLimit <= 0 {
		s.CLI.SuggestLimit = 8
	}
	return s, nil
}
