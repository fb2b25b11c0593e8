package config

import (
	"fmt"
	"path/filepath"

	"github.com/cognicore/devsurvey/pkg/devsurvey/categorize"
	"github.com/cognicore/devsurvey/pkg/devsurvey/dataset"
	"github.com/cognicore/devsurvey/pkg/devsurvey/join"
)

// Loader loads configuration files and constructs components
type Loader struct {
	ConfigPath  string
	AliasesPath string
}

// Components holds all loaded configuration components
type Components struct {
	Config        *Config
	Schema        dataset.Schema
	CountrySchema dataset.CountrySchema
	Normalizer    *join.Normalizer
	OrgSizer      *categorize.OrgSizer
	Policy        join.Policy
}

// Load reads the configuration and returns initialized components.
// Without a ConfigPath the defaults are used.
func (l *Loader) Load() (*Components, error) {
	cfg := Default()
	if l.ConfigPath != "" {
		loaded, err := Load(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = *loaded
	}

	// Aliases: defaults, then the config's aliases_file, then inline aliases, then the explicit file.
	aliases := make(map[string]string)
	if !cfg.Countries.ReplaceDefaultAliases {
		for k, v := range join.DefaultAliases {
			aliases[k] = v
		}
	}
	if cfg.Countries.AliasesFile != "" {
		path := cfg.Countries.AliasesFile
		if !filepath.IsAbs(path) && l.ConfigPath != "" {
			path = filepath.Join(filepath.Dir(l.ConfigPath), path)
		}
		file, err := LoadAliases(path)
		if err != nil {
			return nil, fmt.Errorf("load aliases: %w", err)
		}
		for k, v := range file.Aliases {
			aliases[k] = v
		}
	}
	for k, v := range cfg.Countries.Aliases {
		aliases[k] = v
	}
	if l.AliasesPath != "" {
		file, err := LoadAliases(l.AliasesPath)
		if err != nil {
			return nil, fmt.Errorf("load aliases: %w", err)
		}
		for k, v := range file.Aliases {
			aliases[k] = v
		}
	}

	sizer, err := categorize.NewOrgSizer(cfg.buckets())
	if err != nil {
		return nil, err
	}
	policy, err := join.ParsePolicy(cfg.Join.Policy)
	if err != nil {
		return nil, err
	}

	return &Components{
		Config:        &cfg,
		Schema:        cfg.Schema(),
		CountrySchema: cfg.CountrySchema(),
		Normalizer:    join.NewNormalizer(aliases),
		OrgSizer:      sizer,
		Policy:        policy,
	}, nil
}
