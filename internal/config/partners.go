package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/pesit-e/pesitengine/internal/session"
)

// PartnerEntry is one partner's row in the partners file, decoded via
// the same viper/mapstructure path as the rest of Config.
type PartnerEntry struct {
	ID          string `mapstructure:"id" validate:"required"`
	Password    string `mapstructure:"password" validate:"required"`
	MaxSessions int    `mapstructure:"max_sessions"`
	Enabled     bool   `mapstructure:"enabled"`
}

// LoadPartners reads a YAML/JSON/TOML partners file (viper picks the
// format up from the extension) shaped as a top-level "partners" list
// and returns a session.PartnerLookup closed over the decoded map.
func LoadPartners(path string) (session.PartnerLookup, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading partners file %s: %w", path, err)
	}

	var entries []PartnerEntry
	if err := v.UnmarshalKey("partners", &entries); err != nil {
		return nil, fmt.Errorf("decoding partners file %s: %w", path, err)
	}

	byID := make(map[string]session.Partner, len(entries))
	for _, e := range entries {
		byID[e.ID] = session.Partner{
			Password:    []byte(e.Password),
			MaxSessions: e.MaxSessions,
			Enabled:     e.Enabled,
		}
	}

	return func(id string) (session.Partner, bool) {
		p, ok := byID[id]
		return p, ok
	}, nil
}
