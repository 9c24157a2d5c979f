package sitecfg

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Site is the hot-reloadable part of the configuration: the signup page
// branding and the list of content categories a subscriber can pick from.
type Site struct {
	Title       string   `mapstructure:"title" json:"title"`
	Subtitle    string   `mapstructure:"subtitle" json:"subtitle"`
	ButtonLabel string   `mapstructure:"button_label" json:"buttonLabel"`
	Categories  []string `mapstructure:"categories" json:"categories"`
}

func (s *Site) validate() error {
	if len(s.Categories) == 0 {
		return errors.New("site config: category list is empty")
	}
	seen := make(map[string]bool, len(s.Categories))
	for _, c := range s.Categories {
		if c == "" {
			return errors.New("site config: empty category name")
		}
		if seen[c] {
			return fmt.Errorf("site config: duplicate category %q", c)
		}
		seen[c] = true
	}
	return nil
}

// Store holds the current Site snapshot behind an atomic pointer, so an
// in-flight request never observes a half-applied reload.
type Store struct {
	v    *viper.Viper
	log  zerolog.Logger
	snap atomic.Pointer[Site]
}

// Load reads the site file and starts watching it for changes. A reload that
// fails validation is dropped and the previous snapshot stays in effect.
func Load(path string, logger zerolog.Logger) (*Store, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read site config: %w", err)
	}

	s := &Store{v: v, log: logger.With().Str("component", "SiteConfig").Logger()}
	if err := s.Reload(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(_ fsnotify.Event) {
		if err := s.Reload(); err != nil {
			s.log.Warn().Err(err).Msg("site config reload rejected, keeping previous snapshot")
			return
		}
		s.log.Info().Str("path", path).Msg("site config reloaded")
	})
	v.WatchConfig()

	return s, nil
}

// Reload re-reads the file and swaps the snapshot atomically when the new
// contents validate.
func (s *Store) Reload() error {
	if err := s.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read site config: %w", err)
	}
	var site Site
	if err := s.v.Unmarshal(&site); err != nil {
		return fmt.Errorf("unmarshal site config: %w", err)
	}
	if err := site.validate(); err != nil {
		return err
	}
	s.snap.Store(&site)
	return nil
}

// Snapshot returns the current immutable site configuration.
func (s *Store) Snapshot() Site {
	return *s.snap.Load()
}

// Categories returns the configured category list of the current snapshot.
func (s *Store) Categories() []string {
	return s.snap.Load().Categories
}
