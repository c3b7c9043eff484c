package replica

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Infinite disables the staleness or eviction timer.
const Infinite time.Duration = math.MaxInt64

// Settings control the freshness window and the idle period before eviction.
// The zero value is valid: data goes stale right after a fetch and is evicted
// as soon as the last observer leaves.
type Settings struct {
	StaleTime time.Duration
	ClearTime time.Duration
}

func DefaultSettings() Settings {
	return Settings{StaleTime: Infinite, ClearTime: Infinite}
}

func (s Settings) Validate() error {
	if s.StaleTime < 0 {
		return fmt.Errorf("%w: negative stale time %v", ErrInvalidSettings, s.StaleTime)
	}
	if s.ClearTime < 0 {
		return fmt.Errorf("%w: negative clear time %v", ErrInvalidSettings, s.ClearTime)
	}
	return nil
}

func finite(d time.Duration) bool { return d != Infinite }

type settingsDoc struct {
	StaleTime string `yaml:"stale_time"`
	ClearTime string `yaml:"clear_time"`
}

// UnmarshalYAML accepts Go durations ("30s", "5m") or "infinite".
// Missing keys default to infinite.
func (s *Settings) UnmarshalYAML(n *yaml.Node) error {
	var doc settingsDoc
	if err := n.Decode(&doc); err != nil {
		return err
	}
	stale, err := parseSettingDuration(doc.StaleTime)
	if err != nil {
		return fmt.Errorf("stale_time: %w", err)
	}
	evict, err := parseSettingDuration(doc.ClearTime)
	if err != nil {
		return fmt.Errorf("clear_time: %w", err)
	}
	*s = Settings{StaleTime: stale, ClearTime: evict}
	return s.Validate()
}

// LoadSettings decodes Settings from a YAML document.
func LoadSettings(r io.Reader) (Settings, error) {
	var s Settings
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		if err == io.EOF {
			return DefaultSettings(), nil
		}
		return Settings{}, err
	}
	return s, nil
}

func parseSettingDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "infinite") {
		return Infinite, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: negative duration %q", ErrInvalidSettings, v)
	}
	return d, nil
}
