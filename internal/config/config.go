package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	exeDirCache string
)

// getExecutableDir returns the directory where the executable is located
func getExecutableDir() string {
	if exeDirCache != "" {
		return exeDirCache
	}
	execPath, err := os.Executable()
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	exeDirCache = filepath.Dir(execPath)
	return exeDirCache
}

// Source protocol types.
const (
	TypeMediaWiki   = "mediawiki"
	TypeMeiliSearch = "meilisearch"
	TypeCustom      = "custom"
)

type Config struct {
	Logging        LoggingConfig        `yaml:"logging"`
	Primary        PrimaryConfig        `yaml:"primary"`
	Search         SearchConfig         `yaml:"search"`
	Cache          CacheConfig          `yaml:"cache"`
	Quota          QuotaConfig          `yaml:"quota"`
	Features       FeaturesConfig       `yaml:"features"`
	KnowledgePanel KnowledgePanelConfig `yaml:"knowledge_panel"`
	Server         ServerConfig         `yaml:"server"`
	Sources        []SourceConfig       `yaml:"sources"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// PrimaryConfig configures the metered web search API (Custom Search JSON shape).
type PrimaryConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key,omitempty"`
	CSEID      string `yaml:"cse_id,omitempty"`
	DailyLimit int    `yaml:"daily_limit"`
	PageSize   int    `yaml:"page_size"`
	MaxPages   int    `yaml:"max_pages"`
	Safe       string `yaml:"safe"`
}

// Configured reports whether the primary source can actually be called.
func (p PrimaryConfig) Configured() bool {
	return p.Enabled && p.Endpoint != "" && p.APIKey != "" && p.CSEID != ""
}

type SearchConfig struct {
	DefaultLang   string        `yaml:"default_lang"`
	FanoutTimeout time.Duration `yaml:"fanout_timeout"`
	SourceTimeout time.Duration `yaml:"source_timeout"`
}

type CacheConfig struct {
	WebSize      int           `yaml:"web_size"`
	ImageSize    int           `yaml:"image_size"`
	TTL          time.Duration `yaml:"ttl"`
	ImageEnabled bool          `yaml:"image_enabled"`
	PersistPath  string        `yaml:"persist_path,omitempty"`
}

type QuotaConfig struct {
	// Persist stores the daily counter in the cache database when one is configured.
	Persist bool `yaml:"persist"`
}

type FeaturesConfig struct {
	VoiceSearch    bool `yaml:"voice_search"`
	KnowledgePanel bool `yaml:"knowledge_panel"`
}

type KnowledgePanelConfig struct {
	APIURL            string `yaml:"api_url"`
	BaseURL           string `yaml:"base_url"`
	SourceName        string `yaml:"source_name"`
	ExtractLength     int    `yaml:"extract_length"`
	ThumbnailSize     int    `yaml:"thumbnail_size"`
	DisableThumbnails bool   `yaml:"disable_thumbnails"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// SourceConfig describes one pluggable secondary source.
type SourceConfig struct {
	ID                 string         `yaml:"id"`
	Name               string         `yaml:"name"`
	Type               string         `yaml:"type"`
	Enabled            bool           `yaml:"enabled"`
	Weight             float64        `yaml:"weight"`
	APIURL             string         `yaml:"api_url"`
	BaseURL            string         `yaml:"base_url,omitempty"`
	APIKey             string         `yaml:"api_key,omitempty"`
	ResultsLimit       int            `yaml:"results_limit,omitempty"`
	SupportsWeb        *bool          `yaml:"supports_web,omitempty"`
	SupportsImages     bool           `yaml:"supports_images,omitempty"`
	ExcludeFromPrimary *bool          `yaml:"exclude_from_primary,omitempty"`
	ExcludeDomains     []string       `yaml:"exclude_domains,omitempty"`
	Options            map[string]any `yaml:"options,omitempty"`
}

// WebSupported defaults to true when unset.
func (s SourceConfig) WebSupported() bool {
	return s.SupportsWeb == nil || *s.SupportsWeb
}

// ExcludedFromPrimary defaults to true when unset.
func (s SourceConfig) ExcludedFromPrimary() bool {
	return s.ExcludeFromPrimary == nil || *s.ExcludeFromPrimary
}

// Limit returns the configured result limit or the protocol default of 5.
func (s SourceConfig) Limit() int {
	if s.ResultsLimit > 0 {
		return s.ResultsLimit
	}
	return 5
}

// EffectiveWeight applies the 0.5 default for an unset weight.
func (s SourceConfig) EffectiveWeight() float64 {
	if s.Weight == 0 {
		return 0.5
	}
	return s.Weight
}

// Validate reports configuration problems that make a source unusable.
func (s SourceConfig) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("source id is required")
	}
	switch s.Type {
	case TypeMediaWiki, TypeMeiliSearch, TypeCustom:
	default:
		return fmt.Errorf("source %s: unknown type %q", s.ID, s.Type)
	}
	if w := s.EffectiveWeight(); w < 0 || w > 1 {
		return fmt.Errorf("source %s: weight %.2f outside [0,1]", s.ID, w)
	}
	if strings.TrimSpace(s.APIURL) == "" {
		return fmt.Errorf("source %s: api_url is required", s.ID)
	}
	if s.Type == TypeMediaWiki && strings.TrimSpace(s.BaseURL) == "" {
		return fmt.Errorf("source %s: base_url is required for mediawiki", s.ID)
	}
	return nil
}

// PrimaryExclusions returns the domains this source covers, for -site: filters.
func (s SourceConfig) PrimaryExclusions() []string {
	if !s.ExcludedFromPrimary() {
		return nil
	}
	if len(s.ExcludeDomains) > 0 {
		return s.ExcludeDomains
	}
	raw := strings.ReplaceAll(s.BaseURL, "{lang}", "www")
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return []string{strings.TrimPrefix(u.Hostname(), "www.")}
}

func boolPtr(b bool) *bool { return &b }

func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Primary: PrimaryConfig{
			Enabled:    true,
			Endpoint:   "https://www.googleapis.com/customsearch/v1",
			DailyLimit: 90,
			PageSize:   10,
			MaxPages:   10,
			Safe:       "active",
		},
		Search: SearchConfig{
			DefaultLang:   "fr",
			FanoutTimeout: 10 * time.Second,
			SourceTimeout: 8 * time.Second,
		},
		Cache: CacheConfig{
			WebSize:      200,
			ImageSize:    100,
			TTL:          7 * 24 * time.Hour,
			ImageEnabled: true,
		},
		Features: FeaturesConfig{
			VoiceSearch:    true,
			KnowledgePanel: true,
		},
		KnowledgePanel: KnowledgePanelConfig{
			APIURL:        "https://{lang}.vikidia.org/w/api.php",
			BaseURL:       "https://{lang}.vikidia.org/wiki/",
			SourceName:    "Vikidia",
			ExtractLength: 400,
			ThumbnailSize: 300,
		},
		Server: ServerConfig{
			Port: 8686,
		},
		Sources: []SourceConfig{
			{
				ID:             "vikidia",
				Name:           "Vikidia",
				Type:           TypeMediaWiki,
				Enabled:        true,
				Weight:         0.5,
				APIURL:         "https://{lang}.vikidia.org/w/api.php",
				BaseURL:        "https://{lang}.vikidia.org",
				ResultsLimit:   5,
				ExcludeDomains: []string{"vikidia.org"},
				Options: map[string]any{
					"article_path":     "/wiki/",
					"fetch_thumbnails": true,
					"thumbnail_size":   200,
				},
			},
			{
				ID:             "wikipedia",
				Name:           "Wikipedia",
				Type:           TypeMediaWiki,
				Enabled:        true,
				Weight:         0.5,
				APIURL:         "https://{lang}.wikipedia.org/w/api.php",
				BaseURL:        "https://{lang}.wikipedia.org",
				ResultsLimit:   5,
				ExcludeDomains: []string{"wikipedia.org"},
				Options: map[string]any{
					"article_path":     "/wiki/",
					"fetch_thumbnails": true,
					"thumbnail_size":   200,
				},
			},
			{
				ID:             "wikimedia-commons",
				Name:           "Wikimedia Commons",
				Type:           TypeMediaWiki,
				Enabled:        false,
				Weight:         0.7,
				APIURL:         "https://commons.wikimedia.org/w/api.php",
				BaseURL:        "https://commons.wikimedia.org",
				ResultsLimit:   10,
				SupportsWeb:    boolPtr(false),
				SupportsImages: true,
				ExcludeDomains: []string{"wikimedia.org", "commons.wikimedia.org"},
				Options: map[string]any{
					"thumbnail_size": 400,
					"image_search": map[string]any{
						"exclude_categories": []any{
							"Nudity in art", "Erotic art", "Sexual activity",
							"Violence", "Deaths", "Human corpses",
						},
					},
				},
			},
		},
	}
}

func ConfigPath() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".kidsearch.yaml")
}

func Load() (*Config, error) {
	return LoadFromPath(ConfigPath())
}

// LoadFromPath reads a config file over the defaults. A missing file yields the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyEnv()

	return cfg, nil
}

// ApplyEnv overlays environment variables on top of file values.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("KIDSEARCH_API_KEY"); v != "" {
		c.Primary.APIKey = v
	}
	if v := os.Getenv("KIDSEARCH_CSE_ID"); v != "" {
		c.Primary.CSEID = v
	}
	if v := os.Getenv("KIDSEARCH_LOG"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
