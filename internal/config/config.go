// Package config loads the settlement configuration: a YAML file checked
// against an embedded JSON schema, layered over defaults and environment
// overrides.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/homestead/internal/catalog"
	"github.com/talgya/homestead/internal/engine"
	"github.com/talgya/homestead/internal/ledger"
	"github.com/talgya/homestead/internal/world"
)

//go:embed config.schema.json
var schemaJSON string

// Config is the full runtime configuration.
type Config struct {
	Name     string `yaml:"name"`
	DBPath   string `yaml:"db_path"`
	SavesDir string `yaml:"saves_dir"`
	APIPort  int    `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	ProductionInterval Duration `yaml:"production_interval"`
	FrameInterval      Duration `yaml:"frame_interval"`

	BaselineStorage int    `yaml:"baseline_storage"`
	RefundPercent   int    `yaml:"refund_percent"`
	TileScope       string `yaml:"tile_scope"`
	AutosaveTicks   int    `yaml:"autosave_ticks"`

	StartResources map[string]int `yaml:"start_resources"`
	Catalog        CatalogTables  `yaml:"catalog"`

	// From the environment only.
	AdminKey string `yaml:"-"`
}

// CatalogTables override building costs and outputs by name:
// building → resource → amount. A listed building replaces its whole table.
type CatalogTables struct {
	Costs   map[string]map[string]int `yaml:"costs"`
	Outputs map[string]map[string]int `yaml:"outputs"`
}

// Duration is a time.Duration read from a string such as "3s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := time.ParseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Name:               "homestead",
		DBPath:             "data/homestead.db",
		SavesDir:           "saves",
		APIPort:            8080,
		LogLevel:           "info",
		ProductionInterval: Duration(engine.DefaultProductionInterval),
		FrameInterval:      Duration(engine.DefaultFrameInterval),
		BaselineStorage:    100,
		RefundPercent:      100,
		TileScope:          "parcel",
		AutosaveTicks:      1,
		StartResources: map[string]int{
			"seeds":   10,
			"food":    10,
			"wood":    10,
			"storage": 100,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path means defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Parse checks raw against the schema and decodes it into cfg. Fields
// missing from raw keep their current values.
func Parse(raw []byte, cfg *Config) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return nil
	}
	if err := validateSchema(doc); err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

var compiledSchema *jsonschema.Schema

func validateSchema(doc any) error {
	if compiledSchema == nil {
		s, err := jsonschema.CompileString("config.schema.json", schemaJSON)
		if err != nil {
			return fmt.Errorf("compile schema: %w", err)
		}
		compiledSchema = s
	}
	// Round-trip through JSON so the validator sees JSON types only.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HOMESTEAD_ADMIN_KEY"); v != "" {
		c.AdminKey = v
	}
	if v := os.Getenv("HOMESTEAD_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("HOMESTEAD_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.APIPort = p
		} else {
			slog.Warn("ignoring HOMESTEAD_PORT", "value", v, "error", err)
		}
	}
}

// Validate checks the semantic rules the schema cannot express.
func (c Config) Validate() error {
	if _, ok := world.ParseTileScope(c.TileScope); !ok {
		return fmt.Errorf("tile_scope %q: want parcel or neighborhood", c.TileScope)
	}
	if c.ProductionInterval <= 0 || c.FrameInterval <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if _, err := c.StartLedger(); err != nil {
		return err
	}
	if _, err := c.BuildCatalog(); err != nil {
		return err
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Rules returns the world rules.
func (c Config) Rules() world.Rules {
	scope, _ := world.ParseTileScope(c.TileScope)
	return world.Rules{
		Scope:           scope,
		RefundPercent:   c.RefundPercent,
		BaselineStorage: c.BaselineStorage,
	}
}

// StartLedger resolves start_resources by name.
func (c Config) StartLedger() (ledger.Ledger, error) {
	l := ledger.New()
	for name, q := range c.StartResources {
		r, ok := catalog.ParseResource(name)
		if !ok {
			return nil, fmt.Errorf("start_resources: unknown resource %q", name)
		}
		l.Set(r, q)
	}
	return l, nil
}

// BuildCatalog returns the default catalog with the configured overrides.
func (c Config) BuildCatalog() (*catalog.Catalog, error) {
	if len(c.Catalog.Costs) == 0 && len(c.Catalog.Outputs) == 0 {
		return catalog.Default(), nil
	}
	cat := catalog.Default().Clone()
	for name, table := range c.Catalog.Costs {
		t, amounts, err := resolveTable(name, table)
		if err != nil {
			return nil, fmt.Errorf("catalog.costs: %w", err)
		}
		cat.SetCost(t, amounts)
	}
	for name, table := range c.Catalog.Outputs {
		t, amounts, err := resolveTable(name, table)
		if err != nil {
			return nil, fmt.Errorf("catalog.outputs: %w", err)
		}
		cat.SetOutput(t, amounts)
	}
	return cat, nil
}

func resolveTable(building string, table map[string]int) (catalog.BuildingType, []catalog.Amount, error) {
	t, ok := catalog.ParseBuildingType(building)
	if !ok {
		return 0, nil, fmt.Errorf("unknown building %q", building)
	}
	if t == catalog.BuildingGround {
		return 0, nil, fmt.Errorf("ground has no economy")
	}
	amounts := make([]catalog.Amount, 0, len(table))
	for name, q := range table {
		r, ok := catalog.ParseResource(name)
		if !ok {
			return 0, nil, fmt.Errorf("%s: unknown resource %q", building, name)
		}
		amounts = append(amounts, catalog.Amount{Resource: r, Qty: q})
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i].Resource < amounts[j].Resource })
	return t, amounts, nil
}

// Settings assembles what a new or restored simulation needs.
func (c Config) Settings() (engine.Settings, error) {
	cat, err := c.BuildCatalog()
	if err != nil {
		return engine.Settings{}, err
	}
	start, err := c.StartLedger()
	if err != nil {
		return engine.Settings{}, err
	}
	return engine.Settings{
		Name:               c.Name,
		Catalog:            cat,
		Rules:              c.Rules(),
		Start:              start,
		ProductionInterval: c.ProductionInterval.Std(),
	}, nil
}

// ParseLevel maps log_level to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", s, err)
	}
	return l, nil
}
