// Package config defines the audit engine's configuration surface.
// Every threshold and keyword set the checks and strategies consume is
// explicit here, so runs are deterministic and parameterizable in
// tests. A config that fails Validate aborts the run before any check
// executes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures all settings for one audit engine instance.
type Config struct {
	Logging       LoggingConfig       `yaml:"logging"`
	Rules         RulesConfig         `yaml:"rules"`
	Correlation   CorrelationConfig   `yaml:"correlation"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Oracle        OracleConfig        `yaml:"oracle"`
	Storage       StorageConfig       `yaml:"storage"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RulesConfig parameterizes the standalone transaction checks.
type RulesConfig struct {
	ProhibitedTerms           []string          `yaml:"prohibitedTerms"`
	AuthorizationCeilingCents int64             `yaml:"authorizationCeilingCents"`
	AuthorizationMarkers      []string          `yaml:"authorizationMarkers"`
	RestrictedVenues          []string          `yaml:"restrictedVenues"`
	RestrictedCategories      []string          `yaml:"restrictedCategories"`
	Structuring               StructuringConfig `yaml:"structuring"`
}

// StructuringConfig parameterizes smurfing detection. The amount band
// is half-open: [BandMinCents, BandMaxCents).
type StructuringConfig struct {
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	BandMinCents        int64   `yaml:"bandMinCents"`
	BandMaxCents        int64   `yaml:"bandMaxCents"`
}

// CorrelationConfig parameterizes the message-to-transaction join and
// the per-strategy keyword prefilters.
type CorrelationConfig struct {
	WindowDays    int                 `yaml:"windowDays"`
	MaxCandidates int                 `yaml:"maxCandidates"`
	Strategies    map[string][]string `yaml:"strategies"`
}

// ConsolidationConfig parameterizes near-duplicate suppression.
type ConsolidationConfig struct {
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
}

// OracleConfig parameterizes the external semantic-judgement service.
type OracleConfig struct {
	Model             string   `yaml:"model"`
	Concurrency       int      `yaml:"concurrency"`
	QueueDepth        int      `yaml:"queueDepth"`
	Timeout           Duration `yaml:"timeout"`
	MaxRetries        int      `yaml:"maxRetries"`
	RequestsPerMinute int      `yaml:"requestsPerMinute"`
	MaxRationaleLen   int      `yaml:"maxRationaleLen"`
	MaxQuotes         int      `yaml:"maxQuotes"`
}

// StorageConfig points at the optional BigQuery backend. Leaving
// Project empty keeps the run fully local: corpora come from files or
// GCS and findings go to stdout/CSV only.
type StorageConfig struct {
	Project           string `yaml:"project"`
	Dataset           string `yaml:"dataset"`
	FindingsTable     string `yaml:"findingsTable"`
	TransactionsTable string `yaml:"transactionsTable"`
}

// Enabled reports whether a BigQuery backend is configured.
func (s StorageConfig) Enabled() bool { return s.Project != "" }

// Duration wraps time.Duration so YAML can carry values like "30s".
type Duration time.Duration

// UnmarshalYAML accepts Go duration strings or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ValidationError is fatal: it is surfaced before any check runs and
// aborts the whole run.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Load initialises Config from an optional YAML file layered over the
// built-in defaults, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("EXPENSE_AUDIT_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in policy parameters. They mirror the
// written expense policy; a YAML file can override any of them.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Rules: RulesConfig{
			ProhibitedTerms: []string{
				"magic", "mágica", "karaoke", "karaokê", "handcuff", "algema",
				"smoke machine", "fumaça", "stripper", "weapon", "arma", "gun",
				"sword", "espada", "katana", "nunchaku", "ninja", "pepper spray",
				"spray de pimenta", "camouflage", "camuflagem", "trap", "armadilha",
				"surveillance", "vigilância", "binocular", "binóculo",
				"walkie talkie", "walkie-talkie", "marked deck", "baralho marcado",
			},
			AuthorizationCeilingCents: 50000,
			AuthorizationMarkers:      []string{"po", "purchase order", "p.o."},
			RestrictedVenues:          []string{"hooters"},
			RestrictedCategories:      []string{"Segurança", "Security"},
			Structuring: StructuringConfig{
				SimilarityThreshold: 0.6,
				BandMinCents:        30000,
				BandMaxCents:        50000,
			},
		},
		Correlation: CorrelationConfig{
			WindowDays:    3,
			MaxCandidates: 20,
			Strategies: map[string][]string{
				"coordination": {
					"split", "dividir", "together", "juntos", "combine", "combinar",
					"approval", "aprovação", "authorization", "autorização",
					"reimbursement", "reembolso",
				},
				"false_justification": {
					"client", "cliente", "meeting", "reunião", "necessary",
					"necessário", "emergency", "emergência", "urgent", "urgente",
					"project", "projeto",
				},
				"concealment": {
					"don't mention", "não mencione", "secret", "segredo",
					"confidential", "confidencial", "between us", "entre nós",
					"just you", "só você", "discreet", "discreto",
				},
				"personal_use": {
					"personal", "pessoal", "family", "família", "gift", "presente",
					"home", "casa", "weekend", "fim de semana",
				},
				"conflict_of_interest": {
					"brother", "irmão", "cousin", "primo", "my company",
					"minha empresa", "side business", "negócio próprio", "favor",
				},
			},
		},
		Consolidation: ConsolidationConfig{SimilarityThreshold: 0.9},
		Storage: StorageConfig{
			Dataset:           "audit",
			FindingsTable:     "findings",
			TransactionsTable: "transactions",
		},
		Oracle: OracleConfig{
			Model:             "gemini-2.0-flash",
			Concurrency:       4,
			QueueDepth:        16,
			Timeout:           Duration(30 * time.Second),
			MaxRetries:        2,
			RequestsPerMinute: 30,
			MaxRationaleLen:   2000,
			MaxQuotes:         8,
		},
	}
}

// Validate checks that every required threshold and keyword set is
// present and coherent. It returns a *ValidationError listing every
// problem found.
func (c *Config) Validate() error {
	var problems []string

	if len(c.Rules.ProhibitedTerms) == 0 {
		problems = append(problems, "rules.prohibitedTerms must not be empty")
	}
	if c.Rules.AuthorizationCeilingCents <= 0 {
		problems = append(problems, "rules.authorizationCeilingCents must be positive")
	}
	if len(c.Rules.AuthorizationMarkers) == 0 {
		problems = append(problems, "rules.authorizationMarkers must not be empty")
	}
	if len(c.Rules.RestrictedVenues) == 0 {
		problems = append(problems, "rules.restrictedVenues must not be empty")
	}
	if len(c.Rules.RestrictedCategories) == 0 {
		problems = append(problems, "rules.restrictedCategories must not be empty")
	}

	s := c.Rules.Structuring
	if s.SimilarityThreshold <= 0 || s.SimilarityThreshold > 1 {
		problems = append(problems, "rules.structuring.similarityThreshold must be in (0,1]")
	}
	if s.BandMinCents <= 0 || s.BandMaxCents <= s.BandMinCents {
		problems = append(problems, "rules.structuring amount band must satisfy 0 < min < max")
	}

	if c.Correlation.WindowDays <= 0 {
		problems = append(problems, "correlation.windowDays must be positive")
	}
	if c.Correlation.MaxCandidates <= 0 {
		problems = append(problems, "correlation.maxCandidates must be positive")
	}
	if len(c.Correlation.Strategies) == 0 {
		problems = append(problems, "correlation.strategies must not be empty")
	}
	for name, keywords := range c.Correlation.Strategies {
		if len(keywords) == 0 {
			problems = append(problems, fmt.Sprintf("correlation.strategies.%s has no keywords", name))
		}
	}

	if t := c.Consolidation.SimilarityThreshold; t <= 0 || t > 1 {
		problems = append(problems, "consolidation.similarityThreshold must be in (0,1]")
	}

	o := c.Oracle
	if o.Model == "" {
		problems = append(problems, "oracle.model must be set")
	}
	if o.Concurrency <= 0 {
		problems = append(problems, "oracle.concurrency must be positive")
	}
	if o.QueueDepth <= 0 {
		problems = append(problems, "oracle.queueDepth must be positive")
	}
	if o.Timeout <= 0 {
		problems = append(problems, "oracle.timeout must be positive")
	}
	if o.MaxRetries < 0 {
		problems = append(problems, "oracle.maxRetries must not be negative")
	}
	if o.RequestsPerMinute <= 0 {
		problems = append(problems, "oracle.requestsPerMinute must be positive")
	}
	if o.MaxRationaleLen <= 0 {
		problems = append(problems, "oracle.maxRationaleLen must be positive")
	}
	if o.MaxQuotes <= 0 {
		problems = append(problems, "oracle.maxQuotes must be positive")
	}

	if c.Storage.Enabled() {
		if c.Storage.Dataset == "" {
			problems = append(problems, "storage.dataset must be set when storage.project is set")
		}
		if c.Storage.FindingsTable == "" {
			problems = append(problems, "storage.findingsTable must be set when storage.project is set")
		}
		if c.Storage.TransactionsTable == "" {
			problems = append(problems, "storage.transactionsTable must be set when storage.project is set")
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
