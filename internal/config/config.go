// Package config loads and validates the openclaw-mem TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the top-level, validated configuration object. All
// operator-tunable knobs are enumerated here; unknown TOML keys are
// rejected at Load time rather than silently ignored.
type Config struct {
	General   General   `toml:"general"`
	Embedding Embedding `toml:"embedding"`
	Retrieval Retrieval `toml:"retrieval"`
	Pack      Pack      `toml:"pack"`
	Policy    Policy    `toml:"policy"`
	Triage    Triage    `toml:"triage"`
	Graph     Graph     `toml:"graph"`
	Receipt   Receipt   `toml:"receipt"`
}

// General holds process-wide settings: the ledger path, logging, and the
// importance autograde toggle.
type General struct {
	StateDB         string `toml:"state_db"`
	LogLevel        string `toml:"log_level"`
	LockFile        string `toml:"lock_file"`
	ImportanceScorer string `toml:"importance_scorer"` // heuristic-v1 | off
	IdempotencyWindow Duration `toml:"idempotency_window"`
	BusyTimeout     Duration `toml:"busy_timeout"`
}

// Embedding configures the external embedding provider call and the
// clamping applied before any text is sent to it.
type Embedding struct {
	Enabled      bool     `toml:"enabled"`
	BaseURL      string   `toml:"base_url"`
	Model        string   `toml:"model"`
	APIKeyEnv    string   `toml:"api_key_env"`
	Dimension    int      `toml:"dimension"`
	Timeout      Duration `toml:"timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	MaxChars     int      `toml:"max_chars"`
	HeadChars    int      `toml:"head_chars"`
	MaxBytes     int      `toml:"max_bytes"`
	BatchSize    int      `toml:"batch_size"`
}

// Retrieval configures the hybrid recall pipeline's defaults and caps.
type Retrieval struct {
	DefaultLimit    int     `toml:"default_limit"`
	MaxLimit        int     `toml:"max_limit"`
	CandidateMultiplier int `toml:"candidate_multiplier"`
	RRFK            int     `toml:"rrf_k"`
}

// Pack configures the Context Packer's budgets.
type Pack struct {
	BudgetTokens  int `toml:"budget_tokens"`
	MaxItems      int `toml:"max_items"`
	MaxL2Items    int `toml:"max_l2_items"`
	NiceCap       int `toml:"nice_cap"`
	ProtectedTail int `toml:"protected_tail"`
}

// Policy configures auto-recall gating and auto-capture classification.
type Policy struct {
	TrivialMinChars           int      `toml:"trivial_min_chars"`
	DedupeSimilarityThreshold float64  `toml:"dedupe_similarity_threshold"`
	DuplicateSearchMinScore   float64  `toml:"duplicate_search_min_score"`
	MaxItemsPerTurn           int      `toml:"max_items_per_turn"`
	MaxCharsPerItem           int      `toml:"max_chars_per_item"`
	AllowedCategories         []string `toml:"allowed_categories"`
	CaptureTodo               bool     `toml:"capture_todo"`
}

// Triage configures the deterministic triage scans.
type Triage struct {
	StateDir       string `toml:"state_dir"`
	CronStateFile  string `toml:"cron_state_file"`
	RecentWindow   int    `toml:"recent_window"`
	AlertedHistory int    `toml:"alerted_history"`
}

// Graph configures commit and markdown graph-capture sources.
type Graph struct {
	CommitSources   []string `toml:"commit_sources"`
	CommitSinceHours int     `toml:"commit_since_hours"`
	MarkdownRoots   []string `toml:"markdown_roots"`
	IncludeExt      []string `toml:"include_ext"`
	ExcludeGlobs    []string `toml:"exclude_globs"`
	MinHeadingLevel int      `toml:"min_heading_level"`
	SinceHours      int      `toml:"since_hours"`
	AutoRecall      bool     `toml:"auto_recall"`
	AutoCapture     bool     `toml:"auto_capture"`
	AutoCaptureMD   bool     `toml:"auto_capture_md"`
}

// Receipt configures the receipt/trace emitter's verbosity and caps.
type Receipt struct {
	Verbosity string `toml:"verbosity"` // low | high
	MaxItems  int    `toml:"max_items"`
}

// Load reads, decodes, and validates a TOML configuration file.
// Unknown keys are rejected so a typo in a config file fails loudly
// instead of silently falling back to a default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)
	normalizePaths(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Reload re-reads and re-validates the configuration file at path.
//
// This mirrors Load but is intentionally named to reflect runtime refresh paths.
func Reload(path string) (*Config, error) {
	return Load(path)
}

// LoadManager reads config from path and returns an RWMutex-backed thread-safe manager.
func LoadManager(path string) (ConfigManager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}

	cfg, err := Reload(path)
	if err != nil {
		return nil, err
	}
	return NewRWMutexManager(cfg), nil
}

// Default returns a Config populated with defaults, as if loaded from an
// empty TOML file. Useful for tests and for `openclaw-mem` invocations that
// run without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	normalizePaths(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.General.StateDB == "" {
		cfg.General.StateDB = "~/.openclaw-mem/db.sqlite"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LockFile == "" {
		cfg.General.LockFile = "~/.openclaw-mem/openclaw-mem.lock"
	}
	if cfg.General.ImportanceScorer == "" {
		cfg.General.ImportanceScorer = "heuristic-v1"
	}
	if cfg.General.IdempotencyWindow.Duration == 0 {
		cfg.General.IdempotencyWindow.Duration = 24 * time.Hour
	}
	if cfg.General.BusyTimeout.Duration == 0 {
		cfg.General.BusyTimeout.Duration = 5 * time.Second
	}

	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-local"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 768
	}
	if cfg.Embedding.Timeout.Duration == 0 {
		cfg.Embedding.Timeout.Duration = 30 * time.Second
	}
	if cfg.Embedding.RequestsPerSecond == 0 {
		cfg.Embedding.RequestsPerSecond = 4
	}
	if cfg.Embedding.MaxChars == 0 {
		cfg.Embedding.MaxChars = 8000
	}
	if cfg.Embedding.HeadChars == 0 {
		cfg.Embedding.HeadChars = 2000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 16
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENCLAW_MEM_EMBEDDING_API_KEY"
	}

	if cfg.Retrieval.DefaultLimit == 0 {
		cfg.Retrieval.DefaultLimit = 10
	}
	if cfg.Retrieval.MaxLimit == 0 {
		cfg.Retrieval.MaxLimit = 50
	}
	if cfg.Retrieval.CandidateMultiplier == 0 {
		cfg.Retrieval.CandidateMultiplier = 2
	}
	if cfg.Retrieval.RRFK == 0 {
		cfg.Retrieval.RRFK = 60
	}

	if cfg.Pack.BudgetTokens == 0 {
		cfg.Pack.BudgetTokens = 2000
	}
	if cfg.Pack.MaxItems == 0 {
		cfg.Pack.MaxItems = 20
	}
	if cfg.Pack.MaxL2Items == 0 {
		cfg.Pack.MaxL2Items = 3
	}
	if cfg.Pack.NiceCap == 0 {
		cfg.Pack.NiceCap = 8
	}

	if cfg.Policy.TrivialMinChars == 0 {
		cfg.Policy.TrivialMinChars = 12
	}
	if cfg.Policy.DedupeSimilarityThreshold == 0 {
		cfg.Policy.DedupeSimilarityThreshold = 0.92
	}
	if cfg.Policy.DuplicateSearchMinScore == 0 {
		cfg.Policy.DuplicateSearchMinScore = 0.94
	}
	if cfg.Policy.MaxItemsPerTurn == 0 {
		cfg.Policy.MaxItemsPerTurn = 2
	}
	if cfg.Policy.MaxCharsPerItem == 0 {
		cfg.Policy.MaxCharsPerItem = 280
	}
	if len(cfg.Policy.AllowedCategories) == 0 {
		cfg.Policy.AllowedCategories = []string{"todo", "decision", "preference"}
	}

	if cfg.Triage.StateDir == "" {
		cfg.Triage.StateDir = "~/.openclaw-mem/triage"
	}
	if cfg.Triage.RecentWindow == 0 {
		cfg.Triage.RecentWindow = 200
	}
	if cfg.Triage.AlertedHistory == 0 {
		cfg.Triage.AlertedHistory = 10000
	}

	if cfg.Graph.CommitSinceHours == 0 {
		cfg.Graph.CommitSinceHours = 168
	}
	if cfg.Graph.SinceHours == 0 {
		cfg.Graph.SinceHours = 168
	}
	if cfg.Graph.MinHeadingLevel == 0 {
		cfg.Graph.MinHeadingLevel = 2
	}
	if len(cfg.Graph.IncludeExt) == 0 {
		cfg.Graph.IncludeExt = []string{".md", ".markdown"}
	}

	if cfg.Receipt.Verbosity == "" {
		cfg.Receipt.Verbosity = "low"
	}
	if cfg.Receipt.MaxItems == 0 {
		cfg.Receipt.MaxItems = 10
	}
}

func normalizePaths(cfg *Config) {
	cfg.General.StateDB = ExpandHome(cfg.General.StateDB)
	cfg.General.LockFile = ExpandHome(cfg.General.LockFile)
	cfg.Triage.StateDir = ExpandHome(cfg.Triage.StateDir)
}

func validate(cfg *Config) error {
	if cfg.General.StateDB == "" {
		return fmt.Errorf("general.state_db must not be empty")
	}
	switch cfg.General.ImportanceScorer {
	case "heuristic-v1", "off":
	default:
		return fmt.Errorf("general.importance_scorer must be heuristic-v1 or off, got %q", cfg.General.ImportanceScorer)
	}

	if cfg.Embedding.MaxChars <= 0 {
		return fmt.Errorf("embedding.max_chars must be positive")
	}
	if cfg.Embedding.HeadChars < 0 || cfg.Embedding.HeadChars > cfg.Embedding.MaxChars {
		return fmt.Errorf("embedding.head_chars must be between 0 and max_chars")
	}
	if cfg.Embedding.MaxBytes < 0 {
		return fmt.Errorf("embedding.max_bytes must not be negative")
	}
	if cfg.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive")
	}

	if cfg.Retrieval.MaxLimit <= 0 || cfg.Retrieval.MaxLimit > 50 {
		return fmt.Errorf("retrieval.max_limit must be in (0, 50]")
	}
	if cfg.Retrieval.DefaultLimit <= 0 || cfg.Retrieval.DefaultLimit > cfg.Retrieval.MaxLimit {
		return fmt.Errorf("retrieval.default_limit must be in (0, max_limit]")
	}
	if cfg.Retrieval.RRFK <= 0 {
		return fmt.Errorf("retrieval.rrf_k must be positive")
	}

	if cfg.Pack.BudgetTokens <= 0 {
		return fmt.Errorf("pack.budget_tokens must be positive")
	}
	if cfg.Pack.MaxItems <= 0 {
		return fmt.Errorf("pack.max_items must be positive")
	}

	if cfg.Policy.DedupeSimilarityThreshold <= 0 || cfg.Policy.DedupeSimilarityThreshold > 1 {
		return fmt.Errorf("policy.dedupe_similarity_threshold must be in (0, 1]")
	}
	if cfg.Policy.DuplicateSearchMinScore <= 0 || cfg.Policy.DuplicateSearchMinScore > 1 {
		return fmt.Errorf("policy.duplicate_search_min_score must be in (0, 1]")
	}
	if cfg.Policy.MaxItemsPerTurn <= 0 {
		return fmt.Errorf("policy.max_items_per_turn must be positive")
	}

	if cfg.Receipt.MaxItems <= 0 || cfg.Receipt.MaxItems > 10 {
		return fmt.Errorf("receipt.max_items must be in (0, 10]")
	}
	switch cfg.Receipt.Verbosity {
	case "low", "high":
	default:
		return fmt.Errorf("receipt.verbosity must be low or high, got %q", cfg.Receipt.Verbosity)
	}

	return nil
}

// Clone returns a deep-enough copy of cfg: safe for a reader to retain
// across a concurrent Set/Reload on the owning manager.
func (cfg *Config) Clone() *Config {
	if cfg == nil {
		return nil
	}
	clone := *cfg
	clone.Policy.AllowedCategories = cloneStringSlice(cfg.Policy.AllowedCategories)
	clone.Graph.CommitSources = cloneStringSlice(cfg.Graph.CommitSources)
	clone.Graph.MarkdownRoots = cloneStringSlice(cfg.Graph.MarkdownRoots)
	clone.Graph.IncludeExt = cloneStringSlice(cfg.Graph.IncludeExt)
	clone.Graph.ExcludeGlobs = cloneStringSlice(cfg.Graph.ExcludeGlobs)
	return &clone
}

func cloneStringSlice(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// ExpandHome expands a leading "~" to the current user's home directory.
func ExpandHome(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
