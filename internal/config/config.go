package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// CacheConfig selects cache backends and overrides per-data-type TTLs.
type CacheConfig struct {
	PrimaryBackend   string            `json:"primary_backend"`   // memory | file | redis
	FallbackBackends []string          `json:"fallback_backends"` // probed in order on primary miss
	MemoryMaxSize    int               `json:"memory_max_size"`
	FileCacheDir     string            `json:"file_cache_dir"`
	RedisAddr        string            `json:"redis_addr"`
	RedisPassword    string            `json:"redis_password"`
	RedisDB          int               `json:"redis_db"`
	DefaultTTL       map[string]int    `json:"default_ttl"` // data_type -> seconds
	ExtraOptions     map[string]string `json:"extra_options"`
}

// Config holds every runtime knob for an analysis run.
type Config struct {
	ProjectDir string `json:"project_dir"`
	ResultsDir string `json:"results_dir"`
	DataDir    string `json:"data_dir"`

	LLMProvider   string `json:"llm_provider"` // openai | deepseek
	DeepThinkLLM  string `json:"deep_think_llm"`
	QuickThinkLLM string `json:"quick_think_llm"`
	BackendURL    string `json:"backend_url"`
	OpenAIAPIKey  string `json:"openai_api_key"`
	DeepSeekKey   string `json:"deepseek_api_key"`

	MaxDebateRounds      int `json:"max_debate_rounds"`
	MaxRiskDiscussRounds int `json:"max_risk_discuss_rounds"`
	MaxRecurLimit        int `json:"max_recur_limit"`
	MaxToolIterations    int `json:"max_tool_iterations"`

	ParallelAnalysts   bool `json:"parallel_analysts"`
	MaxParallelWorkers int  `json:"max_parallel_workers"`
	AnalystTimeoutSec  int  `json:"analyst_timeout"`
	ToolTimeoutSec     int  `json:"tool_timeout"`
	ModelTimeoutSec    int  `json:"model_timeout"`
	HTTPTimeoutSec     int  `json:"http_timeout"`

	OnlineTools bool `json:"online_tools"`
	Debug       bool `json:"debug"`

	Cache CacheConfig `json:"cache"`

	// Data source selection and credentials.
	DefaultChinaDataSource string `json:"default_china_data_source"` // tushare | akshare | baostock | tdx
	TushareToken           string `json:"tushare_token"`
	AKToolsBaseURL         string `json:"aktools_base_url"`
	FinnhubAPIKey          string `json:"finnhub_api_key"`
	LongportAppKey         string `json:"longport_app_key"`
	LongportAppSecret      string `json:"longport_app_secret"`
	LongportAccessToken    string `json:"longport_access_token"`
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cacheDir := filepath.Join(currentDir, "data", "cache")

	return &Config{
		ProjectDir: currentDir,
		ResultsDir: filepath.Join(currentDir, "results"),
		DataDir:    filepath.Join(currentDir, "data"),

		LLMProvider:   "openai",
		DeepThinkLLM:  "o4-mini",
		QuickThinkLLM: "gpt-4o-mini",
		BackendURL:    "https://api.openai.com/v1",

		MaxDebateRounds:      1,
		MaxRiskDiscussRounds: 1,
		MaxRecurLimit:        100,
		MaxToolIterations:    10,

		ParallelAnalysts:   false,
		MaxParallelWorkers: 4,
		AnalystTimeoutSec:  300,
		ToolTimeoutSec:     60,
		ModelTimeoutSec:    180,
		HTTPTimeoutSec:     30,

		OnlineTools: true,

		Cache: CacheConfig{
			PrimaryBackend:   "memory",
			FallbackBackends: []string{"file"},
			MemoryMaxSize:    1000,
			FileCacheDir:     cacheDir,
			DefaultTTL:       map[string]int{},
		},

		DefaultChinaDataSource: "akshare",
		AKToolsBaseURL:         "http://127.0.0.1:8080",
	}
}

// FromEnv builds a config from defaults plus recognized environment
// variables. A .env in the working directory is loaded first if present.
func FromEnv() *Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if v := os.Getenv("TRADINGAGENTS_CACHE_DIR"); v != "" {
		cfg.Cache.FileCacheDir = v
	}
	if v := os.Getenv("TRADINGAGENTS_RESULTS_DIR"); v != "" {
		cfg.ResultsDir = v
	}
	if v := os.Getenv("TRADINGAGENTS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DEFAULT_CHINA_DATA_SOURCE"); v != "" {
		cfg.DefaultChinaDataSource = strings.ToLower(v)
	}
	if v := os.Getenv("PARALLEL_ANALYSTS_ENABLED"); v != "" {
		cfg.ParallelAnalysts = parseBool(v, cfg.ParallelAnalysts)
	}
	if v := os.Getenv("MAX_PARALLEL_WORKERS"); v != "" {
		cfg.MaxParallelWorkers = parseInt(v, cfg.MaxParallelWorkers)
	}
	if v := os.Getenv("ANALYST_TIMEOUT"); v != "" {
		cfg.AnalystTimeoutSec = parseInt(v, cfg.AnalystTimeoutSec)
	}
	if v := os.Getenv("ONLINE_TOOLS_ENABLED"); v != "" {
		cfg.OnlineTools = parseBool(v, cfg.OnlineTools)
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.DeepSeekKey = os.Getenv("DEEPSEEK_API_KEY")
	cfg.TushareToken = os.Getenv("TUSHARE_TOKEN")
	cfg.FinnhubAPIKey = os.Getenv("FINNHUB_API_KEY")
	cfg.LongportAppKey = os.Getenv("LONGPORT_APP_KEY")
	cfg.LongportAppSecret = os.Getenv("LONGPORT_APP_SECRET")
	cfg.LongportAccessToken = os.Getenv("LONGPORT_ACCESS_TOKEN")
	if v := os.Getenv("AKTOOLS_BASE_URL"); v != "" {
		cfg.AKToolsBaseURL = v
	}

	return cfg
}

// DepthProfile is one row of the research-depth table.
type DepthProfile struct {
	MaxDebateRounds      int
	MaxRiskDiscussRounds int
	DeepModel            string
	QuickModel           string
	OnlineTools          bool
	MemoryEnabled        bool
}

// depthTable maps research_depth 1..5 to its profile. Depths 1-2 run on
// quick model profiles, 3 is the default, 4-5 enlarge debate rounds and
// move to deep profiles.
var depthTable = map[int]DepthProfile{
	1: {1, 1, "gpt-4o-mini", "gpt-4o-mini", true, true},
	2: {1, 1, "gpt-4o-mini", "gpt-4o-mini", true, true},
	3: {1, 1, "o4-mini", "gpt-4o-mini", true, true},
	4: {2, 2, "o4-mini", "gpt-4o", true, true},
	5: {3, 2, "o4-mini", "gpt-4o", true, true},
}

// ApplyResearchDepth folds a research depth (clamped to 1..5) into the config.
func (c *Config) ApplyResearchDepth(depth int) {
	if depth < 1 {
		depth = 1
	}
	if depth > 5 {
		depth = 5
	}
	p := depthTable[depth]
	c.MaxDebateRounds = p.MaxDebateRounds
	c.MaxRiskDiscussRounds = p.MaxRiskDiscussRounds
	c.DeepThinkLLM = p.DeepModel
	c.QuickThinkLLM = p.QuickModel
	c.OnlineTools = c.OnlineTools && p.OnlineTools
}

// EnsureDirectories creates the result/data/cache directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.ResultsDir, c.DataDir, c.Cache.FileCacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func parseBool(s string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return b
}

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
