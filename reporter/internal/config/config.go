package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultDaysBack    = 1
	DefaultConcurrency = 10
	DefaultHTTPTimeout = 30 * time.Second
	DefaultStartOfDay  = 9
	DefaultEndOfDay    = 17
	DefaultPushJob     = "slareport"
)

// Report kinds.
const (
	KindPagerDutyIncidents  = "pagerduty_incidents"
	KindStatuspageSLO       = "statuspage_slo"
	KindStatuspageIncidents = "statuspage_incidents"
	KindPingdomOutages      = "pingdom_outages"
	KindPingdomSLO          = "pingdom_slo"
)

// Config is the full reporter configuration. Fields map 1:1 to
// config.example.yaml.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Window   WindowConfig   `yaml:"window"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Output   OutputConfig   `yaml:"output"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	// Reports lists the reports produced by each run, in order.
	Reports []Report `yaml:"reports"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
}

// ScheduleConfig controls repeated runs.
type ScheduleConfig struct {
	// Interval reruns every report on a ticker when positive. Zero runs once.
	Interval time.Duration `yaml:"interval"`
}

// WindowConfig anchors the reporting window.
type WindowConfig struct {
	// EndDate is the exclusive end date, YYYY-MM-DD. Empty means today (UTC).
	EndDate string `yaml:"end_date"`
	// DaysBack is the window length in days, used by reports that do not
	// set their own.
	DaysBack int `yaml:"days_back"`
}

// FetchConfig bounds upstream traffic.
type FetchConfig struct {
	// Concurrency caps per-entity requests in flight.
	Concurrency int `yaml:"concurrency"`
	// OpTimeout bounds each per-entity request; zero means none.
	OpTimeout time.Duration `yaml:"op_timeout"`
	// HTTPTimeout is the client-level timeout for a single HTTP exchange.
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	// RatePerSecond paces requests to each upstream; zero disables pacing.
	RatePerSecond float64 `yaml:"rate_per_second"`
	// Burst is the limiter bucket size.
	Burst int `yaml:"burst"`
}

// OutputConfig selects where encoded reports go.
type OutputConfig struct {
	// Sink is s3 or dir.
	Sink string `yaml:"sink"`
	// Dir is the target directory when Sink is dir.
	Dir string `yaml:"dir"`
	S3  S3Config `yaml:"s3"`
	// UploadAttempts bounds attempts per object; zero uses the shipper default.
	UploadAttempts int `yaml:"upload_attempts"`
}

// S3Config configures the object store sink.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	// PathStyle addresses buckets as endpoint/bucket, needed for MinIO.
	PathStyle bool `yaml:"path_style"`

	// Env var names holding static credentials.
	AccessKeyEnv    string `yaml:"access_key_env"`
	SecretKeyEnv    string `yaml:"secret_key_env"`
	SessionTokenEnv string `yaml:"session_token_env"`
}

// AccessKey returns the access key id resolved from the environment.
func (s S3Config) AccessKey() string { return getenv(s.AccessKeyEnv) }

// SecretKey returns the secret access key resolved from the environment.
func (s S3Config) SecretKey() string { return getenv(s.SecretKeyEnv) }

// SessionToken returns the optional session token resolved from the environment.
func (s S3Config) SessionToken() string { return getenv(s.SessionTokenEnv) }

// MetricsConfig configures run metrics export. Both targets are optional.
type MetricsConfig struct {
	// Textfile is a node-exporter textfile collector path.
	Textfile string `yaml:"textfile"`
	// PushgatewayURL, when set, receives the run metrics after each run.
	PushgatewayURL string `yaml:"pushgateway_url"`
	// Job is the Pushgateway job label.
	Job string `yaml:"job"`
}

// Report is one configured report.
type Report struct {
	// Name identifies the report in logs and metrics.
	Name string `yaml:"name"`
	// Kind is one of the Kind* constants.
	Kind string `yaml:"kind"`

	Source Source `yaml:"source"`

	// Prefix is prepended to every object key or file name.
	Prefix string `yaml:"prefix"`
	// Encoding is csv or jsonl.
	Encoding string `yaml:"encoding"`
	// Header writes a CSV header row. Defaults to true.
	Header *bool `yaml:"header"`
	// TimeFormat is athena or epoch_millis.
	TimeFormat string `yaml:"time_format"`
	// DaysBack overrides window.days_back for this report.
	DaysBack int `yaml:"days_back"`
	// PartitionByDay writes one file per report day instead of one per window.
	PartitionByDay bool `yaml:"partition_by_day"`

	Rules  RulesConfig  `yaml:"rules"`
	Hours  HoursConfig  `yaml:"hours"`
	Credit CreditConfig `yaml:"credit"`
}

// WriteHeader reports whether CSV output carries a header row.
func (r Report) WriteHeader() bool { return r.Header == nil || *r.Header }

// Source describes the upstream API of a report.
type Source struct {
	// BaseURL overrides the public API root; used for tests and proxies.
	BaseURL string `yaml:"base_url"`
	// PageID is the Statuspage page id.
	PageID string `yaml:"page_id"`
	// PageSize is the requested page size for paginated listings.
	PageSize int `yaml:"page_size"`

	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig specifies how the reporter authenticates to an upstream.
type AuthConfig struct {
	// Mode is one of: token (PagerDuty) | bearer (Pingdom) | oauth
	// (Statuspage) | none.
	Mode string `yaml:"mode"`
	// TokenEnv is the name of the environment variable holding the key.
	TokenEnv string `yaml:"token_env"`
}

// Token returns the credential resolved from the environment.
func (a AuthConfig) Token() string { return getenv(a.TokenEnv) }

// RulesConfig holds the classifier exclusions for a report.
type RulesConfig struct {
	// ExcludeServices drops PagerDuty incidents whose service name contains
	// any entry.
	ExcludeServices []string `yaml:"exclude_services"`
	// ExcludeLowUrgency drops PagerDuty incidents with urgency "low".
	ExcludeLowUrgency bool `yaml:"exclude_low_urgency"`
	// DowntimeStatuses are the Pingdom states counted as downtime.
	DowntimeStatuses []string `yaml:"downtime_statuses"`
}

// HoursConfig is the responder working day in local hours.
type HoursConfig struct {
	StartOfDay int `yaml:"start_of_day"`
	EndOfDay   int `yaml:"end_of_day"`
}

// CreditConfig selects the responder credit policy.
type CreditConfig struct {
	// Policy is first_responder or last_responder.
	Policy string `yaml:"policy"`
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults, then SLAREPORT_*
// environment variables override file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applyReportDefaults(cfg)

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Window:  WindowConfig{DaysBack: DefaultDaysBack},
		Fetch: FetchConfig{
			Concurrency: DefaultConcurrency,
			HTTPTimeout: DefaultHTTPTimeout,
		},
		Output:  OutputConfig{Sink: "s3"},
		Metrics: MetricsConfig{Job: DefaultPushJob},
	}
}

// applyReportDefaults fills per-report fields that depend on the kind.
func applyReportDefaults(cfg *Config) {
	for i := range cfg.Reports {
		r := &cfg.Reports[i]
		if r.Name == "" {
			r.Name = r.Kind
		}
		if r.DaysBack == 0 {
			r.DaysBack = cfg.Window.DaysBack
		}
		if r.Encoding == "" {
			r.Encoding = "jsonl"
			if r.Kind == KindPingdomOutages {
				r.Encoding = "csv"
			}
		}
		if r.Hours == (HoursConfig{}) {
			r.Hours = HoursConfig{StartOfDay: DefaultStartOfDay, EndOfDay: DefaultEndOfDay}
		}
		if len(r.Rules.DowntimeStatuses) == 0 && r.Kind == KindPingdomSLO {
			r.Rules.DowntimeStatuses = []string{"down"}
		}
		if r.Source.Auth.Mode == "" {
			switch r.Kind {
			case KindPagerDutyIncidents:
				r.Source.Auth.Mode = "token"
			case KindPingdomOutages, KindPingdomSLO:
				r.Source.Auth.Mode = "bearer"
			case KindStatuspageSLO, KindStatuspageIncidents:
				r.Source.Auth.Mode = "oauth"
			}
		}
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SLAREPORT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SLAREPORT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SLAREPORT_END_DATE"); v != "" {
		cfg.Window.EndDate = v
	}
	if v := os.Getenv("SLAREPORT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SLAREPORT_INTERVAL: %w", err)
		}
		cfg.Schedule.Interval = d
	}
	if v := os.Getenv("SLAREPORT_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SLAREPORT_CONCURRENCY: %w", err)
		}
		cfg.Fetch.Concurrency = n
	}
	if v := os.Getenv("SLAREPORT_OUTPUT_SINK"); v != "" {
		cfg.Output.Sink = v
	}
	if v := os.Getenv("SLAREPORT_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("SLAREPORT_S3_BUCKET"); v != "" {
		cfg.Output.S3.Bucket = v
	}
	if v := os.Getenv("SLAREPORT_S3_REGION"); v != "" {
		cfg.Output.S3.Region = v
	}
	if v := os.Getenv("SLAREPORT_S3_ENDPOINT"); v != "" {
		cfg.Output.S3.Endpoint = v
	}
	if v := os.Getenv("SLAREPORT_PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
	if v := os.Getenv("SLAREPORT_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
	return nil
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format: unknown format %q", cfg.Logging.Format)
	}
	if cfg.Schedule.Interval < 0 {
		return fmt.Errorf("schedule.interval must not be negative")
	}
	if cfg.Window.EndDate != "" {
		if _, err := time.Parse("2006-01-02", cfg.Window.EndDate); err != nil {
			return fmt.Errorf("window.end_date: %w", err)
		}
	}
	if cfg.Window.DaysBack < 1 {
		return fmt.Errorf("window.days_back must be at least 1")
	}
	if cfg.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be positive")
	}
	if cfg.Fetch.RatePerSecond < 0 {
		return fmt.Errorf("fetch.rate_per_second must not be negative")
	}

	switch cfg.Output.Sink {
	case "s3":
		if cfg.Output.S3.Bucket == "" {
			return fmt.Errorf("output.s3.bucket is required for the s3 sink")
		}
		if cfg.Output.S3.Region == "" {
			return fmt.Errorf("output.s3.region is required for the s3 sink")
		}
	case "dir":
		if cfg.Output.Dir == "" {
			return fmt.Errorf("output.dir is required for the dir sink")
		}
	default:
		return fmt.Errorf("output.sink: unknown sink %q", cfg.Output.Sink)
	}
	if cfg.Output.UploadAttempts < 0 {
		return fmt.Errorf("output.upload_attempts must not be negative")
	}

	if len(cfg.Reports) == 0 {
		return fmt.Errorf("at least one report is required")
	}
	seen := make(map[string]bool, len(cfg.Reports))
	for i, r := range cfg.Reports {
		if err := validateReport(r); err != nil {
			return fmt.Errorf("reports[%d] %q: %w", i, r.Name, err)
		}
		if seen[r.Name] {
			return fmt.Errorf("reports[%d]: duplicate name %q", i, r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

func validateReport(r Report) error {
	switch r.Kind {
	case KindPagerDutyIncidents, KindPingdomOutages, KindPingdomSLO:
	case KindStatuspageSLO, KindStatuspageIncidents:
		if r.Source.PageID == "" {
			return fmt.Errorf("source.page_id is required")
		}
	default:
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	switch r.Encoding {
	case "csv", "jsonl":
	default:
		return fmt.Errorf("unknown encoding %q", r.Encoding)
	}
	switch r.TimeFormat {
	case "", "athena", "epoch_millis":
	default:
		return fmt.Errorf("unknown time_format %q", r.TimeFormat)
	}
	switch r.Source.Auth.Mode {
	case "token", "bearer", "oauth", "none":
	default:
		return fmt.Errorf("unknown auth mode %q", r.Source.Auth.Mode)
	}
	if r.DaysBack < 1 {
		return fmt.Errorf("days_back must be at least 1")
	}
	if r.Source.PageSize < 0 {
		return fmt.Errorf("source.page_size must not be negative")
	}
	h := r.Hours
	if h.StartOfDay < 0 || h.EndOfDay > 24 || h.StartOfDay >= h.EndOfDay {
		return fmt.Errorf("hours %d-%d: want 0 <= start_of_day < end_of_day <= 24", h.StartOfDay, h.EndOfDay)
	}
	switch r.Credit.Policy {
	case "", "first_responder", "last_responder":
	default:
		return fmt.Errorf("unknown credit policy %q", r.Credit.Policy)
	}
	return nil
}
