package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/listsync/internal/domain"
)

// Config holds all configuration for the list sync
type Config struct {
	Mailchimp MailchimpConfig `yaml:"mailchimp"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Sync      SyncConfig      `yaml:"sync"`
	Lists     []ListMapping   `yaml:"lists"`
	Report    ReportConfig    `yaml:"report"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MailchimpConfig holds mailing list API configuration
type MailchimpConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"` // derived from the API key's data center when empty
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Timeout returns the configured timeout as a duration
func (c MailchimpConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolvedBaseURL returns BaseURL, or the data-center URL encoded in the
// API key suffix ("xxxx-us6" -> https://us6.api.mailchimp.com/3.0).
func (c MailchimpConfig) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if i := strings.LastIndex(c.APIKey, "-"); i >= 0 && i < len(c.APIKey)-1 {
		return fmt.Sprintf("https://%s.api.mailchimp.com/3.0", c.APIKey[i+1:])
	}
	return ""
}

// DatabaseConfig holds the CRM/staging PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the Redis connection used for run locks. Empty URL
// means locks fall back to PostgreSQL advisory locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// SyncConfig holds engine tuning knobs
type SyncConfig struct {
	PageSize            int    `yaml:"page_size"`
	MaxBatchSize        int    `yaml:"max_batch_size"`
	SerialThreshold     int    `yaml:"serial_threshold"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	MaxWaitMinutes      int    `yaml:"max_wait_minutes"`
	LockTTLSeconds      int    `yaml:"lock_ttl_seconds"`
	DryRun              bool   `yaml:"dry_run"`
	Actor               string `yaml:"actor"`
	KeepStaging         bool   `yaml:"keep_staging"`
}

// PollInterval returns the batch polling interval as a duration
func (c SyncConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// MaxWait returns the batch polling deadline as a duration
func (c SyncConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitMinutes) * time.Minute
}

// LockTTL returns the per-list lock TTL as a duration
func (c SyncConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ListMapping maps one mailing list to its CRM groups
type ListMapping struct {
	ListID            string          `yaml:"list_id"`
	MembershipGroupID int64           `yaml:"membership_group_id"`
	Interests         []InterestGroup `yaml:"interests"`
}

// InterestGroup maps a CRM group to one list interest
type InterestGroup struct {
	GroupID          int64  `yaml:"group_id"`
	InterestID       string `yaml:"interest_id"`
	ListMayUpdateCRM bool   `yaml:"list_may_update_crm"`
}

// ReportConfig holds run report destinations. Empty values disable a sink.
type ReportConfig struct {
	S3Bucket      string `yaml:"s3_bucket"`
	S3Prefix      string `yaml:"s3_prefix"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`
	AWSProfile    string `yaml:"aws_profile"`
}

// Enabled reports whether any AWS sink is configured
func (c ReportConfig) Enabled() bool {
	return c.S3Bucket != "" || c.DynamoDBTable != ""
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// ShouldRedact returns the redaction setting, defaulting to true
func (c LoggingConfig) ShouldRedact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Mappings flattens the list configuration into interest mappings.
func (c *Config) Mappings() []domain.InterestMapping {
	var out []domain.InterestMapping
	for _, l := range c.Lists {
		if l.MembershipGroupID != 0 {
			out = append(out, domain.InterestMapping{GroupID: l.MembershipGroupID, ListID: l.ListID})
		}
		for _, i := range l.Interests {
			out = append(out, domain.InterestMapping{
				GroupID:          i.GroupID,
				ListID:           l.ListID,
				InterestID:       i.InterestID,
				ListMayUpdateCRM: i.ListMayUpdateCRM,
			})
		}
	}
	return out
}

// ListIDs returns the configured list ids in file order.
func (c *Config) ListIDs() []string {
	ids := make([]string, 0, len(c.Lists))
	for _, l := range c.Lists {
		ids = append(ids, l.ListID)
	}
	return ids
}

// ListConfig builds the validated per-list configuration for one list.
func (c *Config) ListConfig(listID string) (domain.ListConfig, error) {
	return domain.NewListConfig(listID, c.Mappings())
}

// ListConfigs validates and builds the configuration of every list.
func (c *Config) ListConfigs() ([]domain.ListConfig, error) {
	mappings := c.Mappings()
	out := make([]domain.ListConfig, 0, len(c.Lists))
	for _, l := range c.Lists {
		lc, err := domain.NewListConfig(l.ListID, mappings)
		if err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, nil
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Mailchimp.TimeoutSeconds == 0 {
		cfg.Mailchimp.TimeoutSeconds = 60
	}
	if cfg.Mailchimp.MaxRetries == 0 {
		cfg.Mailchimp.MaxRetries = 3
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 1000
	}
	if cfg.Sync.MaxBatchSize == 0 {
		cfg.Sync.MaxBatchSize = 1000
	}
	if cfg.Sync.SerialThreshold == 0 {
		cfg.Sync.SerialThreshold = 10
	}
	if cfg.Sync.PollIntervalSeconds == 0 {
		cfg.Sync.PollIntervalSeconds = 10
	}
	if cfg.Sync.MaxWaitMinutes == 0 {
		cfg.Sync.MaxWaitMinutes = 60
	}
	if cfg.Sync.LockTTLSeconds == 0 {
		cfg.Sync.LockTTLSeconds = 300
	}
	if cfg.Sync.Actor == "" {
		cfg.Sync.Actor = "listsync"
	}
	if cfg.Report.S3Prefix == "" {
		cfg.Report.S3Prefix = "listsync/runs"
	}
	if cfg.Report.AWSRegion == "" {
		cfg.Report.AWSRegion = "us-west-2"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if apiKey := os.Getenv("MAILCHIMP_API_KEY"); apiKey != "" {
		cfg.Mailchimp.APIKey = apiKey
	}
	if baseURL := os.Getenv("MAILCHIMP_BASE_URL"); baseURL != "" {
		cfg.Mailchimp.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if dryRun := os.Getenv("LISTSYNC_DRY_RUN"); dryRun != "" {
		if v, err := strconv.ParseBool(dryRun); err == nil {
			cfg.Sync.DryRun = v
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if bucket := os.Getenv("REPORT_S3_BUCKET"); bucket != "" {
		cfg.Report.S3Bucket = bucket
	}
	if table := os.Getenv("REPORT_DYNAMODB_TABLE"); table != "" {
		cfg.Report.DynamoDBTable = table
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.Report.AWSRegion = region
	}

	return cfg, nil
}
