package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"hvacbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Business   BusinessConfig   `yaml:"business"`
	HTTP       HTTPConfig       `yaml:"http"`
	Mail       MailConfig       `yaml:"mail"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Booking    BookingConfig    `yaml:"booking"`
	Store      StoreConfig      `yaml:"store"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type BusinessConfig struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

type HTTPConfig struct {
	Port         int                 `yaml:"port"`
	CORS         CORSConfig          `yaml:"cors"`
	RateLimit    HTTPRateLimitConfig `yaml:"rate_limit"`
	WriteTimeout time.Duration       `yaml:"write_timeout"`

	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool `yaml:"trust_proxy"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type HTTPRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MailConfig struct {
	Provider       string `yaml:"provider"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	FromAddress    string `yaml:"from_address"`
	BusinessInbox  string `yaml:"business_inbox"`
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
}

type ScheduleConfig struct {
	Policy string        `yaml:"policy"`
	Fixed  []models.Slot `yaml:"fixed"`
	Weekly WeeklyConfig  `yaml:"weekly"`
}

type WeeklyConfig struct {
	Monday    []models.Slot `yaml:"monday"`
	Tuesday   []models.Slot `yaml:"tuesday"`
	Wednesday []models.Slot `yaml:"wednesday"`
	Thursday  []models.Slot `yaml:"thursday"`
	Friday    []models.Slot `yaml:"friday"`
	Saturday  []models.Slot `yaml:"saturday"`
	Sunday    []models.Slot `yaml:"sunday"`
}

type BookingConfig struct {
	InviteTimeout   time.Duration `yaml:"invite_timeout"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

const (
	PolicyFixed  = "fixed"
	PolicyWeekly = "weekly"

	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"

	MailSMTP     = "smtp"
	MailSendGrid = "sendgrid"
)

// Load reads an optional .env file, then an optional YAML file, then the
// EMAIL_USER/EMAIL_PASS/BUSINESS_EMAIL/PORT style environment overrides.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var config Config

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		// Переменные окружения подставляются до разбора YAML
		expandedData := []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(expandedData, &config); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// env-only deployment
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("EMAIL_USER"); v != "" {
		c.Mail.Username = v
	}
	if v := os.Getenv("EMAIL_PASS"); v != "" {
		c.Mail.Password = v
	}
	if v := os.Getenv("BUSINESS_EMAIL"); v != "" {
		c.Mail.BusinessInbox = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		c.Mail.SendGridAPIKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.HTTP.Port = port
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.HTTP.CORS.AllowedOrigins = splitCSV(v)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "hvacbook"
	}
	if c.Business.Name == "" {
		c.Business.Name = "J & L Climate Co."
	}
	if c.Business.Timezone == "" {
		c.Business.Timezone = "Local"
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = models.DefaultHTTPPort
	}
	if len(c.HTTP.CORS.AllowedOrigins) == 0 {
		c.HTTP.CORS.AllowedOrigins = []string{"*"}
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = models.DefaultWriteTimeout
	}
	if c.HTTP.RateLimit.RPS > 0 && c.HTTP.RateLimit.Burst <= 0 {
		c.HTTP.RateLimit.Burst = 5
	}

	if c.Mail.Provider == "" {
		c.Mail.Provider = MailSMTP
	}
	if c.Mail.Host == "" {
		c.Mail.Host = "smtp.gmail.com"
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Mail.FromAddress == "" {
		c.Mail.FromAddress = c.Mail.Username
	}
	// business inbox defaults to the sender mailbox
	if c.Mail.BusinessInbox == "" {
		c.Mail.BusinessInbox = c.Mail.FromAddress
	}

	if c.Schedule.Policy == "" {
		c.Schedule.Policy = PolicyWeekly
	}
	if c.Schedule.Policy == PolicyWeekly && c.Schedule.Weekly.empty() {
		c.Schedule.Weekly = DefaultWeekly()
	}

	if c.Booking.InviteTimeout <= 0 {
		c.Booking.InviteTimeout = models.DefaultInviteTimeout
	}
	if c.Booking.DeliveryTimeout <= 0 {
		c.Booking.DeliveryTimeout = models.DefaultDeliveryTimeout
	}

	if c.Store.Driver == "" {
		c.Store.Driver = StoreMemory
	}
	if c.Store.Driver == StoreSQLite && c.Store.Path == "" {
		c.Store.Path = "data/bookings.db"
	}

	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 3 * * *"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port %d out of range", c.HTTP.Port)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("business timezone: %w", err)
	}

	// /book holds the response until the invite and both mails are done
	if budget := c.Booking.InviteTimeout + c.Booking.DeliveryTimeout; budget >= c.HTTP.WriteTimeout {
		return fmt.Errorf("http write_timeout %s must exceed booking invite_timeout + delivery_timeout (%s)",
			c.HTTP.WriteTimeout, budget)
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreRedis:
		if c.Redis.Address == "" {
			return errors.New("redis address is required for the redis store")
		}
	case StoreSQLite:
		if c.Store.Path == "" {
			return errors.New("store path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Mail.Provider {
	case MailSMTP, MailSendGrid:
	default:
		return fmt.Errorf("unknown mail provider %q", c.Mail.Provider)
	}

	switch c.Schedule.Policy {
	case PolicyFixed:
		if len(c.Schedule.Fixed) == 0 {
			return errors.New("fixed schedule requires at least one slot")
		}
		return ValidateSlots(c.Schedule.Fixed)
	case PolicyWeekly:
		for _, day := range c.Schedule.Weekly.Days() {
			if err := ValidateSlots(day); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown schedule policy %q", c.Schedule.Policy)
	}
}

// ValidateSlots checks slot values are HH:MM and unique within one day.
func ValidateSlots(slots []models.Slot) error {
	seen := make(map[string]bool, len(slots))
	for _, slot := range slots {
		if len(slot.Value) != len(models.ClockLayout) {
			return fmt.Errorf("slot %q: expected HH:MM", slot.Value)
		}
		if _, err := time.Parse(models.ClockLayout, slot.Value); err != nil {
			return fmt.Errorf("slot %q: %w", slot.Value, err)
		}
		if seen[slot.Value] {
			return fmt.Errorf("duplicate slot value: %s", slot.Value)
		}
		seen[slot.Value] = true
	}
	return nil
}

// Location resolves the business time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Business.Timezone)
}

// MailConfigured reports whether the selected provider has credentials.
func (c *Config) MailConfigured() bool {
	if c.Mail.Provider == MailSendGrid {
		return c.Mail.SendGridAPIKey != "" && c.Mail.FromAddress != ""
	}
	return c.Mail.Username != "" && c.Mail.Password != ""
}

// Days returns the weekly lists indexed by time.Weekday.
func (w WeeklyConfig) Days() [7][]models.Slot {
	return [7][]models.Slot{
		time.Sunday:    w.Sunday,
		time.Monday:    w.Monday,
		time.Tuesday:   w.Tuesday,
		time.Wednesday: w.Wednesday,
		time.Thursday:  w.Thursday,
		time.Friday:    w.Friday,
		time.Saturday:  w.Saturday,
	}
}

func (w WeeklyConfig) empty() bool {
	for _, day := range w.Days() {
		if len(day) > 0 {
			return false
		}
	}
	return true
}

// DefaultWeekly is the catalog used when no schedule is configured:
// five weekday visits, two on Saturday, none on Sunday.
func DefaultWeekly() WeeklyConfig {
	weekday := []models.Slot{
		{Label: "8:00 AM", Value: "08:00"},
		{Label: "10:00 AM", Value: "10:00"},
		{Label: "12:00 PM", Value: "12:00"},
		{Label: "2:00 PM", Value: "14:00"},
		{Label: "4:00 PM", Value: "16:00"},
	}
	saturday := []models.Slot{
		{Label: "9:00 AM", Value: "09:00"},
		{Label: "11:00 AM", Value: "11:00"},
	}
	clone := func(s []models.Slot) []models.Slot { return append([]models.Slot(nil), s...) }

	return WeeklyConfig{
		Monday:    clone(weekday),
		Tuesday:   clone(weekday),
		Wednesday: clone(weekday),
		Thursday:  clone(weekday),
		Friday:    clone(weekday),
		Saturday:  saturday,
	}
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
