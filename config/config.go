// Package config loads the station configuration from defaults, an optional
// config file, a .env file, CHECKIN_* environment variables and flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment variable, e.g. CHECKIN_API_TOKEN
const EnvPrefix = "CHECKIN"

// Printer transports
const (
	TransportBluetooth = "bluetooth"
	TransportUSB       = "usb"
)

// Config is the resolved configuration
type Config struct {
	// List asks for the known printers and serial ports instead of running
	// the station
	List bool

	API     APIConfig
	Printer PrinterConfig
	Ticket  TicketConfig
	HTTP    HTTPConfig
	Raw     RawConfig
	Scan    ScanConfig
	Log     LogConfig
}

type APIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type PrinterConfig struct {
	Transport     string
	PreferredName string
	RFCOMMChannel int
	BaudRate      int
	USBVendor     uint16
	USBProduct    uint16
	AutoConnect   bool
}

type TicketConfig struct {
	Title    string
	Width    int
	Encoding string
}

type HTTPConfig struct {
	Address string
}

type RawConfig struct {
	Enabled bool
	Address string
}

type ScanConfig struct {
	Stdin     bool
	AutoPrint bool
}

type LogConfig struct {
	Level       string
	Development bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://admin.skillbridgebd.com/api")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", "15s")

	v.SetDefault("printer.transport", TransportBluetooth)
	v.SetDefault("printer.preferred_name", "p210")
	v.SetDefault("printer.rfcomm_channel", 1)
	v.SetDefault("printer.baud_rate", 115200)
	v.SetDefault("printer.usb_vid", "")
	v.SetDefault("printer.usb_pid", "")
	v.SetDefault("printer.auto_connect", true)

	v.SetDefault("ticket.title", "CHECK-IN TICKET")
	v.SetDefault("ticket.width", 32)
	v.SetDefault("ticket.encoding", "CP437")

	v.SetDefault("http.address", "localhost:8080")

	v.SetDefault("raw.enabled", true)
	v.SetDefault("raw.address", "localhost:9100")

	v.SetDefault("scan.stdin", true)
	v.SetDefault("scan.auto_print", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// flag name -> config key
var flagKeys = map[string]string{
	"api-url":      "api.base_url",
	"api-token":    "api.token",
	"transport":    "printer.transport",
	"printer":      "printer.preferred_name",
	"http-address": "http.address",
	"raw-address":  "raw.address",
	"no-raw":       "",
	"no-stdin":     "",
	"log-level":    "log.level",
	"dev":          "log.development",
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("escpos-checkin", pflag.ContinueOnError)
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.String("env-file", ".env", "dotenv file loaded into the environment when present")
	flags.String("api-url", "", "backend base URL")
	flags.String("api-token", "", "backend token")
	flags.String("transport", "", "printer transport: bluetooth or usb")
	flags.String("printer", "", "preferred printer name (case-insensitive substring)")
	flags.String("http-address", "", "operator API listen address")
	flags.String("raw-address", "", "raw print server listen address")
	flags.Bool("no-raw", false, "disable the raw print server")
	flags.Bool("no-stdin", false, "do not read scanned codes from stdin")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("dev", false, "development logging")
	flags.Bool("list", false, "list printers and serial ports, then exit")
	return flags
}

// Load resolves the configuration. args excludes the program name.
func Load(args []string) (*Config, error) {
	fset := newFlagSet()
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	envFile, _ := fset.GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, _ := fset.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for name, key := range flagKeys {
		f := fset.Lookup(name)
		if key == "" || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	if fset.Changed("no-raw") {
		v.Set("raw.enabled", false)
	}
	if fset.Changed("no-stdin") {
		v.Set("scan.stdin", false)
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	cfg.List, _ = fset.GetBool("list")
	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL: strings.TrimSpace(v.GetString("api.base_url")),
			Token:   v.GetString("api.token"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Printer: PrinterConfig{
			Transport:     strings.ToLower(strings.TrimSpace(v.GetString("printer.transport"))),
			PreferredName: v.GetString("printer.preferred_name"),
			RFCOMMChannel: v.GetInt("printer.rfcomm_channel"),
			BaudRate:      v.GetInt("printer.baud_rate"),
			AutoConnect:   v.GetBool("printer.auto_connect"),
		},
		Ticket: TicketConfig{
			Title:    v.GetString("ticket.title"),
			Width:    v.GetInt("ticket.width"),
			Encoding: v.GetString("ticket.encoding"),
		},
		HTTP: HTTPConfig{Address: v.GetString("http.address")},
		Raw: RawConfig{
			Enabled: v.GetBool("raw.enabled"),
			Address: v.GetString("raw.address"),
		},
		Scan: ScanConfig{
			Stdin:     v.GetBool("scan.stdin"),
			AutoPrint: v.GetBool("scan.auto_print"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
	}

	var err error
	if cfg.Printer.USBVendor, err = parseUSBID(v.GetString("printer.usb_vid")); err != nil {
		return nil, fmt.Errorf("printer.usb_vid: %w", err)
	}
	if cfg.Printer.USBProduct, err = parseUSBID(v.GetString("printer.usb_pid")); err != nil {
		return nil, fmt.Errorf("printer.usb_pid: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseUSBID reads a hex id such as "0416" or "0x0416"; empty means any
func parseUSBID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid usb id %q", s)
	}
	return uint16(n), nil
}

// Validate checks values that have no usable fallback
func (c *Config) Validate() error {
	switch c.Printer.Transport {
	case TransportBluetooth, TransportUSB:
	default:
		return fmt.Errorf("printer.transport must be %q or %q, got %q", TransportBluetooth, TransportUSB, c.Printer.Transport)
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.Ticket.Width < 16 {
		return fmt.Errorf("ticket.width must be at least 16, got %d", c.Ticket.Width)
	}
	if c.HTTP.Address == "" {
		return errors.New("http.address is required")
	}
	if c.Raw.Enabled && c.Raw.Address == "" {
		return errors.New("raw.address is required when the raw server is enabled")
	}
	return nil
}

// Logger builds the zap logger described by c
func (c LogConfig) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		level, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zc.Level = level
	}
	return zc.Build()
}
