package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds the daemon configuration, sourced from the environment.
type Config struct {
	// Channel is the RFCOMM channel the server listens on.
	Channel int `validate:"min=1,max=30"`
	// AdapterName is the local bluetooth adapter made discoverable at startup.
	AdapterName string `validate:"required"`
	PidFile     string `validate:"required"`
	LogFile     string `validate:"required"`
	LogLevel    string
	// GpsdAddress is the TCP address of the gpsd daemon.
	GpsdAddress  string        `validate:"required"`
	SendInterval time.Duration `validate:"gt=0"`
	// AcceptRetryDelay is the pause after a failed accept before retrying.
	AcceptRetryDelay time.Duration `validate:"gt=0"`
	// WriteTimeout bounds each send so a half-open peer cannot stall the loop.
	WriteTimeout time.Duration `validate:"gt=0"`
	// StopGracePeriod is how long `stop` waits for the daemon to exit
	// before escalating to SIGKILL.
	StopGracePeriod time.Duration `validate:"gt=0"`
	// MetricsListenAddr is the address of the Prometheus endpoint.
	// Empty disables metrics.
	MetricsListenAddr string
}

func Load() (*Config, error) {
	channel, err := getEnvInt("GPSLINKD_CHANNEL", 1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Channel:           channel,
		AdapterName:       getEnv("GPSLINKD_ADAPTER", "hci0"),
		PidFile:           getEnv("GPSLINKD_PID_FILE", "/var/run/gpslinkd.pid"),
		LogFile:           getEnv("GPSLINKD_LOG_FILE", "/var/log/gpslinkd.log"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		GpsdAddress:       getEnv("GPSD_ADDRESS", "localhost:2947"),
		MetricsListenAddr: "127.0.0.1:9478",
	}

	// Setting GPSLINKD_METRICS_ADDR to the empty string disables metrics,
	// so distinguish unset from empty here.
	if v, ok := os.LookupEnv("GPSLINKD_METRICS_ADDR"); ok {
		cfg.MetricsListenAddr = v
	}

	for _, d := range []struct {
		dst      *time.Duration
		key      string
		fallback time.Duration
	}{
		{&cfg.SendInterval, "GPSLINKD_SEND_INTERVAL", 2 * time.Second},
		{&cfg.AcceptRetryDelay, "GPSLINKD_ACCEPT_RETRY_DELAY", time.Second},
		{&cfg.WriteTimeout, "GPSLINKD_WRITE_TIMEOUT", 10 * time.Second},
		{&cfg.StopGracePeriod, "GPSLINKD_STOP_GRACE_PERIOD", 5 * time.Second},
	} {
		v, err := getEnvDuration(d.key, d.fallback)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
