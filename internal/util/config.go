package util

import (
	"errors"
	"fmt"
	_ "github.com/joho/godotenv/autoload"
	"os"
	"strconv"
	"time"
)

type configValue struct {
	envVarName   string
	errorMessage string
	defaultValue string
	Value        string
}

func (v configValue) Int() (int, error) {
	i, err := strconv.Atoi(v.Value)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s: %w", v.envVarName, err)
	}

	return i, nil
}

func (v configValue) Duration() (time.Duration, error) {
	d, err := time.ParseDuration(v.Value)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s: %w", v.envVarName, err)
	}

	return d, nil
}

type Config struct {
	DevtoolsWebsocketUrl configValue
	BrowserDriver        configValue
	DbConnectionString   configValue
	SeqUrl               configValue
	SeqToken             configValue
	Environment          configValue
	LogLevel             configValue
	RoutesFile           configValue
	Workers              configValue
	RateLimitPerMinute   configValue
	NavigationTimeout    configValue
	DataWaitTimeout      configValue
	FetchTimeout         configValue
	FetchRetries         configValue
	RetryBaseDelay       configValue
	CalendarMaxPages     configValue
	RunTimeout           configValue
}

func NewConfig() *Config {
	const devtoolsWebsocketUrlName = "DEVTOOLS_WEBSOCKET_URL"
	const dbConnectionStringName = "DB_CONNECTION_STRING"

	return &Config{
		// empty means a local headless browser is launched per fetch
		DevtoolsWebsocketUrl: configValue{envVarName: devtoolsWebsocketUrlName},
		BrowserDriver:        configValue{envVarName: "BROWSER_DRIVER", defaultValue: "chromedp"},
		// checked by the command, dry runs do not need a database
		DbConnectionString: configValue{
			envVarName:   dbConnectionStringName,
			errorMessage: fmt.Sprintf("make sure that environment variable %s is set and in DSN format", dbConnectionStringName),
		},
		SeqUrl:             configValue{envVarName: "SEQ_URL"},
		SeqToken:           configValue{envVarName: "SEQ_TOKEN"},
		Environment:        configValue{envVarName: "ENVIRONMENT", defaultValue: "development"},
		LogLevel:           configValue{envVarName: "LOG_LEVEL", defaultValue: "debug"},
		RoutesFile:         configValue{envVarName: "ROUTES_FILE", defaultValue: "searches.yaml"},
		Workers:            configValue{envVarName: "WORKERS", defaultValue: "1"},
		RateLimitPerMinute: configValue{envVarName: "RATE_LIMIT_PER_MINUTE", defaultValue: "6"},
		NavigationTimeout:  configValue{envVarName: "NAVIGATION_TIMEOUT", defaultValue: "60s"},
		DataWaitTimeout:    configValue{envVarName: "DATA_WAIT_TIMEOUT", defaultValue: "15s"},
		FetchTimeout:       configValue{envVarName: "FETCH_TIMEOUT", defaultValue: "3m"},
		FetchRetries:       configValue{envVarName: "FETCH_RETRIES", defaultValue: "3"},
		RetryBaseDelay:     configValue{envVarName: "RETRY_BASE_DELAY", defaultValue: "2s"},
		CalendarMaxPages:   configValue{envVarName: "CALENDAR_MAX_PAGES", defaultValue: "3"},
		// 0 disables the per-run deadline
		RunTimeout: configValue{envVarName: "RUN_TIMEOUT", defaultValue: "0s"},
	}
}

func (c *Config) values() []*configValue {
	return []*configValue{
		&c.DevtoolsWebsocketUrl,
		&c.BrowserDriver,
		&c.DbConnectionString,
		&c.SeqUrl,
		&c.SeqToken,
		&c.Environment,
		&c.LogLevel,
		&c.RoutesFile,
		&c.Workers,
		&c.RateLimitPerMinute,
		&c.NavigationTimeout,
		&c.DataWaitTimeout,
		&c.FetchTimeout,
		&c.FetchRetries,
		&c.RetryBaseDelay,
		&c.CalendarMaxPages,
		&c.RunTimeout,
	}
}

// LoadConfig reads the configuration from the environment (and a .env file, if present).
func LoadConfig() (*Config, error) {
	config := NewConfig()

	for _, value := range config.values() {
		populateEnv(value)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) RequireDbConnectionString() error {
	if c.DbConnectionString.Value == "" {
		return errors.New(c.DbConnectionString.errorMessage)
	}

	return nil
}

func (c *Config) validate() error {
	switch c.BrowserDriver.Value {
	case "chromedp", "rod":
	default:
		return fmt.Errorf("environment variable %s must be chromedp or rod, got %q", c.BrowserDriver.envVarName, c.BrowserDriver.Value)
	}

	workers, err := c.Workers.Int()
	if err != nil {
		return err
	}
	if workers < 1 || workers > 4 {
		return fmt.Errorf("environment variable %s must be between 1 and 4, got %d", c.Workers.envVarName, workers)
	}

	for _, v := range []configValue{c.RateLimitPerMinute, c.FetchRetries, c.CalendarMaxPages} {
		i, err := v.Int()
		if err != nil {
			return err
		}
		if i < 1 {
			return fmt.Errorf("environment variable %s must be positive, got %d", v.envVarName, i)
		}
	}

	for _, v := range []configValue{c.NavigationTimeout, c.DataWaitTimeout, c.FetchTimeout, c.RetryBaseDelay, c.RunTimeout} {
		if _, err = v.Duration(); err != nil {
			return err
		}
	}

	return nil
}

func populateEnv(m *configValue) {
	v := os.Getenv(m.envVarName)
	if v == "" {
		v = m.defaultValue
	}

	m.Value = v
}
