package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/altf4-games/credshield-node/internal/log"
)

// Deployment mode values. See the Mode field.
const (
	ModeDeferred = "deferred"
	ModeEager    = "eager"
)

// Configuration holds the project configuration
type Configuration struct {
	ServerUrl                    string
	ServerPort                   int
	Mode                         string `tip:"Attestation mode: deferred or eager"`
	NativeProofGenerationEnabled bool
	Log                          Log       `mapstructure:"Log"`
	Cache                        Cache     `mapstructure:"Cache"`
	Ethereum                     Ethereum  `mapstructure:"Ethereum"`
	Prover                       Prover    `mapstructure:"Prover"`
	Circuit                      Circuit   `mapstructure:"Circuit"`
	Registry                     Registry  `mapstructure:"Registry"`
	Extractor                    Extractor `mapstructure:"Extractor"`
}

// Cache configurations
type Cache struct {
	RedisUrl string `mapstructure:"RedisUrl" tip:"The redis url to use as the verification record mirror"`
}

// Ethereum struct
type Ethereum struct {
	URL                  string        `tip:"Ethereum url"`
	ContractAddress      string        `tip:"Attestation contract address"`
	PrivateKey           string        `tip:"Hex private key of the submitter account"`
	DefaultGasLimit      int           `tip:"Default Gas Limit"`
	ReceiptTimeout       time.Duration `tip:"Receipt timeout"`
	MinGasPrice          int           `tip:"Minimum Gas Price"`
	MaxGasPrice          int           `tip:"Maximum Gas Price"`
	RPCResponseTimeout   time.Duration `tip:"RPC Response timeout"`
	WaitReceiptCycleTime time.Duration `tip:"Wait Receipt Cycle Time"`
}

// Prover struct
type Prover struct {
	ServerURL       string        `tip:"External prover server url (used when native proving is disabled)"`
	ResponseTimeout time.Duration `tip:"External prover response timeout"`
	ProvingTimeout  time.Duration `tip:"Deadline for a single proof generation"`
}

// Circuit struct
type Circuit struct {
	Path string `tip:"Circuit artifacts base path"`
	Name string `tip:"Circuit name (directory under Path)"`
}

// Registry holds verification code registry settings.
type Registry struct {
	CodeTTL time.Duration `mapstructure:"CodeTTL" tip:"How long an issued verification code stays redeemable"`
}

// Extractor holds the document extraction (vision model) settings. Leaving
// the ServerURL empty disables document upload issuance.
type Extractor struct {
	ServerURL       string        `tip:"Vision model API base url"`
	APIKey          string        `tip:"Vision model API key"`
	Model           string        `tip:"Vision model name"`
	ResponseTimeout time.Duration `tip:"Vision model response timeout"`
}

// Log holds runtime configurations
//
// Level: The minimum log level to show on logs. Values can be
//
//	 -4: Debug
//		0: Info
//		4: Warning
//		8: Error
//	 The default log level is debug
//
// Mode: Log mode is the format of the log. It can be text or json
// 1: JSON
// 2: Text
// The default log formal is JSON
type Log struct {
	Level int `mapstructure:"Level" tip:"Minimum level to log: (-4:Debug, 0:Info, 4:Warning, 8:Error)"`
	Mode  int `mapstructure:"Mode" tip:"Log format (1: JSON, 2:Structured text)"`
}

// Sanitize perform some basic checks and sanitizations in the configuration.
// Returns true if config is acceptable, error otherwise.
func (c *Configuration) Sanitize() error {
	sUrl, err := c.validateServerUrl()
	if err != nil {
		return fmt.Errorf("serverUrl is not a valid URL <%s>: %w", c.ServerUrl, err)
	}
	c.ServerUrl = sUrl

	if c.Mode == "" {
		c.Mode = ModeDeferred
	}
	if c.Mode != ModeDeferred && c.Mode != ModeEager {
		return fmt.Errorf("mode must be %q or %q, got <%s>", ModeDeferred, ModeEager, c.Mode)
	}

	if c.Circuit.Name == "" {
		c.Circuit.Name = "gpa_verifier"
	}

	return nil
}

func (c *Configuration) validateServerUrl() (string, error) {
	sUrl, err := url.ParseRequestURI(c.ServerUrl)
	if err != nil {
		return c.ServerUrl, err
	}
	if sUrl.Scheme == "" {
		return c.ServerUrl, fmt.Errorf("server URL must be an absolute URL")
	}
	sUrl.RawQuery = ""
	return strings.Trim(strings.Trim(sUrl.String(), "/"), "?"), nil
}

// Load loads the configuration from a file
func Load(fileName string) (*Configuration, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug(context.Background(), "loaded .env file")
	}
	bindEnv()
	pathFlag := viper.GetString("config")
	if _, err := os.Stat(pathFlag); err == nil {
		ext := filepath.Ext(pathFlag)
		if len(ext) > 1 {
			ext = ext[1:]
		}
		name := strings.Split(filepath.Base(pathFlag), ".")[0]
		viper.AddConfigPath(".")
		viper.SetConfigName(name)
		viper.SetConfigType(ext)
	} else {
		// Read default config file.
		viper.AddConfigPath(".")
		viper.SetConfigType("toml")
		if fileName == "" {
			viper.SetConfigName("config")
		} else {
			viper.SetConfigName(fileName)
		}
	}
	config := &Configuration{
		Log: Log{
			Level: log.LevelDebug,
			Mode:  log.OutputText,
		},
	}
	ctx := context.Background()
	if err := viper.ReadInConfig(); err != nil {
		log.Error(ctx, "error loading config file...", err)
	}

	if err := viper.Unmarshal(config); err != nil {
		log.Error(ctx, "error unmarshalling config file", err)
	}
	checkEnvVars(ctx, config)
	return config, nil
}

func bindEnv() {
	viper.SetEnvPrefix("CREDSHIELD")
	_ = viper.BindEnv("ServerUrl", "CREDSHIELD_SERVER_URL")
	_ = viper.BindEnv("ServerPort", "CREDSHIELD_SERVER_PORT")
	_ = viper.BindEnv("Mode", "CREDSHIELD_MODE")
	_ = viper.BindEnv("NativeProofGenerationEnabled", "CREDSHIELD_NATIVE_PROOF_GENERATION_ENABLED")

	_ = viper.BindEnv("Log.Level", "CREDSHIELD_LOG_LEVEL")
	_ = viper.BindEnv("Log.Mode", "CREDSHIELD_LOG_MODE")

	_ = viper.BindEnv("Ethereum.URL", "CREDSHIELD_ETHEREUM_URL")
	_ = viper.BindEnv("Ethereum.ContractAddress", "CREDSHIELD_ETHEREUM_CONTRACT_ADDRESS")
	_ = viper.BindEnv("Ethereum.PrivateKey", "CREDSHIELD_ETHEREUM_PRIVATE_KEY")
	_ = viper.BindEnv("Ethereum.DefaultGasLimit", "CREDSHIELD_ETHEREUM_DEFAULT_GAS_LIMIT")
	_ = viper.BindEnv("Ethereum.ReceiptTimeout", "CREDSHIELD_ETHEREUM_RECEIPT_TIMEOUT")
	_ = viper.BindEnv("Ethereum.MinGasPrice", "CREDSHIELD_ETHEREUM_MIN_GAS_PRICE")
	_ = viper.BindEnv("Ethereum.MaxGasPrice", "CREDSHIELD_ETHEREUM_MAX_GAS_PRICE")
	_ = viper.BindEnv("Ethereum.RPCResponseTimeout", "CREDSHIELD_ETHEREUM_RPC_RESPONSE_TIMEOUT")
	_ = viper.BindEnv("Ethereum.WaitReceiptCycleTime", "CREDSHIELD_ETHEREUM_WAIT_RECEIPT_CYCLE_TIME")

	_ = viper.BindEnv("Prover.ServerURL", "CREDSHIELD_PROVER_SERVER_URL")
	_ = viper.BindEnv("Prover.ResponseTimeout", "CREDSHIELD_PROVER_TIMEOUT")
	_ = viper.BindEnv("Prover.ProvingTimeout", "CREDSHIELD_PROVING_TIMEOUT")

	_ = viper.BindEnv("Circuit.Path", "CREDSHIELD_CIRCUIT_PATH")
	_ = viper.BindEnv("Circuit.Name", "CREDSHIELD_CIRCUIT_NAME")

	_ = viper.BindEnv("Cache.RedisUrl", "CREDSHIELD_REDIS_URL")

	_ = viper.BindEnv("Registry.CodeTTL", "CREDSHIELD_CODE_TTL")

	_ = viper.BindEnv("Extractor.ServerURL", "CREDSHIELD_EXTRACTOR_SERVER_URL")
	_ = viper.BindEnv("Extractor.APIKey", "CREDSHIELD_EXTRACTOR_API_KEY")
	_ = viper.BindEnv("Extractor.Model", "CREDSHIELD_EXTRACTOR_MODEL")
	_ = viper.BindEnv("Extractor.ResponseTimeout", "CREDSHIELD_EXTRACTOR_TIMEOUT")

	viper.AutomaticEnv()
}

func checkEnvVars(ctx context.Context, cfg *Configuration) {
	if cfg.ServerUrl == "" {
		log.Info(ctx, "CREDSHIELD_SERVER_URL value is missing")
	}

	if cfg.ServerPort == 0 {
		log.Info(ctx, "CREDSHIELD_SERVER_PORT value is missing")
	}

	if cfg.Ethereum.URL == "" {
		log.Info(ctx, "CREDSHIELD_ETHEREUM_URL value is missing")
	}

	if cfg.Ethereum.ContractAddress == "" {
		log.Info(ctx, "CREDSHIELD_ETHEREUM_CONTRACT_ADDRESS value is missing")
	}

	if cfg.Ethereum.DefaultGasLimit == 0 {
		log.Info(ctx, "CREDSHIELD_ETHEREUM_DEFAULT_GAS_LIMIT value is missing")
	}

	if cfg.Ethereum.ReceiptTimeout == 0 {
		log.Info(ctx, "CREDSHIELD_ETHEREUM_RECEIPT_TIMEOUT value is missing")
	}

	if cfg.Ethereum.MinGasPrice == 0 {
		log.Info(ctx, "CREDSHIELD_ETHEREUM_MIN_GAS_PRICE value is missing or is 0")
	}

	if cfg.Ethereum.MaxGasPrice == 0 {
		log.Info(ctx, "CREDSHIELD_ETHEREUM_MAX_GAS_PRICE value is missing or is 0")
	}

	if cfg.Ethereum.RPCResponseTimeout == 0 {
		log.Info(ctx, "CREDSHIELD_ETHEREUM_RPC_RESPONSE_TIMEOUT value is missing")
	}

	if cfg.Ethereum.WaitReceiptCycleTime == 0 {
		log.Info(ctx, "CREDSHIELD_ETHEREUM_WAIT_RECEIPT_CYCLE_TIME value is missing")
	}

	if !cfg.NativeProofGenerationEnabled && cfg.Prover.ServerURL == "" {
		log.Info(ctx, "CREDSHIELD_PROVER_SERVER_URL value is missing")
	}

	if cfg.Prover.ResponseTimeout == 0 {
		log.Info(ctx, "CREDSHIELD_PROVER_TIMEOUT value is missing")
	}

	if cfg.Circuit.Path == "" {
		log.Info(ctx, "CREDSHIELD_CIRCUIT_PATH value is missing")
	}

	if cfg.Cache.RedisUrl == "" {
		log.Info(ctx, "CREDSHIELD_REDIS_URL value is missing")
	}

	if cfg.Extractor.ServerURL == "" {
		log.Info(ctx, "CREDSHIELD_EXTRACTOR_SERVER_URL value is missing. Document issuance is disabled")
	}
}
