package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/auth0"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/circuit_breaker"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/kafka"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/logger"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/postgres"
	"github.com/Danerick15/biblioteca-facultad-erick-sub001/pkg/redislock"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"LIBRARY_HTTP_HOST"`
	Port         string        `yaml:"port" envconfig:"LIBRARY_HTTP_PORT"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
}

type Auth struct {
	// JWTKey switches the api from gateway headers to bearer tokens.
	JWTKey string `yaml:"-" json:"-" envconfig:"AUTH_JWT_KEY"`
	// SSO takes over from JWTKey when an issuer is set.
	SSO auth0.Config `yaml:"sso"`
}

type Config struct {
	Server     HTTPServer             `yaml:"server"`
	Database   postgres.DB            `yaml:"db"`
	Kafka      kafka.Config           `yaml:"kafka"`
	Redis      redislock.Config       `yaml:"redis"`
	Breaker    circuit_breaker.Config `yaml:"breaker"`
	Auth       Auth                   `yaml:"auth"`
	Log        logger.Log             `yaml:"log"`
	Policy     Policy                 `yaml:"policy"`
	PolicyFile string                 `yaml:"-" envconfig:"LIBRARY_POLICY_FILE"`
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig resolves the configuration once per process:
// policy defaults, then options, then the policy file, then environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		config, err := Load(ops...)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = config
		printConfig(cfg)
	})

	return cfg
}

func Load(ops ...Option) (*Config, error) {
	config := Config{Policy: DefaultPolicy()}
	for _, op := range ops {
		op(&config)
	}
	path := config.PolicyFile
	if env, ok := os.LookupEnv("LIBRARY_POLICY_FILE"); ok {
		path = env
	}
	if path != "" {
		if err := loadPolicy(path, &config.Policy); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process("", &config); err != nil {
		return nil, errors.Wrap(err, "envconfig")
	}
	if err := config.Policy.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func loadPolicy(path string, p *Policy) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read policy %s", path)
	}
	if err = yaml.Unmarshal(data, p); err != nil {
		return errors.Wrapf(err, "parse policy %s", path)
	}
	return nil
}

func printConfig(cfg *Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
