package infra

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pot-code/enlingo/internal/infrastructure/validate"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix env prefix for viper
const EnvPrefix = "ENLINGO"

// runtime environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// AppConfig App option object
type AppConfig struct {
	AppID          string        `mapstructure:"app_id" json:"app_id" yaml:"app_id" validate:"required"`            // Application ID
	Host           string        `mapstructure:"host" json:"host" yaml:"host"`                                      // bind host address
	Port           int           `mapstructure:"port" json:"port" yaml:"port" validate:"min=1,max=65535"`           // bind listen port
	Env            string        `mapstructure:"env" json:"env" yaml:"env" validate:"oneof=development production"` // runtime environment
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout"`     // abort requests running longer than this
	Course         struct {
		Default string `mapstructure:"default" json:"default" yaml:"default" validate:"oneof=en ja zh"` // course restored when nothing was saved
	} `mapstructure:"course" json:"course" yaml:"course"`
	Content struct {
		Source      string        `mapstructure:"source" json:"source" yaml:"source" validate:"oneof=sql http"`                      // where curriculum comes from
		BaseURL     string        `mapstructure:"base_url" json:"base_url" yaml:"base_url" validate:"omitempty,url"`                 // content API root, for http source
		Timeout     time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`                                             // content API request timeout
		ExerciseTTL time.Duration `mapstructure:"exercise_ttl" json:"exercise_ttl" yaml:"exercise_ttl"`                              // exercise set cache lifetime, 0 keeps them for the session
		Locale      string        `mapstructure:"locale" json:"locale" yaml:"locale" validate:"oneof=en zh"`                         // validation message language
	} `mapstructure:"content" json:"content" yaml:"content"`
	Database struct {
		Driver   string `mapstructure:"driver" json:"driver" yaml:"driver" validate:"oneof=mysql postgres sqlite"`   // driver name
		Host     string `mapstructure:"host" json:"host" yaml:"host"`                                                // server host
		Path     string `mapstructure:"path" json:"path" yaml:"path"`                                                // sqlite file
		MaxConn  int32  `mapstructure:"maxconn" json:"maxconn" yaml:"maxconn" validate:"min=1"`                      // maximum opening connections number
		Password string `mapstructure:"password" json:"password" yaml:"password"`                                    // db password
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`                                                // server port
		Protocol string `mapstructure:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=tcp udp"` // connection protocol, eg.tcp
		Query    string `mapstructure:"query" json:"query" yaml:"query"`                                             // DSN query parameter
		Schema   string `mapstructure:"schema" json:"schema" yaml:"schema"`                                          // use schema
		User     string `mapstructure:"username" json:"username" yaml:"username"`                                    // db username
	} `mapstructure:"database" json:"database" yaml:"database"`
	Logging struct {
		FilePath string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`                            // log file path
		Level    string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"` // global logging level
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
	Security struct {
		IDLength int `mapstructure:"id_length" json:"id_length" yaml:"id_length" validate:"min=8,max=64"` // length of generated flow ids
	} `mapstructure:"security" json:"security" yaml:"security"`
	KVStore struct {
		Driver   string `mapstructure:"driver" json:"driver" yaml:"driver" validate:"oneof=redis sqlite"` // backing store for progression
		Host     string `mapstructure:"host" json:"host" yaml:"host"`                                     // redis host
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`                                     // redis port
		Password string `mapstructure:"password" json:"password" yaml:"password"`                         // redis password
		Path     string `mapstructure:"path" json:"path" yaml:"path"`                                     // sqlite file
	} `mapstructure:"kv" json:"kv" yaml:"kv"`
	DevOP struct {
		APM bool `mapstructure:"apm" json:"apm" yaml:"apm"`
	} `mapstructure:"devop" json:"devop" yaml:"devop"`
}

// InitConfig init app config from command line and environment
func InitConfig(args []string) (*AppConfig, error) {
	config, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}
	if config.Logging.Level == "debug" {
		if configJSON, err := json.MarshalIndent(config, "", "  "); err == nil {
			log.Printf("App config: %s\n", string(configJSON))
		}
	}
	return config, nil
}

// LoadConfig parse args into a fresh flag set and merge env overrides and the optional config file.
// Precedence is flags, env, config file, defaults.
func LoadConfig(args []string) (*AppConfig, error) {
	fs := pflag.NewFlagSet("enlingo", pflag.ContinueOnError)
	fs.String("config", "", "config file (json, yaml or toml)")

	// app
	fs.String("host", "", "binding address")
	fs.String("app_id", "enlingo", "application identifier")
	fs.String("env", "development", "runtime environment, can be 'development' or 'production'")
	fs.Int("port", 8081, "listening port")
	fs.Duration("request_timeout", 10*time.Second, "abort requests running longer than this, 0 disables it")

	// course
	fs.String("course.default", "en", "course restored when no course was saved, one of en, ja, zh")

	// content
	fs.String("content.source", "sql", "curriculum source, 'sql' or 'http'")
	fs.String("content.base_url", "", "content API root (required when content.source is http)")
	fs.Duration("content.timeout", 15*time.Second, "content API request timeout")
	fs.Duration("content.exercise_ttl", 5*time.Minute, "exercise set cache lifetime, 0 keeps them for the whole session")
	fs.String("content.locale", "en", "validation message language, en or zh")

	// database
	fs.String("database.driver", "mysql", "database driver to use, mysql, postgres or sqlite")
	fs.String("database.path", "", "content database file (required when database.driver is sqlite)")
	fs.String("database.host", "127.0.0.1", "database host")
	fs.Int("database.port", 3306, "database server port")
	fs.String("database.protocol", "", "connection protocol(if mysql is used, this flag must be set), eg.tcp")
	fs.String("database.username", "", "database username (required when content.source is sql)")
	fs.String("database.password", "", "database password (required when content.source is sql)")
	fs.String("database.schema", "", "database schema (required when content.source is sql)")
	fs.String("database.query", "", "additional DSN query parameters('?' is auto prefixed)")
	fs.Int32("database.maxconn", 20, "max connection count")

	// logging
	fs.String("logging.level", "info", "logging level")
	fs.String("logging.file_path", "", "log to file")

	// security
	fs.Int("security.id_length", 12, "set length of generated flow IDs")

	// kv storage
	fs.String("kv.driver", "sqlite", "progression store, redis or sqlite")
	fs.String("kv.host", "127.0.0.1", "redis host")
	fs.Int("kv.port", 6379, "redis port")
	fs.String("kv.password", "", "redis password")
	fs.String("kv.path", "enlingo.db", "sqlite file (required when kv.driver is sqlite)")

	// DevOp
	fs.Bool("devop.apm", false, "enable apm metrics")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file, _ := fs.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config = new(AppConfig)
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfig(config *AppConfig) error {
	var msg []string
	for _, fe := range validate.NewValidator().Struct(config) {
		msg = append(msg, fe.Error())
	}

	if config.Content.Source == "sql" && config.Database.Driver == "sqlite" {
		if config.Database.Path == "" {
			msg = append(msg, "database.path: required when database.driver is sqlite")
		}
	} else if config.Content.Source == "sql" {
		if config.Database.User == "" {
			msg = append(msg, "database.username: required when content.source is sql")
		}
		if config.Database.Password == "" {
			msg = append(msg, "database.password: required when content.source is sql")
		}
		if config.Database.Schema == "" {
			msg = append(msg, "database.schema: required when content.source is sql")
		}
	}
	if config.Content.Source == "http" && config.Content.BaseURL == "" {
		msg = append(msg, "content.base_url: required when content.source is http")
	}
	if config.KVStore.Driver == "sqlite" && config.KVStore.Path == "" {
		msg = append(msg, "kv.path: required when kv.driver is sqlite")
	}

	if len(msg) > 0 {
		return fmt.Errorf("failed to validate config: \n%s", strings.Join(msg, "\n"))
	}
	return nil
}
