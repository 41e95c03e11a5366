package configure

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func checkErr(err error) {
	if err != nil {
		zap.S().Fatalw("config",
			"error", err,
		)
	}
}

func New() *Config {
	initLogging("info")

	config := viper.New()

	// Default config
	b, _ := json.Marshal(Config{
		ConfigFile: "config.yaml",
	})
	tmp := viper.New()
	defaultConfig := bytes.NewReader(b)

	tmp.SetConfigType("json")
	checkErr(tmp.ReadConfig(defaultConfig))
	checkErr(config.MergeConfigMap(viper.AllSettings()))

	pflag.String("config", "config.yaml", "Config file location")
	pflag.Bool("noheader", false, "Disable the startup header")

	pflag.Parse()
	checkErr(config.BindPFlags(pflag.CommandLine))

	// File
	config.SetConfigFile(config.GetString("config"))
	config.AddConfigPath(".")

	if err := config.ReadInConfig(); err == nil {
		checkErr(config.MergeInConfig())
	}

	bindEnvs(config, Config{})

	// Environment
	config.AutomaticEnv()
	config.SetEnvPrefix("REALTIME")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AllowEmptyEnv(true)

	c := &Config{}
	checkErr(config.Unmarshal(&c))

	initLogging(c.Level)

	return c
}

func bindEnvs(config *viper.Viper, iface interface{}, parts ...string) {
	ifv := reflect.ValueOf(iface)
	ift := reflect.TypeOf(iface)

	for i := 0; i < ift.NumField(); i++ {
		v := ifv.Field(i)
		t := ift.Field(i)

		tv, ok := t.Tag.Lookup("mapstructure")
		if !ok {
			continue
		}

		switch v.Kind() {
		case reflect.Struct:
			bindEnvs(config, v.Interface(), append(parts, tv)...)
		default:
			_ = config.BindEnv(strings.Join(append(parts, tv), "."))
		}
	}
}

// PushStreamMode selects the transport the push-stream bridge subscribes to.
type PushStreamMode string

const (
	PushStreamModeRedis PushStreamMode = "REDIS"
	PushStreamModeNATS  PushStreamMode = "NATS"
)

type Config struct {
	Level      string `mapstructure:"level" json:"level"`
	ConfigFile string `mapstructure:"config" json:"config"`
	NoHeader   bool   `mapstructure:"noheader" json:"noheader"`

	Health struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Bind    string `mapstructure:"bind" json:"bind"`
	} `mapstructure:"health" json:"health"`

	PProf struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Bind    string `mapstructure:"bind" json:"bind"`
	} `mapstructure:"pprof" json:"pprof"`

	Monitoring struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		Bind    string `mapstructure:"bind" json:"bind"`
		Labels  Labels `mapstructure:"labels" json:"labels"`
	} `mapstructure:"monitoring" json:"monitoring"`

	Gateway struct {
		Bind              string        `mapstructure:"bind" json:"bind"`
		JWTSecret         string        `mapstructure:"jwt_secret" json:"jwt_secret"`
		OriginWhitelist   []string      `mapstructure:"origin_whitelist" json:"origin_whitelist"`
		ReadBufferSize    int           `mapstructure:"read_buffer_size" json:"read_buffer_size"`
		WriteBufferSize   int           `mapstructure:"write_buffer_size" json:"write_buffer_size"`
		HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" json:"heartbeat_interval"`

		// Commands allowed per connection per second, with burst headroom.
		CommandRate  float64 `mapstructure:"command_rate" json:"command_rate"`
		CommandBurst int     `mapstructure:"command_burst" json:"command_burst"`
	} `mapstructure:"gateway" json:"gateway"`

	Mongo struct {
		Enabled bool   `mapstructure:"enabled" json:"enabled"`
		URI     string `mapstructure:"uri" json:"uri"`
		DB      string `mapstructure:"db" json:"db"`
		Direct  bool   `mapstructure:"direct" json:"direct"`
	} `mapstructure:"mongo" json:"mongo"`

	Redis struct {
		Username   string   `mapstructure:"username" json:"username"`
		Password   string   `mapstructure:"password" json:"password"`
		Database   int      `mapstructure:"db" json:"db"`
		Sentinel   bool     `mapstructure:"sentinel" json:"sentinel"`
		Addresses  []string `mapstructure:"addresses" json:"addresses"`
		MasterName string   `mapstructure:"master_name" json:"master_name"`
	} `mapstructure:"redis" json:"redis"`

	PushStream struct {
		Enabled bool           `mapstructure:"enabled" json:"enabled"`
		Mode    PushStreamMode `mapstructure:"mode" json:"mode"`

		RedisChannel string `mapstructure:"redis_channel" json:"redis_channel"`

		NATS struct {
			URL     string `mapstructure:"url" json:"url"`
			Subject string `mapstructure:"subject" json:"subject"`
		} `mapstructure:"nats" json:"nats"`
	} `mapstructure:"push_stream" json:"push_stream"`

	Engine struct {
		NotificationTTL       time.Duration `mapstructure:"notification_ttl" json:"notification_ttl"`
		NotificationQueueSize int           `mapstructure:"notification_queue_size" json:"notification_queue_size"`
		DirectoryCacheTTL     time.Duration `mapstructure:"directory_cache_ttl" json:"directory_cache_ttl"`
	} `mapstructure:"engine" json:"engine"`
}

type Labels []struct {
	Key   string `mapstructure:"key" json:"key"`
	Value string `mapstructure:"value" json:"value"`
}

func (l Labels) ToPrometheus() prometheus.Labels {
	mp := prometheus.Labels{}

	for _, v := range l {
		mp[v.Key] = v.Value
	}

	return mp
}
