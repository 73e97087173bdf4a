package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// AudioFormat is the codec chunks are stored as.
type AudioFormat string

const (
	FormatAAC  AudioFormat = "aac"
	FormatOpus AudioFormat = "opus"
	FormatWAV  AudioFormat = "wav"
)

// Schedule is a UTC recording window; record_start > record_end encodes a
// cross-midnight window, matching session.IsTimeMatch's interpretation.
type Schedule struct {
	RecordStart string `mapstructure:"record_start"`
	RecordEnd   string `mapstructure:"record_end"`
}

// ShowConfig is one Session Controller's worth of configuration.
type ShowConfig struct {
	Name            string      `mapstructure:"name"`
	URL             string      `mapstructure:"url"`
	Schedule        Schedule    `mapstructure:"schedule"`
	AudioFormat     AudioFormat `mapstructure:"audio_format"`
	BitrateKbps     int         `mapstructure:"bitrate_kbps"`
	SplitInterval   int         `mapstructure:"split_interval_seconds"`
	RetentionHours  int64       `mapstructure:"retention_hours"`
}

// Config is the root recorder/receiver configuration, loaded by Load.
type Config struct {
	Shows []ShowConfig `mapstructure:"shows"`

	Server struct {
		DataDir     string `mapstructure:"data_dir"`
		APIPort     string `mapstructure:"api_port"`
		MetricsPort string `mapstructure:"metrics_port"`
	} `mapstructure:"server"`

	Database struct {
		// Host/Port/User/Password address the receiver's Postgres backend,
		// where each show's database is named Prefix + "_" + show name; the
		// receiver does not read Name. The sender side always uses one SQLite
		// file per show under Server.DataDir and does not use these fields.
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		Prefix   string `mapstructure:"prefix"`
	} `mapstructure:"database"`

	Export struct {
		Provider     string `mapstructure:"provider"` // "local" or "s3"
		LocalDir     string `mapstructure:"local_dir"`
		Endpoint     string `mapstructure:"endpoint"`
		Region       string `mapstructure:"region"`
		Bucket       string `mapstructure:"bucket"`
		KeyID        string `mapstructure:"key_id"`
		AppKey       string `mapstructure:"app_key"`
	} `mapstructure:"export"`

	Sync struct {
		RemoteURL string   `mapstructure:"remote_url"`
		Shows     []string `mapstructure:"shows"`
		ChunkSize int64    `mapstructure:"chunk_size"`
		SyncOnly  bool     `mapstructure:"-"`
	} `mapstructure:"sync"`
}

// Load reads config.yaml (or RADIO_-prefixed environment variables) from the
// current and parent directory, same search path as the teacher's Load.
func Load(path string) *Config {
	viper.SetEnvPrefix("RADIO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.data_dir", "./data")
	viper.SetDefault("server.api_port", ":3000")
	viper.SetDefault("server.metrics_port", ":9091")
	viper.SetDefault("database.prefix", "streamkeeper")
	viper.SetDefault("export.provider", "local")
	viper.SetDefault("export.local_dir", "./exports")
	viper.SetDefault("sync.chunk_size", 100)

	viper.SetConfigType("yaml")
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("../")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using environment variables only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	for i := range cfg.Shows {
		applyShowDefaults(&cfg.Shows[i])
	}

	return &cfg
}

func applyShowDefaults(s *ShowConfig) {
	if s.AudioFormat == "" {
		s.AudioFormat = FormatOpus
	}
	if s.BitrateKbps == 0 {
		switch s.AudioFormat {
		case FormatAAC:
			s.BitrateKbps = 32
		case FormatOpus:
			s.BitrateKbps = 16
		}
	}
	if s.RetentionHours == 0 {
		s.RetentionHours = 168
	}
}

// SampleRate returns the output sample rate an audio format is encoded at.
func (f AudioFormat) SampleRate(sourceRate int) int {
	switch f {
	case FormatAAC:
		return 16000
	case FormatOpus:
		return 48000
	default:
		return sourceRate
	}
}

// FrameSamples returns the codec's fixed PCM frame size in samples.
func (f AudioFormat) FrameSamples() int {
	switch f {
	case FormatAAC:
		return 1024
	case FormatOpus:
		return 960
	default:
		return 1024
	}
}

// Validate checks a ShowConfig has the fields the Session Controller needs.
func (s ShowConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("show config missing name")
	}
	if s.URL == "" {
		return fmt.Errorf("show %q missing url", s.Name)
	}
	if s.Schedule.RecordStart == "" || s.Schedule.RecordEnd == "" {
		return fmt.Errorf("show %q missing schedule", s.Name)
	}
	return nil
}
