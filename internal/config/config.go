package config

import "github.com/spf13/viper"

type Config struct {
	ServerPort       string `mapstructure:"SERVER_PORT"`
	StreamSendBuffer int    `mapstructure:"STREAM_SEND_BUFFER"`
}

func Load() Config {
	viper.AutomaticEnv()
	viper.SetDefault("SERVER_PORT", ":8080")
	viper.SetDefault("STREAM_SEND_BUFFER", 64)

	var cfg Config
	_ = viper.Unmarshal(&cfg)
	return cfg
}
