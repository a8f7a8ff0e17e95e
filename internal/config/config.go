package config

import (
	"os"

	"github.com/go-yaml/yaml"
)

type Config struct {
	NodeInfo NodeInfo `yaml:"nodeInfo"`
	Server   Server   `yaml:"server"`
}

type NodeInfo struct {
	FQDN string `yaml:"fqdn"`
}

type Server struct {
	ListenAddr       string `yaml:"listenAddr"`
	PostgresDsn      string `yaml:"postgresDsn"`
	RedisAddr        string `yaml:"redisAddr"`
	RedisPassword    string `yaml:"redisPassword"`
	RedisDB          int    `yaml:"redisDB"`
	MemcachedAddr    string `yaml:"memcachedAddr"`
	IdentityResolver string `yaml:"identityResolver"`
	EnableTrace      bool   `yaml:"enableTrace"`
	TraceEndpoint    string `yaml:"traceEndpoint"`
}

func Load(path string) (Config, error) {

	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Server.ListenAddr == "" {
		config.Server.ListenAddr = ":8000"
	}

	return config, nil
}
