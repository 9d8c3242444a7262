package common

import (
	"io/ioutil"
	"os"
	"path"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// CommonConfig holds the settings shared by every binary.
type CommonConfig struct {
	NetworkID       string   `yaml:"network_id"`
	RPCResolver     []string `yaml:"rpc_resolver"`
	PromPort        string   `yaml:"prom_port"`
	HealthCheckPort string   `yaml:"health_check_port"`
	PostgresConfig  string   `yaml:"postgres"`
	SqlitePath      string   `yaml:"sqlite_path"`
	RedisAddress    string   `yaml:"redis"`
	LogLevel        string   `yaml:"log_level"`
}

// ConfigPath is config.yaml in the working directory.
func ConfigPath() string {
	pwd, _ := os.Getwd()
	return path.Join(pwd, "config.yaml")
}

// LoadConfig decodes the yaml file at fullPath into out.
func LoadConfig(fullPath string, out any) error {
	rawCfg, err := ioutil.ReadFile(fullPath)
	if err != nil {
		return errors.Wrapf(err, "config file not found at %s", fullPath)
	}
	if err := yaml.Unmarshal(rawCfg, out); err != nil {
		return errors.Wrapf(err, "failed parsing config file %s", fullPath)
	}
	return nil
}
