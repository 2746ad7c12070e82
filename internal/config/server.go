package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type ServerConfig struct {
	Stage               string        `envconfig:"STAGE" default:"dev"`
	ProjectID           string        `envconfig:"GOOGLE_CLOUD_PROJECT_ID" default:"release-index"`
	Port                string        `envconfig:"PORT" default:"8080"`
	BindAddress         string        `envconfig:"BIND_ADDRESS"`
	IndexURL            string        `envconfig:"INDEX_URL" default:"https://cache.ruby-lang.org/pub/ruby/index.txt"`
	FetchTimeout        time.Duration `envconfig:"FETCH_TIMEOUT" default:"1m"`
	AdminAccessToken    string        `envconfig:"ADMIN_ACCESS_TOKEN"`
	DisableRequestCache bool          `envconfig:"DISABLE_REQUEST_CACHE"`
	Version             string
	DisableMetrics      bool `envconfig:"DISABLE_METRICS"`
}

func NewServerConfigFromEnv() (*ServerConfig, error) {
	var sCfg ServerConfig
	err := envconfig.Process("", &sCfg)
	if err != nil {
		return nil, err
	}
	return &sCfg, nil
}

func (s *ServerConfig) GetServerAddr() string {
	return s.BindAddress + ":" + s.Port
}
