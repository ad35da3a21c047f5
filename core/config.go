package core

import (
	"fmt"
	"strings"
	"time"
)

type HotmartConfig struct {
	TokenURL        string        `koanf:"token_url" mapstructure:"token_url"`
	SalesHistoryURL string        `koanf:"sales_history_url" mapstructure:"sales_history_url"`
	CheckTokenURL   string        `koanf:"check_token_url" mapstructure:"check_token_url"`
	ClientID        string        `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret    string        `koanf:"client_secret" mapstructure:"client_secret"`
	BasicAuth       string        `koanf:"basic_auth" mapstructure:"basic_auth"`
	RequestTimeout  time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
}

type VerifierConfig struct {
	TestDomainSuffix string `koanf:"test_domain_suffix" mapstructure:"test_domain_suffix"`
}

type CatalogConfig struct {
	CSVURL          string        `koanf:"csv_url" mapstructure:"csv_url"`
	RefreshInterval time.Duration `koanf:"refresh_interval" mapstructure:"refresh_interval"`
}

type SessionConfig struct {
	Secret string        `koanf:"secret" mapstructure:"secret"`
	Issuer string        `koanf:"issuer" mapstructure:"issuer"`
	TTL    time.Duration `koanf:"ttl" mapstructure:"ttl"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Hotmart     HotmartConfig  `koanf:"hotmart" mapstructure:"hotmart"`
	Verifier    VerifierConfig `koanf:"verifier" mapstructure:"verifier"`
	Catalog     CatalogConfig  `koanf:"catalog" mapstructure:"catalog"`
	Session     SessionConfig  `koanf:"session" mapstructure:"session"`
	AdminKey    string         `koanf:"admin_key" mapstructure:"admin_key"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "membergate",
		Hotmart: HotmartConfig{
			TokenURL:        "https://api-sec-vlc.hotmart.com/security/oauth/token",
			SalesHistoryURL: "https://developers.hotmart.com/payments/api/v1/sales/history",
			CheckTokenURL:   "https://api-sec-vlc.hotmart.com/security/oauth/check_token",
			RequestTimeout:  30 * time.Second,
		},
		Verifier: VerifierConfig{
			TestDomainSuffix: "@teste.com",
		},
		Catalog: CatalogConfig{
			RefreshInterval: time.Hour,
		},
		Session: SessionConfig{
			Issuer: "membergate",
			TTL:    24 * time.Hour,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Hotmart.TokenURL) == "" {
		return fmt.Errorf("core: hotmart.token_url is required")
	}
	if strings.TrimSpace(c.Hotmart.SalesHistoryURL) == "" {
		return fmt.Errorf("core: hotmart.sales_history_url is required")
	}
	if !strings.HasPrefix(strings.TrimSpace(c.Verifier.TestDomainSuffix), "@") {
		return fmt.Errorf("core: verifier.test_domain_suffix must start with @")
	}
	return nil
}
