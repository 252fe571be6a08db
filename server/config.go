package server

import (
	"encoding/json"
	"net/url"
)

type serverConfig struct {
	HostName    string `json:"host"`
	Certificate string `json:"certificate"`
	PrivateKey  string `json:"privatekey"`
	Port        int    `json:"port"`
}

func (s serverConfig) useTLS() bool {
	return s.Certificate != "" && s.PrivateKey != ""
}

type userConfig struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	SourceURL   string `json:"feedSource"` // optional remote feed mirrored into the user's stream
	PrivKeyFile string `json:"privKey,omitempty"`
	KeyID       string `json:"keyId,omitempty"`
}

type Config struct {
	URL      string       `json:"url"`  // public-facing URL
	SiteName string       `json:"name"` // service display name
	Geocoder string       `json:"geocoder,omitempty"`
	Server   serverConfig `json:"server"`
	Users    []userConfig `json:"users"`
}

func (c Config) PublicHost() string {
	u, err := url.Parse(c.URL)
	if err != nil {
		return ""
	}
	return u.Host
}

func ReadConfig(b []byte) (config Config, err error) {
	if uErr := json.Unmarshal(b, &config); uErr != nil {
		return config, uErr
	}
	return config, nil
}
