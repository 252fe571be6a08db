package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	b := []byte(`
	{
		"url": "https://social.example",
		"name": "Example Social",
		"geocoder": "https://nominatim.example/reverse",
		"server": {
		  "host": "testhost",
		  "certificate": "testcert",
		  "privatekey": "testkey",
		  "port": 234
		},
		"users": [
		  {
			"name": "testuser",
			"displayName": "testdisplayname",
			"feedSource": "testurl",
			"privKey": "testprivate",
			"keyId": "https://social.example/testuser#main-key"
		  }
		]
	  }`)
	cfg, err := ReadConfig(b)
	require.NoError(t, err)

	expected := Config{
		URL:      "https://social.example",
		SiteName: "Example Social",
		Geocoder: "https://nominatim.example/reverse",
		Server: serverConfig{
			HostName:    "testhost",
			Certificate: "testcert",
			PrivateKey:  "testkey",
			Port:        234,
		},
		Users: []userConfig{
			{
				Name:        "testuser",
				DisplayName: "testdisplayname",
				SourceURL:   "testurl",
				PrivKeyFile: "testprivate",
				KeyID:       "https://social.example/testuser#main-key",
			},
		},
	}
	assert.Equal(t, expected, cfg)
	assert.Equal(t, "social.example", cfg.PublicHost())
	assert.True(t, cfg.Server.useTLS())
}
