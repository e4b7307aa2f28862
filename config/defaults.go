package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"database": map[string]interface{}{
			"path": "./data/studentreminder.db",
		},
		"server": map[string]interface{}{
			"port":      "8080",
			"api_token": "",
		},
		"telegram": map[string]interface{}{
			"token":   "",
			"chat_id": 0,
		},
		"backend": map[string]interface{}{
			"url":              "",
			"refresh_interval": "5m",
		},
		"sms": map[string]interface{}{
			"url":     "",
			"timeout": "10s",
		},
		"poller": map[string]interface{}{
			"interval":    "60s",
			"lead_window": "30m",
		},
		"session": map[string]interface{}{
			"file":  "",
			"token": "",
			"phone": "",
		},
		"caldav": map[string]interface{}{
			"url":      "",
			"username": "",
			"password": "",
			"calendar": "",
		},
		"timezone": "",
	}
}

func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

func GetDefaultConfigPath() string {
	return "~/.studentreminder/config.yaml"
}
