package config

import (
	"fmt"
	"os"
)

func Template() string {
	return nodeTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(nodeTemplate), 0o600)
}

const nodeTemplate = `username = "anonymous"
storage = "./storage"

[feed]
# localfs | memory | redis
backend = "localfs"
# redis_addr = "127.0.0.1:6379"
# redis_stream = "hyperchat:feed"
# redis_db = 0

[read]
limit = 100
`
