// Package instance names the running process in logs.
package instance

import (
	"os"

	"github.com/angelmondragon/courierbot-backend/pkg/env"
)

// ID returns WORKER_ID, then DYNO, then the hostname, then "local".
func ID() string {
	if id := env.Get("WORKER_ID", env.Get("DYNO", "")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
