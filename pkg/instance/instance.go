package instance

import "os"

// GetID returns the process instance identifier used in log fields.
func GetID() string {
	if id := os.Getenv("BAZAAR_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
