package client

import (
	"net/http"
)

// Config holds the configuration of a ledger API client.
type Config struct {
	// Base URL of the daemon
	// Example: http://127.0.0.1:8080
	Url string
	// Custom headers to send
	CustomHeaders map[string]string
	// HTTP Client to use
	Client *http.Client
}
