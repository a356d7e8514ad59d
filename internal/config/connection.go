// Package config loads the two launch inputs: the JSON connection file a
// front-end hands to the kernel (endpoints, session key, signature scheme)
// and the optional YAML kernel config (logging, API, control domain,
// history path).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Connection is the front-end supplied connection file.
type Connection struct {
	Transport       string `json:"transport"`
	IP              string `json:"ip"`
	ShellPort       int    `json:"shell_port"`
	ControlPort     int    `json:"control_port"`
	StdinPort       int    `json:"stdin_port"`
	IOPubPort       int    `json:"iopub_port"`
	HeartbeatPort   int    `json:"hb_port"`
	Key             string `json:"key"`
	SignatureScheme string `json:"signature_scheme"`
	KernelName      string `json:"kernel_name,omitempty"`
}

// LoadConnection reads and validates a connection file. When a .checksums
// manifest sits next to the file, its BLAKE3 hash is verified first.
func LoadConnection(path string) (*Connection, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve connection path %q: %w", path, err)
	}

	if err := verifyManifestFor(absPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read connection file: %w", err)
	}

	var conn Connection
	if err := json.Unmarshal(data, &conn); err != nil {
		return nil, fmt.Errorf("parse connection file: %w", err)
	}

	if err := conn.validate(); err != nil {
		return nil, fmt.Errorf("invalid connection file %s: %w", absPath, err)
	}
	return &conn, nil
}

func (c *Connection) validate() error {
	if c.Transport == "" {
		c.Transport = "tcp"
	}
	if c.IP == "" {
		return fmt.Errorf("ip is required")
	}
	ports := map[string]int{
		"shell_port":   c.ShellPort,
		"control_port": c.ControlPort,
		"stdin_port":   c.StdinPort,
		"iopub_port":   c.IOPubPort,
		"hb_port":      c.HeartbeatPort,
	}
	for name, port := range ports {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("%s must be in (0, 65535], got %d", name, port)
		}
	}
	if c.SignatureScheme == "" {
		c.SignatureScheme = "hmac-sha256"
	}
	return nil
}

// Endpoint renders one socket address, e.g. tcp://127.0.0.1:5555.
func (c *Connection) Endpoint(port int) string {
	return fmt.Sprintf("%s://%s:%d", c.Transport, c.IP, port)
}
