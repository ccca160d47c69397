// Package inventory resolves a connection for a named host group.
//
// Two inventory formats are accepted, both following Ansible conventions:
//
//	[webserver]
//	203.0.113.10 ansible_user=ubuntu ansible_ssh_private_key_file=inventory/ansible.pem
//
// and the YAML form:
//
//	all:
//	  children:
//	    webserver:
//	      hosts:
//	        203.0.113.10:
//	          ansible_user: ubuntu
//
// Both are reduced to the same group → host description lines mapping, so a
// single resolution path applies defaults and picks the first host.
package inventory

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roach88/provcheck/internal/fault"
)

// Defaults applied when a host line omits a parameter.
const (
	DefaultUser    = "ubuntu"
	DefaultKeyPath = "inventory/ansible.pem"
	DefaultPort    = 22
)

// Host parameters understood by Resolve.
const (
	paramUser       = "ansible_user"
	paramKeyFile    = "ansible_ssh_private_key_file"
	paramKeyFileAlt = "ansible_private_key_file"
	paramHost       = "ansible_host"
	paramPort       = "ansible_port"
)

// Connection is the resolved host/user/credential triple for one run.
type Connection struct {
	Host    string
	User    string
	KeyPath string
	Port    int
}

// Address returns host:port for dialing.
func (c Connection) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

func (c Connection) String() string {
	return fmt.Sprintf("%s@%s", c.User, c.Address())
}

// Inventory maps a group name to its host description lines.
// Each line is a host token followed by key=value parameter tokens.
type Inventory map[string][]string

// Load reads an inventory file, choosing the parser by extension.
func Load(path string) (Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return ParseYAML(data)
	default:
		return ParseINI(strings.NewReader(string(data)))
	}
}

// ParseINI parses an Ansible INI inventory.
// Variable and children sections ([group:vars], [group:children]) are skipped.
func ParseINI(r io.Reader) (Inventory, error) {
	inv := Inventory{}
	group := ""
	skip := false

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, fmt.Errorf("line %d: unterminated section header %q", lineNo, line)
			}
			name := strings.TrimSpace(line[1 : len(line)-1])
			if name == "" {
				return nil, fmt.Errorf("line %d: empty section name", lineNo)
			}
			skip = strings.Contains(name, ":")
			group = name
			if !skip {
				if _, ok := inv[group]; !ok {
					inv[group] = []string{}
				}
			}
			continue
		}

		if skip {
			continue
		}
		if group == "" {
			// Hosts before any header belong to the implicit "ungrouped" group.
			group = "ungrouped"
		}
		inv[group] = append(inv[group], line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan inventory: %w", err)
	}

	return inv, nil
}

// Resolve returns the connection for the first host in group.
func (inv Inventory) Resolve(group string) (Connection, error) {
	lines, ok := inv[group]
	if !ok {
		return Connection{}, fault.Configuration("host group %q not found in inventory", group)
	}

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		return resolveHost(group, fields)
	}

	return Connection{}, fault.Configuration("host group %q has no hosts", group)
}

// resolveHost applies parameters and defaults to a single host line.
func resolveHost(group string, fields []string) (Connection, error) {
	conn := Connection{
		Host:    fields[0],
		User:    DefaultUser,
		KeyPath: DefaultKeyPath,
		Port:    DefaultPort,
	}

	for _, param := range fields[1:] {
		key, value, ok := strings.Cut(param, "=")
		if !ok || value == "" {
			continue
		}
		switch key {
		case paramUser:
			conn.User = value
		case paramKeyFile, paramKeyFileAlt:
			conn.KeyPath = value
		case paramHost:
			conn.Host = value
		case paramPort:
			port, err := strconv.Atoi(value)
			if err != nil || port <= 0 || port > 65535 {
				return Connection{}, fault.Configuration("host group %q: invalid %s %q", group, paramPort, value)
			}
			conn.Port = port
		}
	}

	return conn, nil
}

// LoadAndResolve loads path and resolves group in one step.
// Read and parse failures are reported as configuration errors so callers
// have a single failure path before any check runs.
func LoadAndResolve(path, group string) (Connection, error) {
	inv, err := Load(path)
	if err != nil {
		return Connection{}, &fault.Error{
			Code:    fault.CodeConfiguration,
			Message: "read inventory",
			Err:     err,
		}
	}
	return inv.Resolve(group)
}
