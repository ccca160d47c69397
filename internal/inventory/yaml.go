package inventory

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseYAML parses an Ansible YAML inventory.
//
// Groups may appear at the top level or nested under children at any depth.
// Each host is rendered back to a description line ("host key=value ...")
// with variables in sorted order, so YAML and INI share Resolve.
func ParseYAML(data []byte) (Inventory, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse YAML inventory: %w", err)
	}

	inv := Inventory{}
	if len(root.Content) == 0 {
		return inv, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("YAML inventory must be a mapping of groups")
	}

	for i := 0; i+1 < len(doc.Content); i += 2 {
		if err := collectGroup(inv, doc.Content[i].Value, doc.Content[i+1]); err != nil {
			return nil, err
		}
	}

	return inv, nil
}

// collectGroup records the hosts of a group node and recurses into children.
// Mapping order is preserved so the first declared host wins.
func collectGroup(inv Inventory, name string, node *yaml.Node) error {
	if _, ok := inv[name]; !ok {
		inv[name] = []string{}
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("group %q: expected mapping", name)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		switch key {
		case "hosts":
			lines, err := hostLines(name, value)
			if err != nil {
				return err
			}
			inv[name] = append(inv[name], lines...)
		case "children":
			if value.Kind != yaml.MappingNode {
				continue
			}
			for j := 0; j+1 < len(value.Content); j += 2 {
				if err := collectGroup(inv, value.Content[j].Value, value.Content[j+1]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func hostLines(group string, node *yaml.Node) ([]string, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("group %q: hosts must be a mapping", group)
	}

	var lines []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		host := node.Content[i].Value
		vars := map[string]string{}
		if v := node.Content[i+1]; v.Kind == yaml.MappingNode {
			if err := v.Decode(&vars); err != nil {
				return nil, fmt.Errorf("group %q host %q: %w", group, host, err)
			}
		}

		keys := make([]string, 0, len(vars))
		for k := range vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := []string{host}
		for _, k := range keys {
			parts = append(parts, k+"="+vars[k])
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return lines, nil
}
