package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/subjecthierarchy/internal/consistency"
)

// SavePluginOrder writes resolver.plugin_order. An empty order removes
// the key. Comments and formatting in other sections are preserved.
func SavePluginOrder(configPath string, order []string) error {
	if len(order) == 0 {
		return updateFile(configPath, func(root *yaml.Node) {
			deleteKey(root, "resolver", "plugin_order")
		})
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, name := range order {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name})
	}
	return updateFile(configPath, func(root *yaml.Node) {
		setKey(root, seq, "resolver", "plugin_order")
	})
}

// SaveHierarchyMode writes hierarchy.mode.
func SaveHierarchyMode(configPath string, mode consistency.Mode) error {
	if _, err := consistency.ParseMode(mode.String()); err != nil {
		return err
	}
	return updateFile(configPath, func(root *yaml.Node) {
		setKey(root, scalar(mode.String()), "hierarchy", "mode")
	})
}

// SaveFlag writes one entry of the flags map.
func SaveFlag(configPath, name string, enabled bool) error {
	return updateFile(configPath, func(root *yaml.Node) {
		setKey(root, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(enabled)}, "flags", name)
	})
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

// setKey stores value under the mapping path, creating intermediate
// mappings as needed.
func setKey(root, value *yaml.Node, path ...string) {
	node := root
	for i, key := range path {
		found := false
		for j := 0; j+1 < len(node.Content); j += 2 {
			if node.Content[j].Value != key {
				continue
			}
			if i == len(path)-1 {
				node.Content[j+1] = value
				return
			}
			next := node.Content[j+1]
			if next.Kind != yaml.MappingNode {
				next = &yaml.Node{Kind: yaml.MappingNode}
				node.Content[j+1] = next
			}
			node = next
			found = true
			break
		}
		if found {
			continue
		}
		if i == len(path)-1 {
			node.Content = append(node.Content, scalar(key), value)
			return
		}
		next := &yaml.Node{Kind: yaml.MappingNode}
		node.Content = append(node.Content, scalar(key), next)
		node = next
	}
}

func deleteKey(root *yaml.Node, path ...string) {
	node := root
	for i, key := range path {
		var next *yaml.Node
		for j := 0; j+1 < len(node.Content); j += 2 {
			if node.Content[j].Value != key {
				continue
			}
			if i == len(path)-1 {
				node.Content = append(node.Content[:j], node.Content[j+2:]...)
				return
			}
			next = node.Content[j+1]
			break
		}
		if next == nil || next.Kind != yaml.MappingNode {
			return
		}
		node = next
	}
}

// updateFile applies edit to the root mapping of the YAML file at
// configPath and writes the result atomically.
func updateFile(configPath string, edit func(root *yaml.Node)) error {
	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	// Parse into yaml.Node to preserve comments
	var doc yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("parsing config: top level is not a mapping")
	}
	edit(doc.Content[0])

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	// Write atomically (write to temp, then rename)
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".shctl.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(buf.Bytes()); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, configPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
