// Package scenefile reads YAML scene descriptions and imports them into a
// scene through the consistency controller.
package scenefile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/subjecthierarchy/internal/datastore"
)

// Scene is the root structure of a scene file.
type Scene struct {
	Folders []FolderDef `yaml:"folders"`
	Objects []ObjectDef `yaml:"objects"`
	Legacy  []LegacyDef `yaml:"legacy"`
}

// FolderDef declares a folder path. Missing path elements are created as
// folders; the last element gets Level.
type FolderDef struct {
	Path               string `yaml:"path"`                  // e.g. "Jane Doe/CT"
	Level              string `yaml:"level"`                 // folder (default), patient or study
	UID                string `yaml:"uid"`                   // patient identifier
	Color              string `yaml:"color"`                 // folder color, needs level folder
	ApplyColorToBranch bool   `yaml:"apply_color_to_branch"` // color override for the branch
}

// ObjectDef declares a data object.
type ObjectDef struct {
	ID         string            `yaml:"id"`        // optional; generated when empty
	Name       string            `yaml:"name"`      // required
	Kind       datastore.Kind    `yaml:"kind"`      // volume, labelmap, model, transform, ...
	Folder     string            `yaml:"folder"`    // path of a declared folder
	Hidden     bool              `yaml:"hidden"`    // hidden from editors
	Exclude    bool              `yaml:"exclude"`   // kept out of the hierarchy
	Color      string            `yaml:"color"`     // display color
	Visible    *bool             `yaml:"visible"`   // display visibility
	Transform  string            `yaml:"transform"` // id of a transform object
	Segments   []string          `yaml:"segments"`  // segment names of a segmentation
	Attributes map[string]string `yaml:"attributes"`
}

// LegacyDef declares a legacy hierarchy node.
type LegacyDef struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Parent string `yaml:"parent"` // id of another legacy node
	Object string `yaml:"object"` // id of the data object the node stands for
}

// Parse decodes a scene. Unknown fields are rejected.
func Parse(r io.Reader) (*Scene, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Scene
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return &s, nil
		}
		return nil, fmt.Errorf("parsing scene: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ReadFile reads and validates the scene file at path.
func ReadFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	s, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks references between the scene's entries.
func (s *Scene) Validate() error {
	var errs []error

	folders := map[string]bool{}
	for i, f := range s.Folders {
		path, err := cleanPath(f.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("folders[%d]: %w", i, err))
			continue
		}
		if _, err := levelOf(f.Level); err != nil {
			errs = append(errs, fmt.Errorf("folders[%d]: %w", i, err))
		}
		if (f.Color != "" || f.ApplyColorToBranch) && !isFolderLevel(f.Level) {
			errs = append(errs, fmt.Errorf("folders[%d]: color needs level folder, got %q", i, f.Level))
		}
		parts := strings.Split(path, "/")
		for j := range parts {
			folders[strings.Join(parts[:j+1], "/")] = true
		}
	}

	objects := map[string]datastore.Kind{}
	for i, o := range s.Objects {
		if o.Name == "" {
			errs = append(errs, fmt.Errorf("objects[%d]: name is required", i))
		}
		if o.ID == "" {
			continue
		}
		if _, dup := objects[o.ID]; dup {
			errs = append(errs, fmt.Errorf("objects[%d]: duplicate id %q", i, o.ID))
		}
		objects[o.ID] = o.Kind
	}
	for i, o := range s.Objects {
		if o.Folder != "" {
			if path, err := cleanPath(o.Folder); err != nil || !folders[path] {
				errs = append(errs, fmt.Errorf("objects[%d]: folder %q is not declared", i, o.Folder))
			}
		}
		if o.Transform != "" {
			kind, ok := objects[o.Transform]
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("objects[%d]: unknown transform %q", i, o.Transform))
			case kind != datastore.KindTransform:
				errs = append(errs, fmt.Errorf("objects[%d]: %q is a %s, not a transform", i, o.Transform, kind))
			case o.Transform == o.ID:
				errs = append(errs, fmt.Errorf("objects[%d]: transform cannot apply to itself", i))
			}
		}
		if len(o.Segments) > 0 && o.Kind != datastore.KindSegmentation {
			errs = append(errs, fmt.Errorf("objects[%d]: segments need kind segmentation", i))
		}
	}

	legacy := map[string]LegacyDef{}
	for i, n := range s.Legacy {
		if n.ID == "" {
			errs = append(errs, fmt.Errorf("legacy[%d]: id is required", i))
			continue
		}
		if _, dup := legacy[n.ID]; dup {
			errs = append(errs, fmt.Errorf("legacy[%d]: duplicate id %q", i, n.ID))
		}
		legacy[n.ID] = n
		if _, ok := objects[n.Object]; n.Object != "" && !ok {
			errs = append(errs, fmt.Errorf("legacy[%d]: unknown object %q", i, n.Object))
		}
	}
	for i, n := range s.Legacy {
		if n.Parent == "" {
			continue
		}
		p, ok := legacy[n.Parent]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("legacy[%d]: unknown parent %q", i, n.Parent))
		case p.Object != "":
			errs = append(errs, fmt.Errorf("legacy[%d]: parent %q carries a data object", i, n.Parent))
		}
	}
	if err := legacyCycle(legacy); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func legacyCycle(nodes map[string]LegacyDef) error {
	for id := range nodes {
		seen := map[string]bool{}
		for cur := id; cur != ""; cur = nodes[cur].Parent {
			if seen[cur] {
				return fmt.Errorf("legacy: cycle through %q", cur)
			}
			seen[cur] = true
		}
	}
	return nil
}

func cleanPath(p string) (string, error) {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return "", errors.New("empty folder path")
	}
	for _, part := range strings.Split(p, "/") {
		if strings.TrimSpace(part) == "" {
			return "", fmt.Errorf("folder path %q has an empty element", p)
		}
	}
	return p, nil
}

func isFolderLevel(level string) bool {
	l := strings.ToLower(strings.TrimSpace(level))
	return l == "" || l == "folder"
}
