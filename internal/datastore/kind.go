package datastore

import (
	"fmt"
	"strings"
)

// Kind is the closed set of data object types the hierarchy cares about.
type Kind uint8

const (
	KindOther Kind = iota
	KindVolume
	KindLabelMap
	KindModel
	KindTransform
	KindText
	KindSegmentation
	KindMarkups
	KindTable
)

var kindNames = [...]string{
	KindOther:        "other",
	KindVolume:       "volume",
	KindLabelMap:     "labelmap",
	KindModel:        "model",
	KindTransform:    "transform",
	KindText:         "text",
	KindSegmentation: "segmentation",
	KindMarkups:      "markups",
	KindTable:        "table",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a lowercase name back to a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return KindOther, fmt.Errorf("unknown data object kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Displayable reports whether objects of this kind get a display record.
func (k Kind) Displayable() bool {
	switch k {
	case KindVolume, KindLabelMap, KindModel, KindSegmentation, KindMarkups:
		return true
	default:
		return false
	}
}

// Transformable reports whether a transform can be applied to the kind.
func (k Kind) Transformable() bool {
	switch k {
	case KindVolume, KindLabelMap, KindModel, KindSegmentation, KindMarkups, KindTransform:
		return true
	default:
		return false
	}
}
