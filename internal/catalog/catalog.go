// Package catalog holds the fixed set of healthcare model descriptors the
// daemon knows how to install, plus the modelfile rendering bound to them.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Kind distinguishes text-only models from models that accept images.
type Kind string

const (
	KindText       Kind = "text"
	KindMultimodal Kind = "multimodal"
)

// Task selects the sampling profile and prompt framing baked into a derived model.
type Task string

const (
	TaskClinical Task = "clinical"
	TaskVision   Task = "vision"
	TaskCoding   Task = "coding"
)

// Descriptor is static metadata for a supported model. BaseModel is the
// upstream identifier pulled before the healthcare variant is derived.
type Descriptor struct {
	Name         string   `json:"name" yaml:"name" toml:"name"`
	DisplayName  string   `json:"displayName" yaml:"display_name" toml:"display_name"`
	SizeLabel    string   `json:"size" yaml:"size" toml:"size"`
	Kind         Kind     `json:"kind" yaml:"kind" toml:"kind"`
	Task         Task     `json:"task,omitempty" yaml:"task" toml:"task"`
	Capabilities []string `json:"capabilities" yaml:"capabilities" toml:"capabilities"`
	Description  string   `json:"description" yaml:"description" toml:"description"`
	BaseModel    string   `json:"baseModel" yaml:"base_model" toml:"base_model"`
	SystemPrompt string   `json:"systemPrompt,omitempty" yaml:"system_prompt" toml:"system_prompt"`
}

// Multimodal reports whether the descriptor accepts image payloads.
func (d Descriptor) Multimodal() bool { return d.Kind == KindMultimodal }

// Catalog is an immutable set of descriptors keyed by name.
type Catalog struct {
	order  []string
	byName map[string]Descriptor
}

type notFoundError struct{ name string }

func (e notFoundError) Error() string { return "model not in catalog: " + e.name }

// IsNotFound reports whether err is a catalog lookup miss.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// New validates descs and builds a catalog. Names must be unique.
func New(descs ...Descriptor) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		d, err := normalize(d)
		if err != nil {
			return nil, err
		}
		if _, dup := c.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate model name %q", d.Name)
		}
		c.byName[d.Name] = d
		c.order = append(c.order, d.Name)
	}
	return c, nil
}

// Merge returns a new catalog holding base's descriptors followed by extra.
func Merge(base *Catalog, extra []Descriptor) (*Catalog, error) {
	all := base.List()
	all = append(all, extra...)
	return New(all...)
}

// List returns every descriptor in registration order. The slice is a copy.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, clone(c.byName[n]))
	}
	return out
}

// Get looks a descriptor up by name. A trailing ":latest" tag is ignored.
func (c *Catalog) Get(name string) (Descriptor, error) {
	d, ok := c.byName[CanonicalName(name)]
	if !ok {
		return Descriptor{}, notFoundError{name: name}
	}
	return clone(d), nil
}

// Len is the number of descriptors.
func (c *Catalog) Len() int { return len(c.order) }

// CanonicalName strips the implicit ":latest" tag the runtime appends.
func CanonicalName(name string) string {
	return strings.TrimSuffix(strings.TrimSpace(name), ":latest")
}

func normalize(d Descriptor) (Descriptor, error) {
	d.Name = CanonicalName(d.Name)
	if d.Name == "" {
		return d, fmt.Errorf("descriptor name is required")
	}
	if strings.TrimSpace(d.BaseModel) == "" {
		return d, fmt.Errorf("descriptor %q: base model is required", d.Name)
	}
	switch d.Kind {
	case KindText, KindMultimodal:
	case "":
		d.Kind = KindText
	default:
		return d, fmt.Errorf("descriptor %q: unknown kind %q", d.Name, d.Kind)
	}
	switch d.Task {
	case TaskClinical, TaskVision, TaskCoding:
	case "":
		if d.Kind == KindMultimodal {
			d.Task = TaskVision
		} else {
			d.Task = TaskClinical
		}
	default:
		return d, fmt.Errorf("descriptor %q: unknown task %q", d.Name, d.Task)
	}
	if d.DisplayName == "" {
		d.DisplayName = d.Name
	}
	if d.SystemPrompt == "" {
		d.SystemPrompt = defaultSystemPrompt(d.Task)
	}
	d.Capabilities = dedupe(d.Capabilities)
	return d, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func clone(d Descriptor) Descriptor {
	d.Capabilities = append([]string(nil), d.Capabilities...)
	return d
}
