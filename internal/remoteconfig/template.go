package remoteconfig

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"fbadmin/internal/admin"
)

// TagColor is the console color of a condition
type TagColor string

const (
	TagColorUnspecified TagColor = "CONDITION_DISPLAY_COLOR_UNSPECIFIED"
	TagColorBlue        TagColor = "BLUE"
	TagColorBrown       TagColor = "BROWN"
	TagColorCyan        TagColor = "CYAN"
	TagColorDeepOrange  TagColor = "DEEP_ORANGE"
	TagColorGreen       TagColor = "GREEN"
	TagColorIndigo      TagColor = "INDIGO"
	TagColorLime        TagColor = "LIME"
	TagColorOrange      TagColor = "ORANGE"
	TagColorPink        TagColor = "PINK"
	TagColorPurple      TagColor = "PURPLE"
	TagColorTeal        TagColor = "TEAL"
)

// Template is a Remote Config template. Top-level fields this package does not
// model are kept and written back unchanged.
type Template struct {
	Conditions      []Condition               `json:"conditions,omitempty"`
	Parameters      map[string]Parameter      `json:"parameters,omitempty"`
	ParameterGroups map[string]ParameterGroup `json:"parameterGroups,omitempty"`
	Version         *Version                  `json:"version,omitempty"`

	extra map[string]json.RawMessage
}

// Condition targets a subset of app instances
type Condition struct {
	Name       string   `json:"name"`
	Expression string   `json:"expression"`
	TagColor   TagColor `json:"tagColor,omitempty"`
}

// Parameter is a key with a default value and per-condition values
type Parameter struct {
	DefaultValue      *ParameterValue           `json:"defaultValue,omitempty"`
	ConditionalValues map[string]ParameterValue `json:"conditionalValues,omitempty"`
	Description       string                    `json:"description,omitempty"`
	ValueType         string                    `json:"valueType,omitempty"`
}

// ParameterValue is either an explicit value or the in-app default
type ParameterValue struct {
	Value                *string         `json:"value,omitempty"`
	UseInAppDefault      *bool           `json:"useInAppDefault,omitempty"`
	PersonalizationValue json.RawMessage `json:"personalizationValue,omitempty"`
	RolloutValue         json.RawMessage `json:"rolloutValue,omitempty"`
}

// ParameterGroup groups parameters in the console
type ParameterGroup struct {
	Description string               `json:"description,omitempty"`
	Parameters  map[string]Parameter `json:"parameters"`
}

// Version is the metadata of one published template
type Version struct {
	VersionNumber  string      `json:"versionNumber,omitempty"`
	UpdateTime     string      `json:"updateTime,omitempty"`
	UpdateOrigin   string      `json:"updateOrigin,omitempty"`
	UpdateType     string      `json:"updateType,omitempty"`
	UpdateUser     *UpdateUser `json:"updateUser,omitempty"`
	Description    string      `json:"description,omitempty"`
	RollbackSource string      `json:"rollbackSource,omitempty"`
	IsLegacy       bool        `json:"isLegacy,omitempty"`
}

// UpdateUser identifies who published a version
type UpdateUser struct {
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Number parses VersionNumber; it is sent as a decimal string
func (v Version) Number() (int64, error) {
	return strconv.ParseInt(v.VersionNumber, 10, 64)
}

// UpdatedAt parses UpdateTime, returning the zero time when unset
func (v Version) UpdatedAt() time.Time {
	t, err := time.Parse(time.RFC3339Nano, v.UpdateTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// InAppDefault returns a value that tells clients to use their built-in default
func InAppDefault() *ParameterValue {
	yes := true
	return &ParameterValue{UseInAppDefault: &yes}
}

// ExplicitValue returns a literal parameter value
func ExplicitValue(value string) *ParameterValue {
	return &ParameterValue{Value: &value}
}

type templateFields Template

var knownTemplateKeys = []string{"conditions", "parameters", "parameterGroups", "version"}

// UnmarshalJSON decodes the template and keeps unknown top-level keys
func (t *Template) UnmarshalJSON(data []byte) error {
	var fields templateFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, key := range knownTemplateKeys {
		delete(all, key)
	}
	*t = Template(fields)
	if len(all) > 0 {
		t.extra = all
	}
	return nil
}

// MarshalJSON encodes the template including the kept unknown keys
func (t Template) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(templateFields(t))
	if err != nil {
		return nil, err
	}
	if len(t.extra) == 0 {
		return known, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for key, value := range t.extra {
		if _, exists := merged[key]; !exists {
			merged[key] = value
		}
	}
	return json.Marshal(merged)
}

// ParseTemplate decodes a template document
func ParseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &t, nil
}

// AddCondition appends a condition. Names are unique within a template.
func (t *Template) AddCondition(c Condition) error {
	if c.Name == "" || c.Expression == "" {
		return fmt.Errorf("%w: condition needs a name and an expression", admin.ErrInvalidArgument)
	}
	for _, existing := range t.Conditions {
		if existing.Name == c.Name {
			return fmt.Errorf("%w: condition %q already exists", admin.ErrInvalidArgument, c.Name)
		}
	}
	t.Conditions = append(t.Conditions, c)
	return nil
}

// AddParameterToGroup puts a parameter in group, creating the group if needed.
// An existing parameter with the same key in the group is replaced.
func (t *Template) AddParameterToGroup(group, key string, p Parameter) error {
	if group == "" || key == "" {
		return fmt.Errorf("%w: parameter needs a group and a key", admin.ErrInvalidArgument)
	}
	if _, ungrouped := t.Parameters[key]; ungrouped {
		return fmt.Errorf("%w: parameter %q already exists outside group %q", admin.ErrInvalidArgument, key, group)
	}
	if t.ParameterGroups == nil {
		t.ParameterGroups = make(map[string]ParameterGroup)
	}
	g := t.ParameterGroups[group]
	if g.Parameters == nil {
		g.Parameters = make(map[string]Parameter)
	}
	g.Parameters[key] = p
	t.ParameterGroups[group] = g
	return nil
}
