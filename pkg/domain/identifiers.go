package domain

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	instanceSeparator   = ":"
	identifierSeparator = "/"
)

var (
	codePattern       = regexp.MustCompile(`^[A-Z0-9_\-.]+$`)
	sampleCodePattern = regexp.MustCompile(`^[A-Z0-9_\-.:]+$`)
)

// NormalizeCode upper-cases and trims a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCode checks a normalized code against the allowed character set.
func ValidateCode(code string) error {
	if code == "" {
		return UserFailuref("Code must not be empty.")
	}
	if !codePattern.MatchString(code) {
		return UserFailuref("Code '%s' contains illegal characters. Allowed are letters, digits, '_', '-' and '.'.", code)
	}
	return nil
}

// ValidateSampleCode is ValidateCode additionally allowing the container separator ':'.
func ValidateSampleCode(code string) error {
	if code == "" {
		return UserFailuref("Code must not be empty.")
	}
	if !sampleCodePattern.MatchString(code) {
		return UserFailuref("Code '%s' contains illegal characters. Allowed are letters, digits, '_', '-', '.' and ':'.", code)
	}
	return nil
}

func splitInstance(value string) (instance, rest string) {
	if i := strings.Index(value, instanceSeparator+identifierSeparator); i >= 0 {
		return NormalizeCode(value[:i]), value[i+1:]
	}
	return "", value
}

func instancePrefix(instance string) string {
	if instance == "" {
		return ""
	}
	return instance + instanceSeparator
}

// GroupIdentifier names a group. An empty Group denotes the user's home group.
type GroupIdentifier struct {
	Instance string `json:"instance,omitempty"`
	Group    string `json:"group,omitempty"`
}

// HomeGroup reports whether the identifier refers to the home group.
func (g GroupIdentifier) HomeGroup() bool { return g.Group == "" }

func (g GroupIdentifier) String() string {
	return instancePrefix(g.Instance) + identifierSeparator + g.Group
}

// ParseGroupIdentifier parses "[DB:]/GROUP".
func ParseGroupIdentifier(value string) (GroupIdentifier, error) {
	instance, rest := splitInstance(strings.TrimSpace(value))
	rest = strings.TrimPrefix(rest, identifierSeparator)
	if rest == "" || strings.Contains(rest, identifierSeparator) {
		return GroupIdentifier{}, UserFailuref("Invalid group identifier '%s'.", value)
	}
	return GroupIdentifier{Instance: instance, Group: NormalizeCode(rest)}, nil
}

// ProjectIdentifier names a project inside a group.
type ProjectIdentifier struct {
	Instance string `json:"instance,omitempty"`
	Group    string `json:"group"`
	Project  string `json:"project"`
}

// GroupIdentifier returns the identifier of the owning group.
func (p ProjectIdentifier) GroupIdentifier() GroupIdentifier {
	return GroupIdentifier{Instance: p.Instance, Group: p.Group}
}

func (p ProjectIdentifier) String() string {
	return instancePrefix(p.Instance) + identifierSeparator + p.Group + identifierSeparator + p.Project
}

// ParseProjectIdentifier parses "[DB:]/GROUP/PROJECT".
func ParseProjectIdentifier(value string) (ProjectIdentifier, error) {
	instance, rest := splitInstance(strings.TrimSpace(value))
	parts := strings.Split(strings.TrimPrefix(rest, identifierSeparator), identifierSeparator)
	if !strings.HasPrefix(rest, identifierSeparator) || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ProjectIdentifier{}, UserFailuref("Invalid project identifier '%s'.", value)
	}
	return ProjectIdentifier{Instance: instance, Group: NormalizeCode(parts[0]), Project: NormalizeCode(parts[1])}, nil
}

// ExperimentIdentifier names an experiment inside a project.
type ExperimentIdentifier struct {
	Instance   string `json:"instance,omitempty"`
	Group      string `json:"group"`
	Project    string `json:"project"`
	Experiment string `json:"experiment"`
}

// ProjectIdentifier returns the identifier of the owning project.
func (e ExperimentIdentifier) ProjectIdentifier() ProjectIdentifier {
	return ProjectIdentifier{Instance: e.Instance, Group: e.Group, Project: e.Project}
}

// GroupIdentifier returns the identifier of the owning group.
func (e ExperimentIdentifier) GroupIdentifier() GroupIdentifier {
	return GroupIdentifier{Instance: e.Instance, Group: e.Group}
}

func (e ExperimentIdentifier) String() string {
	return e.ProjectIdentifier().String() + identifierSeparator + e.Experiment
}

// ParseExperimentIdentifier parses "[DB:]/GROUP/PROJECT/EXPERIMENT".
func ParseExperimentIdentifier(value string) (ExperimentIdentifier, error) {
	instance, rest := splitInstance(strings.TrimSpace(value))
	parts := strings.Split(strings.TrimPrefix(rest, identifierSeparator), identifierSeparator)
	if !strings.HasPrefix(rest, identifierSeparator) || len(parts) != 3 {
		return ExperimentIdentifier{}, UserFailuref("Invalid experiment identifier '%s'.", value)
	}
	for _, p := range parts {
		if p == "" {
			return ExperimentIdentifier{}, UserFailuref("Invalid experiment identifier '%s'.", value)
		}
	}
	return ExperimentIdentifier{
		Instance:   instance,
		Group:      NormalizeCode(parts[0]),
		Project:    NormalizeCode(parts[1]),
		Experiment: NormalizeCode(parts[2]),
	}, nil
}

// SampleIdentifier names a sample. Shared samples belong to the instance;
// otherwise an empty Group denotes the home group.
type SampleIdentifier struct {
	Instance string `json:"instance,omitempty"`
	Group    string `json:"group,omitempty"`
	Code     string `json:"code"`
	Shared   bool   `json:"shared,omitempty"`
}

// HomeGroup reports whether the identifier is relative to the home group.
func (s SampleIdentifier) HomeGroup() bool { return !s.Shared && s.Group == "" }

// Owner returns the group identifier of a group sample.
func (s SampleIdentifier) Owner() GroupIdentifier {
	return GroupIdentifier{Instance: s.Instance, Group: s.Group}
}

func (s SampleIdentifier) String() string {
	switch {
	case s.Shared:
		return instancePrefix(s.Instance) + identifierSeparator + s.Code
	case s.Group == "":
		return s.Code
	default:
		return instancePrefix(s.Instance) + identifierSeparator + s.Group + identifierSeparator + s.Code
	}
}

// ParseSampleIdentifier parses "CODE", "[DB:]/CODE" or "[DB:]/GROUP/CODE".
func ParseSampleIdentifier(value string) (SampleIdentifier, error) {
	trimmed := strings.TrimSpace(value)
	instance, rest := splitInstance(trimmed)
	if !strings.HasPrefix(rest, identifierSeparator) {
		if instance != "" || rest == "" || strings.Contains(rest, identifierSeparator) {
			return SampleIdentifier{}, UserFailuref("Invalid sample identifier '%s'.", value)
		}
		return SampleIdentifier{Code: NormalizeCode(rest)}, nil
	}
	parts := strings.Split(strings.TrimPrefix(rest, identifierSeparator), identifierSeparator)
	switch {
	case len(parts) == 1 && parts[0] != "":
		return SampleIdentifier{Instance: instance, Code: NormalizeCode(parts[0]), Shared: true}, nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return SampleIdentifier{Instance: instance, Group: NormalizeCode(parts[0]), Code: NormalizeCode(parts[1])}, nil
	default:
		return SampleIdentifier{}, UserFailuref("Invalid sample identifier '%s'.", value)
	}
}

// MaterialIdentifier names a material by code and type, rendered "CODE (TYPE)".
type MaterialIdentifier struct {
	Code string `json:"code"`
	Type string `json:"type"`
}

func (m MaterialIdentifier) String() string {
	return fmt.Sprintf("%s (%s)", m.Code, m.Type)
}

// ParseMaterialIdentifier parses "CODE (TYPE)". The type is optional when
// defaultType is non-empty.
func ParseMaterialIdentifier(value, defaultType string) (MaterialIdentifier, error) {
	v := strings.TrimSpace(value)
	if open := strings.LastIndex(v, "("); open > 0 && strings.HasSuffix(v, ")") {
		code := NormalizeCode(v[:open])
		typ := NormalizeCode(v[open+1 : len(v)-1])
		if code != "" && typ != "" {
			return MaterialIdentifier{Code: code, Type: typ}, nil
		}
	}
	if v != "" && defaultType != "" && !strings.ContainsAny(v, "()") {
		return MaterialIdentifier{Code: NormalizeCode(v), Type: defaultType}, nil
	}
	return MaterialIdentifier{}, UserFailuref("Material identifier '%s' has to be of the form 'CODE (TYPE)'.", value)
}
