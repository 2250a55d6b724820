package verdict

import "strings"

// Condition selects the geometric heuristic applied when no reference is
// loaded. The zero value is Unknown, which always passes.
type Condition int

const (
	Unknown Condition = iota
	CurvatureRequired
	NeutralAlignment
	Symmetry
	BoundedNeutral
)

var conditionNames = map[Condition]string{
	Unknown:           "unknown",
	CurvatureRequired: "curvature-required",
	NeutralAlignment:  "neutral-alignment-required",
	Symmetry:          "symmetry-required",
	BoundedNeutral:    "bounded-neutral-required",
}

// Classifier output labels, mapped onto the condition they call for.
var conditionLabels = map[string]Condition{
	"espondilolisis":                  CurvatureRequired,
	"lumbalgia mecánica inespecífica": NeutralAlignment,
	"lumbalgia mecanica inespecifica": NeutralAlignment,
	"escoliosis lumbar":               Symmetry,
	"hernia de disco lumbar":          BoundedNeutral,

	"spondylolysis":                        CurvatureRequired,
	"nonspecific mechanical low back pain": NeutralAlignment,
	"lumbar scoliosis":                     Symmetry,
	"lumbar disc herniation":               BoundedNeutral,
}

func init() {
	for c, name := range conditionNames {
		if c != Unknown {
			conditionLabels[name] = c
		}
	}
}

func (c Condition) String() string {
	if name, ok := conditionNames[c]; ok {
		return name
	}
	return conditionNames[Unknown]
}

// ParseCondition maps a classifier label or condition name to a Condition.
// Matching ignores case and surrounding whitespace. Unrecognised labels map
// to Unknown.
func ParseCondition(label string) Condition {
	key := strings.ToLower(strings.TrimSpace(label))
	if c, ok := conditionLabels[key]; ok {
		return c
	}
	return Unknown
}

// MarshalText encodes the condition name.
func (c Condition) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a condition name or classifier label.
func (c *Condition) UnmarshalText(text []byte) error {
	*c = ParseCondition(string(text))
	return nil
}
