package blocks

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BlockType identifies one of the 13 semantic fragments a prompt is split into.
type BlockType string

const (
	SubjectType     BlockType = "subject_type"
	SubjectFeatures BlockType = "subject_features"
	Outfit          BlockType = "outfit"
	Pose            BlockType = "pose"
	Expression      BlockType = "expression"
	Background      BlockType = "background"
	Style           BlockType = "style"
	Lighting        BlockType = "lighting"
	ColorMood       BlockType = "color_mood"
	Composition     BlockType = "composition"
	Camera          BlockType = "camera"
	Effects         BlockType = "effects"
	Quality         BlockType = "quality"
)

// AllTypes is the canonical ordering of the 13 block types. Every place that
// iterates block types iterates in this order.
var AllTypes = []BlockType{
	SubjectType,
	SubjectFeatures,
	Outfit,
	Pose,
	Expression,
	Background,
	Style,
	Lighting,
	ColorMood,
	Composition,
	Camera,
	Effects,
	Quality,
}

// IsValid reports whether t is one of the 13 known block types.
func (t BlockType) IsValid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// DecomposeResult maps every block type to the fragment the model inferred
// for it. An empty string means the block is not present in the image. All 13
// fields are always populated; the struct is never partially filled.
type DecomposeResult struct {
	SubjectType     string `json:"subject_type"`
	SubjectFeatures string `json:"subject_features"`
	Outfit          string `json:"outfit"`
	Pose            string `json:"pose"`
	Expression      string `json:"expression"`
	Background      string `json:"background"`
	Style           string `json:"style"`
	Lighting        string `json:"lighting"`
	ColorMood       string `json:"color_mood"`
	Composition     string `json:"composition"`
	Camera          string `json:"camera"`
	Effects         string `json:"effects"`
	Quality         string `json:"quality"`
}

// Value returns the fragment stored for the given block type.
func (r *DecomposeResult) Value(t BlockType) string {
	switch t {
	case SubjectType:
		return r.SubjectType
	case SubjectFeatures:
		return r.SubjectFeatures
	case Outfit:
		return r.Outfit
	case Pose:
		return r.Pose
	case Expression:
		return r.Expression
	case Background:
		return r.Background
	case Style:
		return r.Style
	case Lighting:
		return r.Lighting
	case ColorMood:
		return r.ColorMood
	case Composition:
		return r.Composition
	case Camera:
		return r.Camera
	case Effects:
		return r.Effects
	case Quality:
		return r.Quality
	}
	return ""
}

// Set stores the fragment for the given block type.
func (r *DecomposeResult) Set(t BlockType, v string) {
	switch t {
	case SubjectType:
		r.SubjectType = v
	case SubjectFeatures:
		r.SubjectFeatures = v
	case Outfit:
		r.Outfit = v
	case Pose:
		r.Pose = v
	case Expression:
		r.Expression = v
	case Background:
		r.Background = v
	case Style:
		r.Style = v
	case Lighting:
		r.Lighting = v
	case ColorMood:
		r.ColorMood = v
	case Composition:
		r.Composition = v
	case Camera:
		r.Camera = v
	case Effects:
		r.Effects = v
	case Quality:
		r.Quality = v
	}
}

// HasContent reports whether the block type holds non-whitespace content.
func (r *DecomposeResult) HasContent(t BlockType) bool {
	return strings.TrimSpace(r.Value(t)) != ""
}

// FromMap builds a DecomposeResult from a loosely-typed key/value mapping,
// ignoring unknown keys. Missing keys stay empty.
func FromMap(m map[string]string) *DecomposeResult {
	result := &DecomposeResult{}
	for key, value := range m {
		t := BlockType(key)
		if t.IsValid() {
			result.Set(t, strings.TrimSpace(value))
		}
	}
	return result
}

// ParseResultJSON decodes a JSON object of block fragments into a
// DecomposeResult.
func ParseResultJSON(data []byte) (*DecomposeResult, error) {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse block result: %w", err)
	}
	return FromMap(m), nil
}
