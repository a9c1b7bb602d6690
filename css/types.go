package css

import "strings"

// MediaQuery represents a single parsed media query, e.g.
// "screen and (min-width: 1041px) and (min-resolution: 2dppx)".
type MediaQuery struct {
	Raw      string         // Original media query string
	Type     string         // Media type (e.g., "screen"), empty when omitted
	Negated  bool           // true if "not" modifier was used on main type
	Features []MediaFeature // Parenthesized conditions in order
}

// MediaFeature represents a single "(name: value)" condition.
type MediaFeature struct {
	Name     string  // Feature name, lower case (e.g., "min-width")
	Value    float64 // Numeric value, normalized for known features
	Unit     string  // Unit after normalization (px, dppx), empty for plain numbers
	HasValue bool    // false for boolean features like "(color)"
}

// Feature returns first feature with a given name.
func (mq MediaQuery) Feature(name string) (MediaFeature, bool) {
	name = strings.ToLower(name)
	for _, f := range mq.Features {
		if f.Name == name && f.HasValue {
			return f, true
		}
	}
	return MediaFeature{}, false
}

// MinWidth returns "min-width" condition in pixels.
func (mq MediaQuery) MinWidth() (int, bool) {
	f, ok := mq.Feature("min-width")
	if !ok || (f.Unit != "px" && f.Unit != "") {
		return 0, false
	}
	return int(f.Value), true
}

// MinResolution returns "min-resolution" condition in dppx.
func (mq MediaQuery) MinResolution() (float64, bool) {
	f, ok := mq.Feature("min-resolution")
	if !ok || f.Unit != "dppx" {
		return 0, false
	}
	return f.Value, true
}

// normalize converts resolution units to dppx, other values are kept as is.
func normalize(name string, value float64, unit string) (float64, string) {
	if name != "min-resolution" && name != "max-resolution" && name != "resolution" {
		return value, unit
	}
	switch unit {
	case "dppx", "x":
		return value, "dppx"
	case "dpi":
		return value / 96, "dppx"
	case "dpcm":
		return value * 2.54 / 96, "dppx"
	}
	return value, unit
}
