package analyzer

import "fmt"

// NewDetector creates a detector based on the specified variant
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	case "contrast-fine":
		d := NewContrastDetector()
		d.MinBlockArea = 150
		d.EdgeThreshold = 18
		d.MaxSide = 1280
		return d, nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}
