package InputParameters

import (
	"fmt"
	"io"
	"regexp"

	"github.com/ghodss/yaml"
)

// Parameters controlling the block scanner and the field classification
// heuristics, obtained from the YAML input file
type HeuristicParameters struct {
	MaxComponents          int     `yaml:"MaxComponents" json:"MaxComponents"`                   // Components kept per data row
	MinHeaderLength        int     `yaml:"MinHeaderLength" json:"MinHeaderLength"`               // Shorter plain lines never become headers
	DisplacementRatio      float64 `yaml:"DisplacementRatio" json:"DisplacementRatio"`           // max|s| below ratio*D => displacement
	ScalarRatio            float64 `yaml:"ScalarRatio" json:"ScalarRatio"`                       // max|s| above ratio*D => scalar
	CoverageFraction       float64 `yaml:"CoverageFraction" json:"CoverageFraction"`             // Node id hits needed for coverage promotion
	ElementIndexedFraction float64 `yaml:"ElementIndexedFraction" json:"ElementIndexedFraction"` // Below this node hit fraction rows are per element
	DisplacementPattern    string  `yaml:"DisplacementPattern" json:"DisplacementPattern"`
	StressPattern          string  `yaml:"StressPattern" json:"StressPattern"`
	StrainPattern          string  `yaml:"StrainPattern" json:"StrainPattern"`
	VectorPattern          string  `yaml:"VectorPattern" json:"VectorPattern"`
	StressComponentPattern string  `yaml:"StressComponentPattern" json:"StressComponentPattern"`
}

const (
	DefaultMaxComponents          = 6
	DefaultMinHeaderLength        = 3
	DefaultDisplacementRatio      = 0.01
	DefaultScalarRatio            = 0.10
	DefaultCoverageFraction       = 0.9
	DefaultElementIndexedFraction = 0.5
	DefaultDisplacementPattern    = `(?i)\bU\b|\bU[XYZ]\b|DISP|DISPLAC`
	DefaultStressPattern          = `(?i)\bS\b|STRESS|SIGMA|VMISES|MISES|EQUIV`
	DefaultStrainPattern          = `(?i)\bE\b|STRAIN|\bEPS`
	DefaultVectorPattern          = `(?i)FORC|VELO|VELOCITY|ACCEL|\bRF\b`
	DefaultStressComponentPattern = `(?i)^S(XX|YY|ZZ|XY|YZ|ZX|XZ|\d)`
)

// Defaults returns the parameters used when no input file is given
func Defaults() *HeuristicParameters {
	return &HeuristicParameters{
		MaxComponents:          DefaultMaxComponents,
		MinHeaderLength:        DefaultMinHeaderLength,
		DisplacementRatio:      DefaultDisplacementRatio,
		ScalarRatio:            DefaultScalarRatio,
		CoverageFraction:       DefaultCoverageFraction,
		ElementIndexedFraction: DefaultElementIndexedFraction,
		DisplacementPattern:    DefaultDisplacementPattern,
		StressPattern:          DefaultStressPattern,
		StrainPattern:          DefaultStrainPattern,
		VectorPattern:          DefaultVectorPattern,
		StressComponentPattern: DefaultStressComponentPattern,
	}
}

// Parse overlays the YAML document onto the receiver, keys missing from the
// document keep their current values
func (hp *HeuristicParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, hp); err != nil {
		return err
	}
	return hp.Validate()
}

// Validate checks ranges and that every pattern compiles
func (hp *HeuristicParameters) Validate() error {
	if hp.MaxComponents < 1 {
		return fmt.Errorf("MaxComponents must be at least 1, have %d", hp.MaxComponents)
	}
	if hp.MinHeaderLength < 0 {
		return fmt.Errorf("MinHeaderLength must not be negative, have %d", hp.MinHeaderLength)
	}
	if hp.DisplacementRatio < 0 || hp.ScalarRatio < hp.DisplacementRatio {
		return fmt.Errorf("need 0 <= DisplacementRatio <= ScalarRatio, have %v and %v",
			hp.DisplacementRatio, hp.ScalarRatio)
	}
	for name, frac := range map[string]float64{
		"CoverageFraction":       hp.CoverageFraction,
		"ElementIndexedFraction": hp.ElementIndexedFraction,
	} {
		if frac < 0 || frac > 1 {
			return fmt.Errorf("%s must be within [0,1], have %v", name, frac)
		}
	}
	for name, pat := range map[string]string{
		"DisplacementPattern":    hp.DisplacementPattern,
		"StressPattern":          hp.StressPattern,
		"StrainPattern":          hp.StrainPattern,
		"VectorPattern":          hp.VectorPattern,
		"StressComponentPattern": hp.StressComponentPattern,
	} {
		if _, err := regexp.Compile(pat); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, pat, err)
		}
	}
	return nil
}

// Print writes the parameters one per line
func (hp *HeuristicParameters) Print(w io.Writer) {
	fmt.Fprintf(w, "[%d]\t\t\t\t= Max Components\n", hp.MaxComponents)
	fmt.Fprintf(w, "[%d]\t\t\t\t= Min Header Length\n", hp.MinHeaderLength)
	fmt.Fprintf(w, "%8.5f\t\t= Displacement Ratio\n", hp.DisplacementRatio)
	fmt.Fprintf(w, "%8.5f\t\t= Scalar Ratio\n", hp.ScalarRatio)
	fmt.Fprintf(w, "%8.5f\t\t= Coverage Fraction\n", hp.CoverageFraction)
	fmt.Fprintf(w, "%8.5f\t\t= Element Indexed Fraction\n", hp.ElementIndexedFraction)
	fmt.Fprintf(w, "[%s]\t= Displacement Pattern\n", hp.DisplacementPattern)
	fmt.Fprintf(w, "[%s]\t= Stress Pattern\n", hp.StressPattern)
	fmt.Fprintf(w, "[%s]\t= Strain Pattern\n", hp.StrainPattern)
	fmt.Fprintf(w, "[%s]\t= Vector Pattern\n", hp.VectorPattern)
	fmt.Fprintf(w, "[%s]\t= Stress Component Pattern\n", hp.StressComponentPattern)
}
