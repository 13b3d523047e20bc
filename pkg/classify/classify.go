// Package classify assigns every incoming document a truth-value class,
// a sensitivity level, and compliance tags, based purely on its
// filename. The verdict decides which extraction engine runs, how fast
// the document's relevance decays, and whether it must be encrypted at
// rest.
package classify

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ctxeco/backend/pkg/common"
)

const (
	truthConfidence = 0.85
	baseConfidence  = 0.70

	// Classes without a configured decay rate fall back to a middling one.
	defaultDecayRate = 0.5
)

// Classifier maps filenames to classification verdicts using the
// injected tables. It is stateless and safe for concurrent use.
type Classifier struct {
	cfg Config
}

// New creates a classifier over the given tables.
func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify derives the full verdict for a filename. It never fails: a
// filename that matches no table degrades to EphemeralStream with base
// confidence.
func (c *Classifier) Classify(filename string) common.ClassificationResult {
	name := strings.ToLower(filepath.Base(filename))
	ext := strings.ToLower(filepath.Ext(filename))

	class, reason := c.classifyByExtension(ext, name)
	return c.buildResult(class, reason, name)
}

// ClassifyForced skips class detection and uses the caller's class
// instead, recording the override in the reason. Sensitivity, category,
// and framework detection still run on the filename; decay rate and
// confidence follow the forced class so the verdict stays internally
// consistent. The caller validates the class before calling.
func (c *Classifier) ClassifyForced(filename string, forced common.DataClass) common.ClassificationResult {
	name := strings.ToLower(filepath.Base(filename))
	return c.buildResult(forced, "Forced classification override", name)
}

func (c *Classifier) buildResult(class common.DataClass, reason, name string) common.ClassificationResult {
	sensitivity := c.detectSensitivity(name)

	return common.ClassificationResult{
		DataClass:            class,
		SensitivityLevel:     sensitivity,
		DataCategories:       c.detectCategories(name),
		ComplianceFrameworks: c.detectFrameworks(name),
		DecayRate:            c.decayFor(class),
		Confidence:           confidenceFor(class),
		RequiresEncryption:   sensitivity == common.SensitivityHigh,
		Reason:               reason,
	}
}

// classifyByExtension resolves the truth-value class. Reference and
// operational extensions are terminal; narrative extensions can be
// escalated by a truth keyword in the filename.
func (c *Classifier) classifyByExtension(ext, name string) (common.DataClass, string) {
	if c.cfg.ReferenceExtensions[ext] {
		return common.ImmutableTruth, fmt.Sprintf("Extension %s → technical document", ext)
	}
	if c.cfg.OperationalExtensions[ext] {
		return common.OperationalPulse, fmt.Sprintf("Extension %s → operational data", ext)
	}
	if c.cfg.NarrativeExtensions[ext] {
		if kw, ok := c.matchTruthKeyword(name); ok {
			return common.ImmutableTruth, fmt.Sprintf("Filename keyword %q → technical document", kw)
		}
		return common.EphemeralStream, fmt.Sprintf("Extension %s → ephemeral content", ext)
	}
	return common.EphemeralStream, "Unknown type, defaulting to ephemeral"
}

func (c *Classifier) matchTruthKeyword(name string) (string, bool) {
	for _, kw := range c.cfg.TruthKeywords {
		if strings.Contains(name, kw) {
			return kw, true
		}
	}
	return "", false
}

func (c *Classifier) detectSensitivity(name string) common.SensitivityLevel {
	for _, kw := range c.cfg.HighSensitivity {
		if strings.Contains(name, kw) {
			return common.SensitivityHigh
		}
	}
	for _, kw := range c.cfg.ModerateSensitivity {
		if strings.Contains(name, kw) {
			return common.SensitivityModerate
		}
	}
	return common.SensitivityLow
}

func (c *Classifier) detectCategories(name string) []string {
	var categories []string
	for _, rule := range c.cfg.Categories {
		for _, kw := range rule.Keywords {
			if strings.Contains(name, kw) {
				categories = append(categories, rule.Tag)
				break
			}
		}
	}
	if len(categories) == 0 && c.cfg.DefaultCategory != "" {
		categories = []string{c.cfg.DefaultCategory}
	}
	return categories
}

func (c *Classifier) detectFrameworks(name string) []string {
	var frameworks []string
	for _, rule := range c.cfg.Frameworks {
		for _, kw := range rule.Keywords {
			if strings.Contains(name, kw) {
				frameworks = append(frameworks, rule.Tag)
				break
			}
		}
	}
	return frameworks
}

func (c *Classifier) decayFor(class common.DataClass) float64 {
	if rate, ok := c.cfg.DecayRates[class]; ok {
		return rate
	}
	return defaultDecayRate
}

func confidenceFor(class common.DataClass) float64 {
	if class == common.ImmutableTruth {
		return truthConfidence
	}
	return baseConfidence
}
