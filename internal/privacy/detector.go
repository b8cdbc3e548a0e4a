package privacy

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/config"
)

// Detector is a configurable scanner. Categories can be switched on and off
// at runtime; Scan and Redact are safe for concurrent use.
type Detector struct {
	mu      sync.RWMutex
	enabled [categoryCount]bool
	active  bool
	logger  *zap.Logger
}

// NewDetector creates a detector with the categories named in cfg.Detectors
// enabled. "all" enables every category.
func NewDetector(cfg config.PrivacyConfig, log *zap.Logger) (*Detector, error) {
	if log == nil {
		log = zap.NewNop()
	}

	d := &Detector{
		active: cfg.Enabled,
		logger: log,
	}

	if err := d.configureDetectors(cfg.Detectors); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Info("Privacy detector initialized",
		zap.Bool("enabled", d.active),
		zap.Int("total_categories", int(categoryCount)),
		zap.Strings("enabled_categories", d.EnabledCategoryNames()))

	return d, nil
}

// configureDetectors enables exactly the listed categories
func (d *Detector) configureDetectors(detectors []string) error {
	var enabled [categoryCount]bool
	for _, name := range detectors {
		if name == "all" {
			for c := range enabled {
				enabled[c] = true
			}
			continue
		}

		c, err := ParseCategory(name)
		if err != nil {
			return err
		}
		enabled[c] = true
	}

	d.mu.Lock()
	d.enabled = enabled
	d.mu.Unlock()
	return nil
}

// Scan runs the enabled detectors over text. A disabled detector reports
// no PII.
func (d *Detector) Scan(text string) Result {
	d.mu.RLock()
	active := d.active
	enabled := d.enabled
	d.mu.RUnlock()

	if !active {
		return assess(make([]Match, 0))
	}

	result := scan(text, defaultRules, keywordRules, func(c Category) bool { return enabled[c] })
	if len(result.Matches) > 0 {
		d.logger.Debug("PII detected",
			zap.String("risk_level", result.RiskLevel.String()),
			zap.Int("count", len(result.Matches)),
			zap.Strings("categories", result.CategoryNames()))
	}
	return result
}

// Redact scans text with the enabled detectors when result is nil and
// replaces every match with its placeholder.
func (d *Detector) Redact(text string, result *Result) string {
	if result == nil {
		scanned := d.Scan(text)
		result = &scanned
	}
	return Redact(text, result)
}

// Enabled reports whether scanning is switched on.
func (d *Detector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active
}

// EnabledCategories returns the enabled categories in declaration order.
func (d *Detector) EnabledCategories() []Category {
	d.mu.RLock()
	defer d.mu.RUnlock()

	categories := make([]Category, 0, categoryCount)
	for c := Category(0); c < categoryCount; c++ {
		if d.enabled[c] {
			categories = append(categories, c)
		}
	}
	return categories
}

// EnabledCategoryNames is EnabledCategories rendered as strings.
func (d *Detector) EnabledCategoryNames() []string {
	categories := d.EnabledCategories()
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.String()
	}
	return names
}

// EnableCategory enables a specific category
func (d *Detector) EnableCategory(name string) error {
	return d.setCategory(name, true)
}

// DisableCategory disables a specific category
func (d *Detector) DisableCategory(name string) error {
	return d.setCategory(name, false)
}

func (d *Detector) setCategory(name string, on bool) error {
	c, err := ParseCategory(name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.enabled[c] = on
	d.mu.Unlock()

	d.logger.Info("Detection category toggled", zap.String("category", name), zap.Bool("enabled", on))
	return nil
}
