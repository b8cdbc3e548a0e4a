package privacy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/secureclaw/internal/config"
)

func TestNewDetector(t *testing.T) {
	t.Run("All", func(t *testing.T) {
		d, err := NewDetector(config.PrivacyConfig{Enabled: true, Detectors: []string{"all"}}, zap.NewNop())
		require.NoError(t, err)
		assert.Len(t, d.EnabledCategories(), 12)
		assert.True(t, d.Enabled())
	})

	t.Run("UnknownDetector", func(t *testing.T) {
		_, err := NewDetector(config.PrivacyConfig{Enabled: true, Detectors: []string{"retina"}}, nil)
		assert.Error(t, err)
	})
}

func TestDetectorScan(t *testing.T) {
	text := "SSN 123-45-6789 jane@example.com"

	t.Run("OnlyEnabledCategories", func(t *testing.T) {
		d, err := NewDetector(config.PrivacyConfig{Enabled: true, Detectors: []string{"email"}}, zap.NewNop())
		require.NoError(t, err)

		r := d.Scan(text)
		assert.Equal(t, []string{"email"}, r.CategoryNames())
		assert.Equal(t, RiskMedium, r.RiskLevel)
		assert.Equal(t, "SSN 123-45-6789 [REDACTED:email]", d.Redact(text, nil))
	})

	t.Run("MatchesPackageScanWhenAllEnabled", func(t *testing.T) {
		d, err := NewDetector(config.PrivacyConfig{Enabled: true, Detectors: []string{"all"}}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, Scan(text), d.Scan(text))
	})

	t.Run("Disabled", func(t *testing.T) {
		d, err := NewDetector(config.PrivacyConfig{Enabled: false, Detectors: []string{"all"}}, zap.NewNop())
		require.NoError(t, err)
		r := d.Scan(text)
		assert.Equal(t, RiskLow, r.RiskLevel)
		assert.Equal(t, "No PII detected.", r.Summary)
		assert.Equal(t, text, d.Redact(text, nil))
	})

	t.Run("Toggle", func(t *testing.T) {
		d, err := NewDetector(config.PrivacyConfig{Enabled: true, Detectors: []string{"email"}}, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, d.EnableCategory("ssn"))
		require.NoError(t, d.DisableCategory("email"))
		assert.Equal(t, []string{"ssn"}, d.Scan(text).CategoryNames())
		assert.Equal(t, []string{"ssn"}, d.EnabledCategoryNames())

		assert.Error(t, d.EnableCategory("retina"))
		assert.Error(t, d.DisableCategory("retina"))
	})
}

func TestDetectorConcurrent(t *testing.T) {
	d, err := NewDetector(config.PrivacyConfig{Enabled: true, Detectors: []string{"all"}}, zap.NewNop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = d.Scan("call 555-123-4567")
		}()
		go func() {
			defer wg.Done()
			_ = d.DisableCategory("phone")
			_ = d.EnableCategory("phone")
		}()
	}
	wg.Wait()
	assert.Len(t, d.EnabledCategories(), 12)
}
