package controller

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"greenhouse_control/internal/models"
)

var (
	// ErrUnknownThreshold is returned when an update names a field that does not exist.
	ErrUnknownThreshold = errors.New("unknown threshold field")
	// ErrThresholdRange indicates a value outside the field's physical range.
	ErrThresholdRange = errors.New("threshold outside permitted range")
	// ErrThresholdOrder indicates a low bound above its matching high bound.
	ErrThresholdOrder = errors.New("threshold low bound above high bound")
)

// Canonical threshold field names.
const (
	FieldSoilLow    = "soil_low"
	FieldSoilHigh   = "soil_high"
	FieldTempLow    = "temp_low"
	FieldTempHigh   = "temp_high"
	FieldCO2High    = "co2_high"
	FieldLightLow   = "light_low"
	FieldVoltageLow = "voltage_low"
	FieldSignalLow  = "signal_low"
)

type thresholdField struct {
	min, max float64
	ptr      func(*models.Thresholds) *float64
}

var thresholdFields = map[string]thresholdField{
	FieldSoilLow:    {0, 100, func(t *models.Thresholds) *float64 { return &t.SoilLowPct }},
	FieldSoilHigh:   {0, 100, func(t *models.Thresholds) *float64 { return &t.SoilHighPct }},
	FieldTempLow:    {-40, 80, func(t *models.Thresholds) *float64 { return &t.TempLowC }},
	FieldTempHigh:   {-40, 80, func(t *models.Thresholds) *float64 { return &t.TempHighC }},
	FieldCO2High:    {0, 10000, func(t *models.Thresholds) *float64 { return &t.CO2HighPPM }},
	FieldLightLow:   {0, math.MaxUint16, func(t *models.Thresholds) *float64 { return &t.LightLow }},
	FieldVoltageLow: {0, 50, func(t *models.Thresholds) *float64 { return &t.VoltageLowV }},
	FieldSignalLow:  {-120, 0, func(t *models.Thresholds) *float64 { return &t.SignalLowDBm }},
}

// Operator-facing aliases, including the names the field firmware accepted.
var thresholdAliases = map[string]string{
	"suelo":     FieldSoilLow,
	"suelo_min": FieldSoilLow,
	"suelo_max": FieldSoilHigh,
	"temp":      FieldTempHigh,
	"temp_min":  FieldTempLow,
	"temp_max":  FieldTempHigh,
	"co2":       FieldCO2High,
	"luz":       FieldLightLow,
	"voltaje":   FieldVoltageLow,
	"senal":     FieldSignalLow,
	"rssi":      FieldSignalLow,
}

// CanonicalField resolves a field name or alias (case-insensitive).
func CanonicalField(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if _, ok := thresholdFields[n]; ok {
		return n, true
	}
	if c, ok := thresholdAliases[n]; ok {
		return c, true
	}
	return "", false
}

// FieldNames returns the canonical field names in sorted order.
func FieldNames() []string {
	out := make([]string, 0, len(thresholdFields))
	for k := range thresholdFields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ThresholdStore is the single mutable threshold configuration. Readers get
// a copy; every update is validated and applied as a whole under one lock.
type ThresholdStore struct {
	mu  sync.RWMutex
	cur models.Thresholds
}

// NewThresholdStore validates the initial configuration.
func NewThresholdStore(initial models.Thresholds) (*ThresholdStore, error) {
	if err := validateThresholds(initial); err != nil {
		return nil, fmt.Errorf("thresholds: %w", err)
	}
	return &ThresholdStore{cur: initial}, nil
}

// Get returns a copy of the current thresholds.
func (s *ThresholdStore) Get() models.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Set updates one field by name or alias.
func (s *ThresholdStore) Set(name string, value float64) (models.Thresholds, error) {
	return s.Apply(map[string]float64{name: value})
}

// Apply updates several fields at once. Either every field is applied or,
// on any error, none is.
func (s *ThresholdStore) Apply(updates map[string]float64) (models.Thresholds, error) {
	resolved := make(map[string]float64, len(updates))
	for name, v := range updates {
		c, ok := CanonicalField(name)
		if !ok {
			return models.Thresholds{}, fmt.Errorf("%w: %s", ErrUnknownThreshold, name)
		}
		f := thresholdFields[c]
		if math.IsNaN(v) || math.IsInf(v, 0) || v < f.min || v > f.max {
			return models.Thresholds{}, fmt.Errorf("%w: %s=%v (allowed %.0f..%.0f)", ErrThresholdRange, c, v, f.min, f.max)
		}
		resolved[c] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur
	for c, v := range resolved {
		*thresholdFields[c].ptr(&next) = v
	}
	if err := validateThresholds(next); err != nil {
		return s.cur, err
	}
	s.cur = next
	return next, nil
}

func validateThresholds(t models.Thresholds) error {
	for name, f := range thresholdFields {
		v := *f.ptr(&t)
		if math.IsNaN(v) || v < f.min || v > f.max {
			return fmt.Errorf("%w: %s=%v", ErrThresholdRange, name, v)
		}
	}
	if t.SoilLowPct > t.SoilHighPct {
		return fmt.Errorf("%w: soil %.1f > %.1f", ErrThresholdOrder, t.SoilLowPct, t.SoilHighPct)
	}
	if t.TempLowC > t.TempHighC {
		return fmt.Errorf("%w: temperature %.1f > %.1f", ErrThresholdOrder, t.TempLowC, t.TempHighC)
	}
	return nil
}
