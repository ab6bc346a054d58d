package terminus

import (
	"math"
	"sync"
	"time"

	"github.com/pldm-stack/pldm-go/pkg/wire"
)

// SensorID identifies a sensor within its terminus.
type SensorID uint16

// Reading is a point-in-time snapshot of a sensor's state.
type Reading struct {
	// Value is the converted reading in the sensor's base unit.
	// NaN when the sensor is unavailable.
	Value float64

	// Raw is the unconverted reading from the wire.
	Raw int32

	// State is the sensor's operational state at the time of the reading.
	State wire.SensorOperationalState

	// UpdatedAt is when the reading was last refreshed.
	UpdatedAt time.Time
}

// Available reports whether the reading represents a live value.
func (r Reading) Available() bool {
	return !math.IsNaN(r.Value)
}

// NumericSensor is one numeric sensor owned by a terminus. Raw readings
// are converted with y = raw*resolution + offset, per the sensor's PDR.
type NumericSensor struct {
	mu sync.RWMutex

	// ID identifies the sensor within its terminus.
	id SensorID

	// Name is the sensor's human-readable name.
	name string

	// Unit is the base unit label (e.g. "Celsius", "Watts").
	unit string

	// Conversion factors from the numeric sensor PDR.
	resolution float64
	offset     float64

	reading Reading
}

// NewNumericSensor creates a sensor with the given identity and unit
// conversion. A zero resolution is treated as 1 (identity conversion).
func NewNumericSensor(id SensorID, name, unit string, resolution, offset float64) *NumericSensor {
	if resolution == 0 {
		resolution = 1
	}
	return &NumericSensor{
		id:         id,
		name:       name,
		unit:       unit,
		resolution: resolution,
		offset:     offset,
		reading: Reading{
			Value: math.NaN(),
			State: wire.SensorInitializing,
		},
	}
}

// ID returns the sensor ID.
func (s *NumericSensor) ID() SensorID {
	return s.id
}

// Name returns the sensor name.
func (s *NumericSensor) Name() string {
	return s.name
}

// Unit returns the base unit label.
func (s *NumericSensor) Unit() string {
	return s.unit
}

// Reading returns a snapshot of the current reading.
func (s *NumericSensor) Reading() Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reading
}

// UpdateReading stores a new raw reading, applying unit conversion.
func (s *NumericSensor) UpdateReading(raw int32, state wire.SensorOperationalState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reading = Reading{
		Raw:       raw,
		State:     state,
		UpdatedAt: time.Now(),
	}
	if state == wire.SensorEnabled {
		s.reading.Value = float64(raw)*s.resolution + s.offset
	} else {
		s.reading.Value = math.NaN()
	}
}

// MarkUnavailable marks the sensor unavailable. The stored value becomes
// NaN so a stale reading is never presented as current.
func (s *NumericSensor) MarkUnavailable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reading.Value = math.NaN()
	s.reading.State = wire.SensorUnavailable
	s.reading.UpdatedAt = time.Now()
}
