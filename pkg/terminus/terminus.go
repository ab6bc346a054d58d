package terminus

import (
	"errors"
	"sort"
	"sync"
)

// TID is a terminus identifier, unique for the lifetime of a discovery
// session.
type TID uint8

// Terminus errors.
var (
	ErrDuplicateSensor = errors.New("duplicate sensor ID")
	ErrSensorNotFound  = errors.New("sensor not found")
)

// Terminus represents one discovered remote management agent and the
// sensors it owns.
type Terminus struct {
	mu sync.RWMutex

	// tid is the terminus identifier.
	tid TID

	// name is the terminus name from discovery, may be empty.
	name string

	// eid is the transport endpoint address the terminus was resolved from.
	eid uint8

	// sensors indexed by ID.
	sensors map[SensorID]*NumericSensor

	// order is the stable enumeration order of sensor IDs.
	order []SensorID
}

// New creates a terminus with no sensors.
func New(tid TID, eid uint8, name string) *Terminus {
	return &Terminus{
		tid:     tid,
		name:    name,
		eid:     eid,
		sensors: make(map[SensorID]*NumericSensor),
	}
}

// TID returns the terminus identifier.
func (t *Terminus) TID() TID {
	return t.tid
}

// Name returns the terminus name.
func (t *Terminus) Name() string {
	return t.name
}

// EID returns the transport endpoint address.
func (t *Terminus) EID() uint8 {
	return t.eid
}

// AddSensor registers a sensor with the terminus.
func (t *Terminus) AddSensor(s *NumericSensor) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.sensors[s.ID()]; exists {
		return ErrDuplicateSensor
	}
	t.sensors[s.ID()] = s
	t.order = append(t.order, s.ID())
	sort.Slice(t.order, func(i, j int) bool { return t.order[i] < t.order[j] })
	return nil
}

// Sensor returns the sensor with the given ID.
func (t *Terminus) Sensor(id SensorID) (*NumericSensor, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, exists := t.sensors[id]
	if !exists {
		return nil, ErrSensorNotFound
	}
	return s, nil
}

// Sensors returns the terminus's sensors in stable enumeration order
// (ascending sensor ID). The returned slice is a copy.
func (t *Terminus) Sensors() []*NumericSensor {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*NumericSensor, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.sensors[id])
	}
	return out
}

// SensorCount returns the number of sensors.
func (t *Terminus) SensorCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sensors)
}

// MarkSensorsUnavailable marks every sensor of the terminus unavailable.
func (t *Terminus) MarkSensorsUnavailable() {
	for _, s := range t.Sensors() {
		s.MarkUnavailable()
	}
}
