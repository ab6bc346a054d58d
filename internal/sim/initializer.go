package sim

import (
	"context"
	"fmt"
	"strings"

	"github.com/pldm-stack/pldm-go/pkg/discovery"
	"github.com/pldm-stack/pldm-go/pkg/platform"
	"github.com/pldm-stack/pldm-go/pkg/terminus"
	"github.com/pldm-stack/pldm-go/pkg/version"
	"github.com/pldm-stack/pldm-go/pkg/wire"
)

// Initializer builds terminus models from the fabric's simulated
// sensors, standing in for PDR retrieval. Endpoints declaring an
// incomplete command set are rejected.
func (f *Fabric) Initializer() platform.Initializer {
	return platform.InitializerFunc(func(ctx context.Context, tid terminus.TID, ep discovery.EndpointInfo) (*terminus.Terminus, error) {
		if err := checkDeclaredCommands(ep); err != nil {
			return nil, err
		}

		simT, ok := f.Terminus(ep.EID)
		if !ok {
			return nil, fmt.Errorf("%w: EID %d", ErrUnknownEndpoint, ep.EID)
		}

		t := terminus.New(tid, ep.EID, simT.name)

		simT.mu.Lock()
		defer simT.mu.Unlock()
		for _, s := range simT.sensors {
			ns := terminus.NewNumericSensor(terminus.SensorID(s.ID), s.Name, s.Unit, s.Resolution, s.Offset)
			if err := t.AddSensor(ns); err != nil {
				return nil, err
			}
		}
		return t, nil
	})
}

// checkDeclaredCommands validates the endpoint's advertised command set
// against the manifest for its advertised version. Endpoints that
// advertise nothing pass; they are probed at poll time instead.
func checkDeclaredCommands(ep discovery.EndpointInfo) error {
	if len(ep.Commands) == 0 {
		return nil
	}
	result, err := version.CheckDeclaredCommands(ep.Version, ep.Commands)
	if err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("EID %d: %s", ep.EID, strings.Join(result.Errors, "; "))
	}
	return nil
}

// DefaultSensors populates a terminus with n generic temperature
// sensors, IDs starting at 1.
func DefaultSensors(t *Terminus, n int) {
	for i := 1; i <= n; i++ {
		t.AddSensor(&Sensor{
			ID:         uint16(i),
			Name:       fmt.Sprintf("temp%d", i),
			Unit:       "Celsius",
			Resolution: 0.1,
			Reading:    250 + int32(i),
			DataSize:   wire.DataSizeSint16,
		})
	}
}
