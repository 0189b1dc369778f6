package simulation

import (
	"context"
	"errors"
	"fmt"
	"route-validation-service/internal/domain"
	"route-validation-service/internal/ports"
)

// ScriptedVehicle describes how the probe vehicle of one route behaves.
type ScriptedVehicle struct {
	// Speeds[k] is the speed sampled k+1 steps after injection.
	// The last value repeats; an empty slice means standing still.
	Speeds []float64
	// ArriveAfter is the number of steps after injection at which the
	// vehicle leaves the simulation. Zero means it never arrives.
	ArriveAfter int
	// Reject makes injection fail with this reason.
	Reject string
}

type scriptedState struct {
	script     ScriptedVehicle
	injectedAt int
}

// ScriptedSimulation is an in-memory SimulationPort driven by per-route scripts.
// Routes without a script are unknown and their injection is rejected.
type ScriptedSimulation struct {
	scripts  map[domain.RouteID]ScriptedVehicle
	vehicles map[domain.VehicleID]*scriptedState
	step     int

	// FailAdvanceAt makes the AdvanceStep call for that step number fail.
	FailAdvanceAt int

	Injected []domain.VehicleID
	Removed  []domain.VehicleID
	Closed   bool
}

func NewScriptedSimulation(scripts map[domain.RouteID]ScriptedVehicle) *ScriptedSimulation {
	return &ScriptedSimulation{
		scripts:  scripts,
		vehicles: make(map[domain.VehicleID]*scriptedState),
	}
}

var errScriptedClosed = errors.New("scripted simulation closed")

func (s *ScriptedSimulation) Inject(ctx context.Context, route domain.RouteID, vehicle domain.VehicleID, departTime float64) error {
	if s.Closed {
		return errScriptedClosed
	}

	script, ok := s.scripts[route]
	if !ok {
		return &domain.InjectError{RouteID: route, VehicleID: vehicle, Err: fmt.Errorf("route %q not known", route)}
	}
	if script.Reject != "" {
		return &domain.InjectError{RouteID: route, VehicleID: vehicle, Err: errors.New(script.Reject)}
	}
	if _, ok := s.vehicles[vehicle]; ok {
		return &domain.InjectError{RouteID: route, VehicleID: vehicle, Err: fmt.Errorf("vehicle %q already exists", vehicle)}
	}

	s.vehicles[vehicle] = &scriptedState{script: script, injectedAt: s.step}
	s.Injected = append(s.Injected, vehicle)
	return nil
}

func (s *ScriptedSimulation) AdvanceStep(ctx context.Context) error {
	if s.Closed {
		return errScriptedClosed
	}
	if s.FailAdvanceAt > 0 && s.step+1 == s.FailAdvanceAt {
		return fmt.Errorf("scripted failure at step %d", s.FailAdvanceAt)
	}

	s.step++
	for id, v := range s.vehicles {
		if v.script.ArriveAfter > 0 && s.step-v.injectedAt >= v.script.ArriveAfter {
			delete(s.vehicles, id)
		}
	}
	return nil
}

func (s *ScriptedSimulation) ActiveVehicleIDs(ctx context.Context) (map[domain.VehicleID]struct{}, error) {
	if s.Closed {
		return nil, errScriptedClosed
	}

	out := make(map[domain.VehicleID]struct{}, len(s.vehicles))
	for id := range s.vehicles {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *ScriptedSimulation) SpeedOf(ctx context.Context, vehicle domain.VehicleID) (float64, error) {
	v, ok := s.vehicles[vehicle]
	if !ok {
		return 0, fmt.Errorf("speed of %q: vehicle not in simulation", vehicle)
	}

	speeds := v.script.Speeds
	if len(speeds) == 0 {
		return 0, nil
	}

	i := s.step - v.injectedAt - 1
	if i < 0 {
		i = 0
	}
	if i >= len(speeds) {
		i = len(speeds) - 1
	}
	return speeds[i], nil
}

func (s *ScriptedSimulation) RemoveVehicle(ctx context.Context, vehicle domain.VehicleID) error {
	if _, ok := s.vehicles[vehicle]; !ok {
		return fmt.Errorf("remove %q: vehicle not in simulation", vehicle)
	}

	delete(s.vehicles, vehicle)
	s.Removed = append(s.Removed, vehicle)
	return nil
}

func (s *ScriptedSimulation) Close() error {
	s.Closed = true
	return nil
}

// Steps returns how many steps have been advanced.
func (s *ScriptedSimulation) Steps() int { return s.step }

// ScriptedOpener hands out a fixed session, or fails with Err.
type ScriptedOpener struct {
	Sim   ports.SimulationPort
	Err   error
	Opens int
}

func (o *ScriptedOpener) Open(ctx context.Context) (ports.SimulationPort, error) {
	o.Opens++
	if o.Err != nil {
		return nil, o.Err
	}
	return o.Sim, nil
}
