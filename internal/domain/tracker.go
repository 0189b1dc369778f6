package domain

import (
	"fmt"
	"slices"
)

// Tracker owns the tracking state of every live probe vehicle.
// It is mutated once per simulation step by a single driver and is not safe
// for concurrent use.
type Tracker struct {
	policy   StallPolicy
	vehicles map[VehicleID]*VehicleRecord
}

func NewTracker(policy StallPolicy) *Tracker {
	return &Tracker{
		policy:   policy,
		vehicles: make(map[VehicleID]*VehicleRecord),
	}
}

// Start tracking a freshly injected probe vehicle with a zero stall count.
func (t *Tracker) Register(route RouteID, vehicle VehicleID) error {
	if _, ok := t.vehicles[vehicle]; ok {
		return fmt.Errorf("register vehicle %q for route %q: %w", vehicle, route, ErrDuplicateVehicle)
	}

	t.vehicles[vehicle] = &VehicleRecord{VehicleID: vehicle, RouteID: route}
	return nil
}

// Observe applies one speed sample to a tracked vehicle and reports whether
// the vehicle has reached the stall threshold.
func (t *Tracker) Observe(vehicle VehicleID, speed float64) (bool, error) {
	rec, ok := t.vehicles[vehicle]
	if !ok {
		return false, fmt.Errorf("observe vehicle %q: %w", vehicle, ErrUnknownVehicle)
	}

	var stalled bool
	rec.StallCount, stalled = t.policy.Next(rec.StallCount, speed)
	return stalled, nil
}

// Remove detaches the record of a vehicle and returns it.
func (t *Tracker) Remove(vehicle VehicleID) (VehicleRecord, error) {
	rec, ok := t.vehicles[vehicle]
	if !ok {
		return VehicleRecord{}, fmt.Errorf("remove vehicle %q: %w", vehicle, ErrUnknownVehicle)
	}

	delete(t.vehicles, vehicle)
	return *rec, nil
}

// Record returns a copy of the tracking state of a vehicle.
func (t *Tracker) Record(vehicle VehicleID) (VehicleRecord, bool) {
	rec, ok := t.vehicles[vehicle]
	if !ok {
		return VehicleRecord{}, false
	}
	return *rec, true
}

func (t *Tracker) IsEmpty() bool { return len(t.vehicles) == 0 }

func (t *Tracker) Len() int { return len(t.vehicles) }

// LiveIDs returns a sorted snapshot of the tracked vehicle ids.
// Callers may remove vehicles while iterating over the returned slice.
func (t *Tracker) LiveIDs() []VehicleID {
	ids := make([]VehicleID, 0, len(t.vehicles))
	for id := range t.vehicles {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (t *Tracker) Policy() StallPolicy { return t.policy }
