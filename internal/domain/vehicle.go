package domain

// Opaque identifier of a route definition in the routes file.
type RouteID string

// Identifier of a probe vehicle inside the simulation.
type VehicleID string

// ProbeVehicleID derives the probe vehicle id for a route so results
// can be correlated back to the route that produced them.
func ProbeVehicleID(route RouteID) VehicleID {
	return VehicleID("veh_" + string(route))
}

// Tracking state of one injected probe vehicle.
// A VehicleRecord exists from injection until the vehicle is classified.
type VehicleRecord struct {
	VehicleID  VehicleID
	RouteID    RouteID
	StallCount int
}
