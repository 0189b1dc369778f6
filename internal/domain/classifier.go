package domain

import "fmt"

// Classifier collects exactly one outcome per injected route.
//
// Injection failures are kept apart: a route whose probe never entered the
// simulation is not part of the classified set.
type Classifier struct {
	outcomes          []RouteOutcome
	byRoute           map[RouteID]int
	injectionFailures map[RouteID]string
}

func NewClassifier() *Classifier {
	return &Classifier{
		byRoute:           make(map[RouteID]int),
		injectionFailures: make(map[RouteID]string),
	}
}

func (c *Classifier) RecordSuccess(rec VehicleRecord, step int) error {
	return c.record(RouteOutcome{
		RouteID:   rec.RouteID,
		VehicleID: rec.VehicleID,
		Kind:      OutcomeSuccess,
		Step:      step,
	})
}

func (c *Classifier) RecordStalled(rec VehicleRecord, threshold int, step int) error {
	return c.record(RouteOutcome{
		RouteID:   rec.RouteID,
		VehicleID: rec.VehicleID,
		Kind:      OutcomeStalled,
		Reason:    StalledReason(rec.VehicleID, threshold),
		Step:      step,
	})
}

func (c *Classifier) RecordTimeout(rec VehicleRecord, step int) error {
	return c.record(RouteOutcome{
		RouteID:   rec.RouteID,
		VehicleID: rec.VehicleID,
		Kind:      OutcomeTimeout,
		Reason:    TimeoutReason,
		Step:      step,
	})
}

// RecordInjectionFailure notes a route that was skipped because its probe
// vehicle could not be created.
func (c *Classifier) RecordInjectionFailure(route RouteID, reason string) {
	c.injectionFailures[route] = reason
}

func (c *Classifier) record(o RouteOutcome) error {
	if _, ok := c.byRoute[o.RouteID]; ok {
		return fmt.Errorf("classify route %q as %s: %w", o.RouteID, o.Kind, ErrAlreadyClassified)
	}

	c.byRoute[o.RouteID] = len(c.outcomes)
	c.outcomes = append(c.outcomes, o)
	return nil
}

// Outcome returns the outcome recorded for a route, if any.
func (c *Classifier) Outcome(route RouteID) (RouteOutcome, bool) {
	i, ok := c.byRoute[route]
	if !ok {
		return RouteOutcome{}, false
	}
	return c.outcomes[i], true
}

func (c *Classifier) Len() int { return len(c.outcomes) }

// Fill copies the collected outcomes into a report.
func (c *Classifier) Fill(r *ValidationReport) {
	r.Outcomes = make([]RouteOutcome, len(c.outcomes))
	copy(r.Outcomes, c.outcomes)

	r.ErrorRoutes = make(map[RouteID]string)
	r.SuccessfulRoutes = make([]RouteID, 0, len(c.outcomes))
	for _, o := range c.outcomes {
		if o.Kind == OutcomeSuccess {
			r.SuccessfulRoutes = append(r.SuccessfulRoutes, o.RouteID)
			continue
		}
		r.ErrorRoutes[o.RouteID] = o.Reason
	}

	r.InjectionFailures = make(map[RouteID]string, len(c.injectionFailures))
	for route, reason := range c.injectionFailures {
		r.InjectionFailures[route] = reason
	}
}
