package monitor

// Classification is the outcome of one online/offline determination together
// with the reading values that should be logged alongside it.
type Classification struct {
	Online      bool
	Temperature *float64
	Humidity    *float64
	Pressure    *float64
	WindSpeed   *float64
}

// Classifier decides whether a station is online given its current reading
// and its most recent log history (newest first). Implementations must treat
// a nil reading as a failed fetch.
//
// Two strategies exist because the two supported upstream providers expose
// different signal shapes: WeatherLink returns raw sensor values with no
// station status, so staleness has to be inferred; SkyMesh publishes an
// authoritative status flag per station.
type Classifier interface {
	Classify(current *Reading, history []*StatusLogEntry) Classification
}

// StuckReadingClassifier infers offline stations from unchanged sensor
// values. A feed whose temperature, humidity, wind speed and pressure are all
// identical across the current reading and the two most recent log rows has
// been flat for roughly two polling intervals and is presumed dead even
// though the transport succeeded.
type StuckReadingClassifier struct{}

// Classify implements Classifier.
func (StuckReadingClassifier) Classify(current *Reading, history []*StatusLogEntry) Classification {
	if current == nil || !current.HasOutdoor {
		// No outdoor sensor feed means no station.
		return Classification{Online: false}
	}

	c := Classification{
		Temperature: current.Temperature,
		Humidity:    current.Humidity,
		Pressure:    current.Pressure,
		WindSpeed:   current.WindSpeed,
	}

	if len(history) < 2 {
		// Not enough history to detect staleness; assume online for now.
		c.Online = true
		return c
	}

	for _, prior := range history[:2] {
		if !floatEqual(prior.Temperature, current.Temperature) ||
			!floatEqual(prior.Humidity, current.Humidity) ||
			!floatEqual(prior.WindSpeed, current.WindSpeed) ||
			!floatEqual(prior.Pressure, current.Pressure) {
			c.Online = true
			return c
		}
	}

	// All four values identical across three consecutive checks.
	c.Online = false
	return c
}

// ProviderStatusClassifier trusts the upstream status flag and bypasses the
// stuck-reading heuristic entirely.
type ProviderStatusClassifier struct {
	// ActiveValue is the vocabulary word the provider uses for a healthy
	// station. Defaults to "Active" when empty.
	ActiveValue string
}

// Classify implements Classifier.
func (p ProviderStatusClassifier) Classify(current *Reading, _ []*StatusLogEntry) Classification {
	if current == nil {
		return Classification{Online: false}
	}

	active := p.ActiveValue
	if active == "" {
		active = "Active"
	}

	return Classification{
		Online:      current.ProviderStatus == active,
		Temperature: current.Temperature,
		Humidity:    current.Humidity,
		Pressure:    current.Pressure,
		WindSpeed:   current.WindSpeed,
	}
}

// ClassifierStrategy selects a classification strategy by name.
type ClassifierStrategy string

const (
	// StrategyStuckReading selects StuckReadingClassifier.
	StrategyStuckReading ClassifierStrategy = "stuck-reading"

	// StrategyProviderStatus selects ProviderStatusClassifier.
	StrategyProviderStatus ClassifierStrategy = "provider-status"
)

// NewClassifier builds the classifier for a strategy name. Unknown names fall
// back to the stuck-reading heuristic, which works for any provider.
func NewClassifier(strategy ClassifierStrategy, activeValue string) Classifier {
	if strategy == StrategyProviderStatus {
		return ProviderStatusClassifier{ActiveValue: activeValue}
	}
	return StuckReadingClassifier{}
}
