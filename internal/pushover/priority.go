package pushover

import "fmt"

// Priority is a delivery priority level. The numeric values are the
// service's wire contract and must not be reordered.
type Priority int

const (
	// PriorityLowest generates no notification, only a badge update.
	PriorityLowest Priority = -2
	// PriorityLow shows a popup without sound or vibration.
	PriorityLow Priority = -1
	// PriorityNormal respects the device's quiet hours and sound settings.
	PriorityNormal Priority = 0
	// PriorityHigh bypasses the user's quiet hours.
	PriorityHigh Priority = 1
	// PriorityEmergency repeats until acknowledged, regardless of
	// do-not-disturb. Requires retry/expire parameters on the wire.
	PriorityEmergency Priority = 2
)

// Valid reports whether p is a member of the enumeration.
func (p Priority) Valid() bool {
	return p >= PriorityLowest && p <= PriorityEmergency
}

func (p Priority) String() string {
	switch p {
	case PriorityLowest:
		return "lowest"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityEmergency:
		return "emergency"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority maps a level name to its Priority. Used by the relay API,
// which accepts names rather than raw wire integers.
func ParsePriority(name string) (Priority, error) {
	switch name {
	case "lowest":
		return PriorityLowest, nil
	case "low":
		return PriorityLow, nil
	case "", "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "emergency":
		return PriorityEmergency, nil
	default:
		return 0, &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown level %q", name)}
	}
}
