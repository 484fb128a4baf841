package consistency

import "fmt"

// Mode selects how store mutations are turned into tree updates.
type Mode uint8

const (
	// ModeIncremental handles each store event as it arrives and runs a
	// pass at the end of imports and batches.
	ModeIncremental Mode = iota
	// ModeBulk defers everything to an explicit Flush.
	ModeBulk
)

func (m Mode) String() string {
	switch m {
	case ModeIncremental:
		return "incremental"
	case ModeBulk:
		return "bulk"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode parses "incremental" or "bulk". Empty means incremental.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "incremental":
		return ModeIncremental, nil
	case "bulk":
		return ModeBulk, nil
	default:
		return ModeIncremental, fmt.Errorf("unknown hierarchy mode %q (want incremental or bulk)", s)
	}
}

// Settings controls the controller's automatic behavior.
type Settings struct {
	// AutoCreate adds items for new data objects a plugin claims.
	AutoCreate bool
	// AutoDeleteChildren removes the children of an item whose data
	// object is removed instead of moving them up.
	AutoDeleteChildren bool
	Mode               Mode
}

// DefaultSettings returns AutoCreate on, incremental mode.
func DefaultSettings() Settings {
	return Settings{AutoCreate: true}
}
