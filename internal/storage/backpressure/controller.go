// Package backpressure provides admission control for the ingest path.
//
// The controller tracks in-flight ingestions against a configured maximum
// and derives a level from the usage ratio. At LevelEmergency new ingests
// are rejected with ErrOverloaded; the producer retries, which is safe
// because ingestion is idempotent per chunk key.
package backpressure

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/storage/config"
)

// Level represents the current backpressure level.
type Level int

const (
	// LevelNormal - system operating normally.
	LevelNormal Level = iota

	// LevelWarning - elevated load.
	LevelWarning

	// LevelCritical - high load, close to rejecting.
	LevelCritical

	// LevelEmergency - overload, new ingests are rejected.
	LevelEmergency
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Controller admits ingests based on in-flight usage.
type Controller struct {
	mu sync.Mutex

	cfg      config.BackpressureConfig
	inflight atomic.Int64

	// Current state
	level      atomic.Int32
	lastChange time.Time
	lastLevel  Level

	// Statistics
	stats Stats

	// Level change callback
	onLevelChange func(old, new Level)

	now func() time.Time
}

// Stats holds backpressure statistics.
type Stats struct {
	LevelChanges   int64
	WarningCount   int64
	CriticalCount  int64
	EmergencyCount int64
	Admitted       int64
	Rejected       int64
	PeakInflight   int64
}

// New creates a new backpressure controller.
func New(cfg *config.Config) *Controller {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Controller{
		cfg: cfg.Backpressure,
		now: time.Now,
	}
}

// SetOnLevelChange sets the callback for level changes. It is called with
// the controller lock held and must not call back into the controller.
func (c *Controller) SetOnLevelChange(fn func(old, new Level)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLevelChange = fn
}

// Acquire admits one ingest. The returned release must be called exactly
// once when the ingest finishes. At LevelEmergency it returns ErrOverloaded
// and a nil release.
func (c *Controller) Acquire() (release func(), err error) {
	if !c.IsEnabled() {
		return func() {}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastLevel == LevelEmergency {
		// Re-evaluate: the level may only be stale because nothing was
		// released since the cooldown ended.
		c.update(c.usage(c.inflight.Load()))
		if c.lastLevel == LevelEmergency {
			c.stats.Rejected++
			return nil, errors.Wrapf(errors.ErrOverloaded,
				"%d of %d ingests in flight", c.inflight.Load(), c.cfg.MaxInflight)
		}
	}

	n := c.inflight.Add(1)
	c.stats.Admitted++
	if n > c.stats.PeakInflight {
		c.stats.PeakInflight = n
	}
	c.update(c.usage(n))

	var once sync.Once
	return func() { once.Do(c.release) }, nil
}

func (c *Controller) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.inflight.Add(-1)
	c.update(c.usage(n))
}

func (c *Controller) usage(n int64) float64 {
	if c.cfg.MaxInflight <= 0 {
		return 0
	}
	return float64(n) / float64(c.cfg.MaxInflight)
}

// update moves to the level for usage. Downward moves honor the cooldown.
func (c *Controller) update(usage float64) {
	newLevel := c.determineLevel(usage)
	if newLevel == c.lastLevel {
		return
	}

	now := c.now()
	if newLevel < c.lastLevel && now.Sub(c.lastChange) < c.cfg.Recovery.Cooldown {
		return
	}
	c.lastChange = now
	c.setLevel(newLevel)
}

// determineLevel determines the backpressure level based on usage.
func (c *Controller) determineLevel(usage float64) Level {
	thresholds := c.cfg.Thresholds
	hysteresis := c.cfg.Recovery.Hysteresis
	currentLevel := c.lastLevel

	// Going up (increasing pressure)
	if usage >= thresholds.Emergency {
		return LevelEmergency
	}
	if usage >= thresholds.Critical && currentLevel < LevelCritical {
		return LevelCritical
	}
	if usage >= thresholds.Warning && currentLevel < LevelWarning {
		return LevelWarning
	}

	// Going down (decreasing pressure) - apply hysteresis
	switch currentLevel {
	case LevelEmergency:
		if usage < thresholds.Emergency-hysteresis {
			return c.levelBelow(usage, LevelCritical)
		}
		return LevelEmergency
	case LevelCritical:
		if usage < thresholds.Critical-hysteresis {
			return c.levelBelow(usage, LevelWarning)
		}
		return LevelCritical
	case LevelWarning:
		if usage < thresholds.Warning-hysteresis {
			return LevelNormal
		}
		return LevelWarning
	default:
		return LevelNormal
	}
}

// levelBelow steps down more than one level when usage dropped far.
func (c *Controller) levelBelow(usage float64, ceiling Level) Level {
	t := c.cfg.Thresholds
	h := c.cfg.Recovery.Hysteresis
	switch {
	case ceiling >= LevelCritical && usage >= t.Critical-h:
		return LevelCritical
	case ceiling >= LevelWarning && usage >= t.Warning-h:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// setLevel updates the current level and fires callback.
func (c *Controller) setLevel(newLevel Level) {
	oldLevel := c.lastLevel
	c.lastLevel = newLevel
	c.level.Store(int32(newLevel))
	c.stats.LevelChanges++

	switch newLevel {
	case LevelWarning:
		c.stats.WarningCount++
	case LevelCritical:
		c.stats.CriticalCount++
	case LevelEmergency:
		c.stats.EmergencyCount++
	}

	if c.onLevelChange != nil {
		c.onLevelChange(oldLevel, newLevel)
	}
}

// CurrentLevel returns the current backpressure level.
func (c *Controller) CurrentLevel() Level {
	return Level(c.level.Load())
}

// Inflight returns the number of admitted, unreleased ingests.
func (c *Controller) Inflight() int64 {
	return c.inflight.Load()
}

// Stats returns current statistics.
func (c *Controller) Stats() ControllerStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.inflight.Load()
	return ControllerStats{
		CurrentLevel:   c.CurrentLevel().String(),
		Inflight:       n,
		MaxInflight:    c.cfg.MaxInflight,
		Usage:          c.usage(n),
		LevelChanges:   c.stats.LevelChanges,
		WarningCount:   c.stats.WarningCount,
		CriticalCount:  c.stats.CriticalCount,
		EmergencyCount: c.stats.EmergencyCount,
		Admitted:       c.stats.Admitted,
		Rejected:       c.stats.Rejected,
		PeakInflight:   c.stats.PeakInflight,
	}
}

// ControllerStats holds controller statistics.
type ControllerStats struct {
	CurrentLevel   string  `json:"level"`
	Inflight       int64   `json:"inflight"`
	MaxInflight    int     `json:"max_inflight"`
	Usage          float64 `json:"usage"`
	LevelChanges   int64   `json:"level_changes"`
	WarningCount   int64   `json:"warning_count"`
	CriticalCount  int64   `json:"critical_count"`
	EmergencyCount int64   `json:"emergency_count"`
	Admitted       int64   `json:"admitted"`
	Rejected       int64   `json:"rejected"`
	PeakInflight   int64   `json:"peak_inflight"`
}

// IsEnabled returns whether admission control is active.
func (c *Controller) IsEnabled() bool {
	return c.cfg.Enabled && c.cfg.MaxInflight > 0
}
