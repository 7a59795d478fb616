package engine

import (
	"errors"
	"math"
	"time"
)

var ErrInvalidTarget = errors.New("invalid target")

const (
	DefaultRadius = 50.0
	DefaultTTL    = 2500 * time.Millisecond
)

// Target is one spawned circle. SpawnTime is the local capture time; it keeps
// its monotonic reading so expiry is immune to wall clock jumps.
type Target struct {
	SpawnID   string
	CX        float64
	CY        float64
	R         float64
	TTL       time.Duration
	SpawnTime time.Time
}

func NewTarget(spawnID string, cx, cy, r float64, ttl time.Duration, spawnTime time.Time) (Target, error) {
	if r <= 0 || math.IsNaN(r) || ttl <= 0 {
		return Target{}, ErrInvalidTarget
	}
	return Target{
		SpawnID:   spawnID,
		CX:        cx,
		CY:        cy,
		R:         r,
		TTL:       ttl,
		SpawnTime: spawnTime,
	}, nil
}

// ContainsPoint reports whether (x, y) lies on or inside the circle.
func (t Target) ContainsPoint(x, y float64) bool {
	return math.Hypot(x-t.CX, y-t.CY) <= t.R
}

func (t Target) IsExpired(now time.Time) bool {
	return now.Sub(t.SpawnTime) >= t.TTL
}

// LifeProgress is the elapsed fraction of the TTL, clamped to [0, 1].
func (t Target) LifeProgress(now time.Time) float64 {
	if t.TTL <= 0 {
		return 1
	}
	p := float64(now.Sub(t.SpawnTime)) / float64(t.TTL)
	return math.Min(math.Max(p, 0), 1)
}
