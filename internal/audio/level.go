package audio

// DecayFactor is the per-tick release multiplier of a displayed level.
const DecayFactor = 0.85

// MaxLevel is the upper bound of a displayed level in percent.
const MaxLevel = 100.0

// breakpoint is one knee of the level curve.
type breakpoint struct {
	peak  float64
	level float64
}

// levelCurve maps raw peaks onto a perceptual percentage. Device APIs report
// roughly 0.25 to 0.45 for loud program material, which lands at 90 to 100.
var levelCurve = []breakpoint{
	{0, 0},
	{0.01, 3},
	{0.05, 21},
	{0.15, 60},
	{0.25, 90},
	{0.40, 99},
	{1.00, 100},
}

// Scale converts a raw peak in [0,1] to a level in [0,100] along the level curve.
func Scale(peak float64) float64 {
	if peak <= 0 || peak != peak {
		return 0
	}

	for i := 1; i < len(levelCurve); i++ {
		lo, hi := levelCurve[i-1], levelCurve[i]
		if peak <= hi.peak {
			slope := (hi.level - lo.level) / (hi.peak - lo.peak)
			return min(lo.level+(peak-lo.peak)*slope, MaxLevel)
		}
	}
	return MaxLevel
}

// LevelEngine tracks the displayed level per container. Attack is instant and
// release falls off by DecayFactor per step.
// It is not safe for concurrent use; the monitor serializes access.
type LevelEngine struct {
	values map[string]float64
}

// NewLevelEngine creates a level engine with every container at zero.
func NewLevelEngine() *LevelEngine {
	return &LevelEngine{values: make(map[string]float64)}
}

// Step applies a new raw peak to the container and returns the displayed level.
func (l *LevelEngine) Step(containerID string, peak float64) float64 {
	v := max(Scale(peak), l.values[containerID]*DecayFactor)
	l.values[containerID] = v
	return v
}

// Decay advances the container one tick without a new sample, so the level
// keeps falling at the release rate instead of snapping to zero.
func (l *LevelEngine) Decay(containerID string) float64 {
	v := l.values[containerID] * DecayFactor
	l.values[containerID] = v
	return v
}

// Level returns the last displayed level of the container.
func (l *LevelEngine) Level(containerID string) float64 {
	return l.values[containerID]
}

// Forget drops the state of a container.
func (l *LevelEngine) Forget(containerID string) {
	delete(l.values, containerID)
}

// Reset clears all level state.
func (l *LevelEngine) Reset() {
	clear(l.values)
}
