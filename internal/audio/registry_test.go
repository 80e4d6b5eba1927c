package audio

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// discovered returns a directory populated with the given endpoints.
func discovered(t *testing.T, ctrl *gomock.Controller, eps ...*MockEndpoint) *Directory {
	t.Helper()

	items := make([]Endpoint, 0, len(eps))
	for _, ep := range eps {
		items = append(items, ep)
	}
	enum := NewMockEnumerator(ctrl)
	enum.EXPECT().Snapshot().Return(snapshot(ctrl, items...), nil)

	dir := NewDirectory(enum, false)
	dir.Discover()
	return dir
}

func TestRegistryEnsureInitializedIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)

	meter := NewMockMeter(ctrl)
	speakers := newEndpoint(ctrl, speakersID, "Speakers")
	speakers.EXPECT().OpenMeter().Return(meter, nil).Times(1)

	dir := discovered(t, ctrl, speakers)
	reg := NewRegistry()

	reg.EnsureInitialized(dir)
	reg.EnsureInitialized(dir)

	assert.True(t, reg.Initialized())
	assert.True(t, reg.Has(ContainerID(speakersID)))
}

func TestRegistryIsolatesAcquisitionFailures(t *testing.T) {
	ctrl := gomock.NewController(t)

	broken := newEndpoint(ctrl, speakersID, "Speakers")
	broken.EXPECT().OpenMeter().Return(nil, errors.New("AUDCLNT_E_DEVICE_INVALIDATED"))

	meter := NewMockMeter(ctrl)
	meter.EXPECT().PeakValue().Return(float32(0.25), nil)
	working := newEndpoint(ctrl, headphonesID, "Headphones")
	working.EXPECT().OpenMeter().Return(meter, nil)

	dir := discovered(t, ctrl, broken, working)
	reg := NewRegistry()
	reg.EnsureInitialized(dir)

	_, ok := reg.ReadPeak(ContainerID(speakersID))
	assert.False(t, ok)

	peak, ok := reg.ReadPeak(ContainerID(headphonesID))
	require.True(t, ok)
	assert.InDelta(t, 0.25, peak, 1e-6)
}

func TestRegistryReadPeak(t *testing.T) {
	ctrl := gomock.NewController(t)

	meter := NewMockMeter(ctrl)
	gomock.InOrder(
		meter.EXPECT().PeakValue().Return(float32(1.4), nil),
		meter.EXPECT().PeakValue().Return(float32(-0.1), nil),
		meter.EXPECT().PeakValue().Return(float32(math.NaN()), nil),
		meter.EXPECT().PeakValue().Return(float32(0), errors.New("read failed")),
		meter.EXPECT().PeakValue().Return(float32(0.5), nil),
	)

	ep := NewMockEndpoint(ctrl)
	ep.EXPECT().OpenMeter().Return(meter, nil)

	reg := NewRegistry()
	require.True(t, reg.Acquire("audio-x", ep))

	peak, ok := reg.ReadPeak("audio-x")
	assert.True(t, ok)
	assert.Equal(t, 1.0, peak)

	peak, ok = reg.ReadPeak("audio-x")
	assert.True(t, ok)
	assert.Zero(t, peak)

	peak, ok = reg.ReadPeak("audio-x")
	assert.True(t, ok)
	assert.Zero(t, peak)

	_, ok = reg.ReadPeak("audio-x")
	assert.False(t, ok)

	peak, ok = reg.ReadPeak("audio-x")
	assert.True(t, ok)
	assert.InDelta(t, 0.5, peak, 1e-6)

	_, ok = reg.ReadPeak("audio-missing")
	assert.False(t, ok)
}

func TestRegistryRebind(t *testing.T) {
	ctrl := gomock.NewController(t)

	oldMeter := NewMockMeter(ctrl)
	oldMeter.EXPECT().Release().Times(1)
	newMeter := NewMockMeter(ctrl)

	oldEP := NewMockEndpoint(ctrl)
	oldEP.EXPECT().OpenMeter().Return(oldMeter, nil)
	newEP := NewMockEndpoint(ctrl)
	newEP.EXPECT().OpenMeter().Return(newMeter, nil)

	reg := NewRegistry()
	require.True(t, reg.Acquire("default-audio", oldEP))
	require.True(t, reg.Acquire("default-audio", oldEP), "second acquire keeps the held meter")
	require.True(t, reg.Rebind("default-audio", newEP))
	assert.True(t, reg.Has("default-audio"))
}

func TestRegistryReleaseOnce(t *testing.T) {
	ctrl := gomock.NewController(t)

	meter := NewMockMeter(ctrl)
	meter.EXPECT().Release().Times(1)
	ep := NewMockEndpoint(ctrl)
	ep.EXPECT().OpenMeter().Return(meter, nil)

	reg := NewRegistry()
	reg.Acquire("audio-x", ep)

	reg.Release()
	reg.Release()

	assert.False(t, reg.Initialized())
	assert.False(t, reg.Has("audio-x"))
}
