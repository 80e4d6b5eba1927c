//go:build windows

package audio

import (
	"errors"
	"runtime"
	"sync"

	ole "github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"

	"github.com/oszuidwest/zwfm-audiometer/internal/util"
)

// sFalse is returned by CoInitializeEx when the thread already joined an apartment.
const sFalse = 0x00000001

// comEnumerator runs every Core Audio call on one OS thread that owns the COM apartment.
type comEnumerator struct {
	calls chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
	mmde  *wca.IMMDeviceEnumerator
}

// OpenEnumerator creates the Core Audio device enumerator.
func OpenEnumerator() (Enumerator, error) {
	e := &comEnumerator{
		calls: make(chan func()),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	ready := make(chan error, 1)
	go e.run(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return e, nil
}

// run owns the COM apartment until Close.
func (e *comEnumerator) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(e.done)

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || oleErr.Code() != sFalse {
			ready <- util.WrapError("initialize COM", err)
			return
		}
	}
	defer ole.CoUninitialize()

	if err := wca.CoCreateInstance(wca.CLSID_MMDeviceEnumerator, 0, wca.CLSCTX_ALL, wca.IID_IMMDeviceEnumerator, &e.mmde); err != nil {
		ready <- util.WrapError("create device enumerator", err)
		return
	}
	defer e.mmde.Release()

	ready <- nil

	for {
		select {
		case fn := <-e.calls:
			fn()
		case <-e.quit:
			return
		}
	}
}

// do executes fn on the COM thread and waits for its result.
func (e *comEnumerator) do(fn func() error) error {
	result := make(chan error, 1)
	call := func() {
		defer func() {
			if r := recover(); r != nil {
				result <- errors.New("panic in COM call")
			}
		}()
		result <- fn()
	}

	select {
	case e.calls <- call:
	case <-e.quit:
		return ErrEnumeratorClosed
	}
	return <-result
}

func (e *comEnumerator) Snapshot() (Collection, error) {
	c := &comCollection{owner: e}
	err := e.do(func() error {
		if err := e.mmde.EnumAudioEndpoints(wca.ERender, wca.DEVICE_STATE_ACTIVE, &c.dc); err != nil {
			return err
		}
		var count uint32
		if err := c.dc.GetCount(&count); err != nil {
			c.dc.Release()
			return err
		}
		c.count = int(count)
		return nil
	})
	if err != nil {
		return nil, util.WrapError("enumerate audio endpoints", err)
	}
	return c, nil
}

func (e *comEnumerator) Default() (Endpoint, error) {
	var mmd *wca.IMMDevice
	err := e.do(func() error {
		return e.mmde.GetDefaultAudioEndpoint(wca.ERender, wca.EMultimedia, &mmd)
	})
	if err != nil {
		return nil, util.WrapError("get default audio endpoint", err)
	}
	return &comEndpoint{owner: e, mmd: mmd}, nil
}

func (e *comEnumerator) Close() error {
	e.once.Do(func() {
		close(e.quit)
	})
	<-e.done
	return nil
}

// comCollection holds one IMMDeviceCollection for the length of a discovery pass.
type comCollection struct {
	owner *comEnumerator
	dc    *wca.IMMDeviceCollection
	count int
	once  sync.Once
}

func (c *comCollection) Count() int {
	return c.count
}

func (c *comCollection) Item(i int) (Endpoint, error) {
	var mmd *wca.IMMDevice
	err := c.owner.do(func() error {
		return c.dc.Item(uint32(i), &mmd) //nolint:gosec // index is below Count
	})
	if err != nil {
		return nil, util.WrapError("open audio endpoint", err)
	}
	return &comEndpoint{owner: c.owner, mmd: mmd}, nil
}

func (c *comCollection) Release() {
	c.once.Do(func() {
		_ = c.owner.do(func() error {
			c.dc.Release()
			return nil
		})
	})
}

// comEndpoint wraps an IMMDevice owned by the caller.
type comEndpoint struct {
	owner *comEnumerator
	mmd   *wca.IMMDevice
	once  sync.Once
}

func (d *comEndpoint) ID() (string, error) {
	var id string
	err := d.owner.do(func() error {
		return d.mmd.GetId(&id)
	})
	return id, err
}

func (d *comEndpoint) FriendlyName() (string, error) {
	var name string
	err := d.owner.do(func() error {
		var ps *wca.IPropertyStore
		if err := d.mmd.OpenPropertyStore(wca.STGM_READ, &ps); err != nil {
			return util.WrapError("open property store", err)
		}
		defer ps.Release()

		var pv wca.PROPVARIANT
		if err := ps.GetValue(&wca.PKEY_Device_FriendlyName, &pv); err != nil {
			return util.WrapError("read friendly name", err)
		}
		name = pv.String()
		return propVariantClear(&pv)
	})
	return name, err
}

func (d *comEndpoint) OpenMeter() (Meter, error) {
	var ami *IAudioMeterInformation
	err := d.owner.do(func() error {
		return d.mmd.Activate(IID_IAudioMeterInformation, wca.CLSCTX_ALL, nil, &ami)
	})
	if err != nil {
		return nil, util.WrapError("activate audio meter", err)
	}
	return &comMeter{owner: d.owner, ami: ami}, nil
}

func (d *comEndpoint) Release() {
	d.once.Do(func() {
		_ = d.owner.do(func() error {
			d.mmd.Release()
			return nil
		})
	})
}

// comMeter wraps an IAudioMeterInformation owned by the caller.
type comMeter struct {
	owner *comEnumerator
	ami   *IAudioMeterInformation
	once  sync.Once
}

func (m *comMeter) PeakValue() (float32, error) {
	var peak float32
	err := m.owner.do(func() error {
		var err error
		peak, err = m.ami.GetPeakValue()
		return err
	})
	return peak, err
}

func (m *comMeter) Release() {
	m.once.Do(func() {
		_ = m.owner.do(func() error {
			m.ami.Release()
			return nil
		})
	})
}
