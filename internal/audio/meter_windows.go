//go:build windows

package audio

import (
	"syscall"
	"unsafe"

	ole "github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"
)

// IAudioMeterInformation represents a peak meter on an audio stream.
// https://learn.microsoft.com/en-us/windows/win32/api/endpointvolume/nn-endpointvolume-iaudiometerinformation
type IAudioMeterInformation struct {
	ole.IUnknown
}

// IAudioMeterInformationVtbl is the vtable layout of IAudioMeterInformation.
type IAudioMeterInformationVtbl struct {
	ole.IUnknownVtbl
	GetPeakValue            uintptr
	GetMeteringChannelCount uintptr
	GetChannelsPeakValues   uintptr
	QueryHardwareSupport    uintptr
}

// VTable returns the interface vtable.
func (v *IAudioMeterInformation) VTable() *IAudioMeterInformationVtbl {
	return (*IAudioMeterInformationVtbl)(unsafe.Pointer(v.RawVTable))
}

// GetPeakValue gets the peak sample value for the channels in the audio stream.
// Returns a value in the normalized range from 0.0 to 1.0.
func (v *IAudioMeterInformation) GetPeakValue() (float32, error) {
	var peak float32

	hr, _, _ := syscall.SyscallN(
		v.VTable().GetPeakValue,
		uintptr(unsafe.Pointer(v)),
		uintptr(unsafe.Pointer(&peak)))

	if hr != 0 {
		return 0, ole.NewError(hr)
	}

	return peak, nil
}

// IID_IAudioMeterInformation is the GUID for the IAudioMeterInformation interface.
var IID_IAudioMeterInformation = ole.NewGUID("{C02216F6-8C67-4B5B-9D00-D008E73E0064}") //nolint:revive // COM naming

var procPropVariantClear = syscall.NewLazyDLL("ole32.dll").NewProc("PropVariantClear")

// propVariantClear frees the memory a PROPVARIANT owns, such as the string of a friendly name.
func propVariantClear(pv *wca.PROPVARIANT) error {
	hr, _, _ := procPropVariantClear.Call(uintptr(unsafe.Pointer(pv)))
	if hr != 0 {
		return ole.NewError(hr)
	}
	return nil
}
