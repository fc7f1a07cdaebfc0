package native

import (
	"github.com/wippyai/field-injector/bridge"
	"github.com/wippyai/field-injector/errors"
)

// TextToNativeHandle allocates a native string holding s as UTF-16LE.
func (r *Runtime) TextToNativeHandle(s string) (uint32, error) {
	units, err := r.utf16.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return 0, errors.New(errors.PhaseBridge, errors.KindInvalidData).
			Value(s).
			Cause(err).
			Build()
	}
	length := uint32(len(units) / 2)

	ptr, err := r.alloc.Alloc(StringHeaderSize+uint32(len(units)), 4)
	if err != nil {
		return 0, err
	}
	if err := r.mem.WriteU32(ptr, r.str); err != nil {
		return 0, err
	}
	if err := r.mem.WriteU32(ptr+4, 0); err != nil {
		return 0, err
	}
	if err := r.mem.WriteU32(ptr+8, length); err != nil {
		return 0, err
	}
	if length > 0 {
		if err := r.mem.Write(ptr+StringHeaderSize, units); err != nil {
			return 0, err
		}
	}
	return ptr, nil
}

// NativeHandleToText decodes the native string at ptr. A null pointer
// decodes to "".
func (r *Runtime) NativeHandleToText(ptr uint32) (string, error) {
	if ptr == 0 {
		return "", nil
	}
	if err := r.expectKind(ptr, bridge.ClassString); err != nil {
		return "", err
	}
	length, err := r.mem.ReadU32(ptr + 8)
	if err != nil {
		return "", err
	}
	if length > r.cfg.MaxStringLength {
		return "", errors.OutOfBounds(errors.PhaseBridge, nil, int(length), int(r.cfg.MaxStringLength))
	}
	if length == 0 {
		return "", nil
	}
	units, err := r.mem.Read(ptr+StringHeaderSize, length*2)
	if err != nil {
		return "", err
	}
	text, err := r.utf16.NewDecoder().Bytes(units)
	if err != nil {
		return "", errors.New(errors.PhaseBridge, errors.KindInvalidData).
			Value(ptr).
			Cause(err).
			Build()
	}
	return string(text), nil
}
