//go:build nocgo

package audio

import "errors"

func newOtoDevice(DeviceOptions) (Device, error) {
	return nil, errors.New("hardware audio is not available in nocgo builds")
}
