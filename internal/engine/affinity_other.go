//go:build !linux

package engine

import "github.com/yanun0323/errors"

func pinToCPU(int) error {
	return errors.New("cpu pinning unsupported on this platform")
}
