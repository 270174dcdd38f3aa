//go:build !pi
// +build !pi

package nfc

import "errors"

func newRC522() (Context, error) {
	return nil, errors.New("rc522 support is only available in builds with the pi tag")
}
