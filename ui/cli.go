//go:build !pi
// +build !pi

package ui

import (
	"github.com/sirupsen/logrus"
)

// GetStatusLight returns a light that only logs, for machines without the LED wired up.
func GetStatusLight() StatusLight {
	return &cliLight{}
}

type cliLight struct {
	current string
}

func (l *cliLight) set(color string) {
	// only log changes, the scanner sets the color on every poll
	if l.current == color {
		return
	}
	l.current = color
	logrus.Debugf("LED: %v", color)
}

func (l *cliLight) Blue() {
	l.set("Blue")
}

func (l *cliLight) Green() {
	l.set("Green")
}

func (l *cliLight) Red() {
	l.set("Red")
}

func (l *cliLight) Off() {
	l.set("Off")
}
