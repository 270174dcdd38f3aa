//go:build !pi
// +build !pi

package ui

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestCliLightLogsChanges(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	level := logrus.GetLevel()
	logrus.SetLevel(logrus.DebugLevel)
	defer logrus.SetLevel(level)

	l := GetStatusLight()
	l.Blue()
	l.Blue()
	l.Green()
	l.Green()
	l.Red()
	l.Off()

	var msgs []string
	for _, e := range hook.AllEntries() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"LED: Blue", "LED: Green", "LED: Red", "LED: Off"}, msgs)
}
