//go:build pi
// +build pi

package ui

import (
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

const (
	redPin   = "GPIO6"
	greenPin = "GPIO5"
	bluePin  = "GPIO13"
)

func init() {
	if _, err := host.Init(); err != nil {
		logrus.Fatalln("Unable to initialize periph:", err)
	}
}

// colorLed is a common anode RGB LED, so a pin is lit when driven low.
type colorLed struct {
	r gpio.PinIO
	g gpio.PinIO
	b gpio.PinIO
}

func (c *colorLed) Green() {
	c.Off()
	c.g.Out(gpio.Low)
}

func (c *colorLed) Blue() {
	c.Off()
	c.b.Out(gpio.Low)
}

func (c *colorLed) Red() {
	c.Off()
	c.r.Out(gpio.Low)
}

func (c *colorLed) Off() {
	c.r.Out(gpio.High)
	c.g.Out(gpio.High)
	c.b.Out(gpio.High)
}

// GetStatusLight fetches and resets the LED pins.
func GetStatusLight() StatusLight {
	logrus.Infoln("Initializing LED")

	c := colorLed{
		r: gpioreg.ByName(redPin),
		g: gpioreg.ByName(greenPin),
		b: gpioreg.ByName(bluePin),
	}
	if c.r == nil || c.g == nil || c.b == nil {
		logrus.Warnln("LED pins not available, falling back to log output")
		return &logLight{}
	}
	c.Off()
	return &c
}

type logLight struct{}

func (logLight) Blue()  { logrus.Debugln("LED: Blue") }
func (logLight) Green() { logrus.Debugln("LED: Green") }
func (logLight) Red()   { logrus.Debugln("LED: Red") }
func (logLight) Off()   { logrus.Debugln("LED: Off") }
