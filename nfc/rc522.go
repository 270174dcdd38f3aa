//go:build pi
// +build pi

package nfc

// MFRC522 datasheet: https://www.nxp.com/docs/en/data-sheet/MFRC522.pdf
// ISO14443-3 anticollision/select is what gives us the UID, there is no APDU layer on this chip.

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ecc1/spi"
	"github.com/jdevelop/golang-rpi-extras/rf522/commands"
	"github.com/jdevelop/gpio"
	rpio "github.com/jdevelop/gpio/rpi"
	log "github.com/sirupsen/logrus"
)

const (
	spiBus      = 0
	spiDevice   = 0
	spiSpeed    = 100000
	resetPin    = 22
	antennaGain = 7

	// REQA, wakes up cards in IDLE state
	piccReqIdl = 0x26
)

var rc522Name = fmt.Sprintf("MFRC522 spidev%d.%d", spiBus, spiDevice)

type rc522 struct {
	lock  sync.Mutex
	spi   *spi.Device
	reset gpio.Pin
}

type rc522Card struct {
	uid []byte
}

func newRC522() (Context, error) {
	dev, err := spi.Open(fmt.Sprintf("/dev/spidev%d.%d", spiBus, spiDevice), spiSpeed, 0)
	if err != nil {
		return nil, err
	}
	if err := dev.SetLSBFirst(false); err != nil {
		dev.Close()
		return nil, err
	}
	if err := dev.SetBitsPerWord(8); err != nil {
		dev.Close()
		return nil, err
	}

	pin, err := rpio.OpenPin(resetPin, gpio.ModeOutput)
	if err != nil {
		dev.Close()
		return nil, err
	}
	pin.Set()

	r := &rc522{spi: dev, reset: pin}
	if err := r.init(); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

// ListReaders always reports the single chip on the SPI bus.
func (r *rc522) ListReaders() ([]string, error) {
	return []string{rc522Name}, nil
}

func (r *rc522) Connect(reader string) (Card, error) {
	if reader != rc522Name {
		return nil, fmt.Errorf("%s: %w", reader, NoReaderErr)
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.init(); err != nil {
		return nil, err
	}
	if err := r.request(); err != nil {
		return nil, err
	}
	uid, err := r.anticollision()
	if err != nil {
		return nil, err
	}
	return &rc522Card{uid: uid}, nil
}

func (r *rc522) Release() error {
	return r.spi.Close()
}

// Transmit only understands the GET UID pseudo APDU, answered the way a PC/SC reader would.
func (c *rc522Card) Transmit(cmd []byte) ([]byte, error) {
	if len(cmd) != len(GetUIDCommand) || cmd[0] != 0xFF || cmd[1] != 0xCA {
		return nil, UnsupportedCommandErr
	}
	resp := make([]byte, 0, len(c.uid)+2)
	resp = append(resp, c.uid...)
	return append(resp, 0x90, 0x00), nil
}

func (c *rc522Card) Disconnect() error {
	return nil
}

func (r *rc522) init() error {
	writes := []struct {
		reg int
		val byte
	}{
		{commands.CommandReg, commands.PCD_RESETPHASE},
		{0x2A, 0x8D}, // TModeReg
		{0x2B, 0x3E}, // TPrescalerReg
		{0x2D, 30},   // TReloadRegL
		{0x2C, 0},    // TReloadRegH
		{0x15, 0x40}, // TxAutoReg, force 100% ASK
		{0x11, 0x3D}, // ModeReg
		{0x26, byte(antennaGain) << 4},
	}
	for _, w := range writes {
		if err := r.write(w.reg, w.val); err != nil {
			return err
		}
	}

	tx, err := r.read(commands.TxControlReg)
	if err != nil {
		return err
	}
	if tx&0x03 == 0 {
		return r.setBits(commands.TxControlReg, 0x03)
	}
	return nil
}

func (r *rc522) transfer(data []byte) ([]byte, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	err := r.spi.Transfer(buf)
	return buf, err
}

func (r *rc522) write(reg int, val byte) error {
	_, err := r.transfer([]byte{(byte(reg) << 1) & 0x7E, val})
	return err
}

func (r *rc522) read(reg int) (byte, error) {
	buf, err := r.transfer([]byte{((byte(reg) << 1) & 0x7E) | 0x80, 0})
	if err != nil {
		return 0, err
	}
	return buf[1], nil
}

func (r *rc522) setBits(reg int, mask byte) error {
	cur, err := r.read(reg)
	if err != nil {
		return err
	}
	return r.write(reg, cur|mask)
}

func (r *rc522) clearBits(reg int, mask byte) error {
	cur, err := r.read(reg)
	if err != nil {
		return err
	}
	return r.write(reg, cur&^mask)
}

// transceive pushes data through the FIFO to the card and collects the answer.
func (r *rc522) transceive(data []byte) ([]byte, int, error) {
	const irqEn, irqWait = 0x77, 0x30

	steps := []func() error{
		func() error { return r.write(commands.CommIEnReg, irqEn|0x80) },
		func() error { return r.clearBits(commands.CommIrqReg, 0x80) },
		func() error { return r.setBits(commands.FIFOLevelReg, 0x80) },
		func() error { return r.write(commands.CommandReg, commands.PCD_IDLE) },
	}
	for _, s := range steps {
		if err := s(); err != nil {
			return nil, 0, err
		}
	}
	for _, b := range data {
		if err := r.write(commands.FIFODataReg, b); err != nil {
			return nil, 0, err
		}
	}
	if err := r.write(commands.CommandReg, commands.PCD_TRANSCEIVE); err != nil {
		return nil, 0, err
	}
	if err := r.setBits(commands.BitFramingReg, 0x80); err != nil {
		return nil, 0, err
	}

	var irq byte
	i := 2000
	for ; i > 0; i-- {
		n, err := r.read(commands.CommIrqReg)
		if err != nil {
			return nil, 0, err
		}
		irq = n
		if irq&(irqWait|0x01) != 0 {
			break
		}
	}
	if err := r.clearBits(commands.BitFramingReg, 0x80); err != nil {
		return nil, 0, err
	}
	if i == 0 {
		return nil, 0, errors.New("card did not answer within 2000 polls")
	}

	errReg, err := r.read(commands.ErrorReg)
	if err != nil {
		return nil, 0, err
	}
	if errReg&0x1B != 0 {
		return nil, 0, fmt.Errorf("reader error register %02X", errReg)
	}
	if irq&irqEn&0x01 != 0 {
		// timer ran out, nothing in the field
		return nil, 0, NoCardErr
	}

	level, err := r.read(commands.FIFOLevelReg)
	if err != nil {
		return nil, 0, err
	}
	lastBits, err := r.read(commands.ControlReg)
	if err != nil {
		return nil, 0, err
	}
	lastBits &= 0x07

	bits := int(level) * 8
	if lastBits != 0 {
		bits = (int(level)-1)*8 + int(lastBits)
	}

	if level == 0 {
		level = 1
	}
	if level > 16 {
		level = 16
	}
	out := make([]byte, 0, level)
	for n := byte(0); n < level; n++ {
		b, err := r.read(commands.FIFODataReg)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, bits, nil
}

func (r *rc522) request() error {
	if err := r.write(commands.BitFramingReg, 0x07); err != nil {
		return err
	}
	_, bits, err := r.transceive([]byte{piccReqIdl})
	if err != nil {
		return NoCardErr
	}
	if bits != 0x10 {
		return fmt.Errorf("unexpected ATQA length of %d bits", bits)
	}
	return nil
}

func (r *rc522) anticollision() ([]byte, error) {
	if err := r.write(commands.BitFramingReg, 0x00); err != nil {
		return nil, err
	}
	first, err := r.cascade(0x93)
	if err != nil {
		return nil, err
	}
	if first[0] != 0x88 {
		return first[:4], nil
	}

	// 0x88 is the cascade tag, so this is a 7 byte UID and the tail comes from level 2.
	log.Debugf("cascade level 2 required for partial uid %v", ToHexString(first[1:4]))
	sel := []byte{0x93, 0x70, first[0], first[1], first[2], first[3], first[4]}
	crc, err := r.crc(sel)
	if err != nil {
		return nil, err
	}
	ack, _, err := r.transceive(append(sel, crc...))
	if err != nil {
		return nil, err
	}
	if len(ack) == 0 || ack[0] != 0x04 {
		return nil, fmt.Errorf("unexpected select response %v", ack)
	}

	second, err := r.cascade(0x95)
	if err != nil {
		return nil, err
	}
	uid := make([]byte, 0, 7)
	uid = append(uid, first[1:4]...)
	return append(uid, second[:4]...), nil
}

// cascade runs one anticollision round and checks the BCC of the answer.
func (r *rc522) cascade(level byte) ([]byte, error) {
	data, _, err := r.transceive([]byte{level, 0x20})
	if err != nil {
		return nil, err
	}
	if len(data) != 5 {
		return nil, fmt.Errorf("anticollision answer has %d bytes, expected 5", len(data))
	}
	bcc := data[0] ^ data[1] ^ data[2] ^ data[3]
	if bcc != data[4] {
		return nil, fmt.Errorf("BCC mismatch, expected %02X actual %02X", bcc, data[4])
	}
	return data, nil
}

func (r *rc522) crc(data []byte) ([]byte, error) {
	if err := r.clearBits(commands.DivIrqReg, 0x04); err != nil {
		return nil, err
	}
	if err := r.setBits(commands.FIFOLevelReg, 0x80); err != nil {
		return nil, err
	}
	for _, b := range data {
		if err := r.write(commands.FIFODataReg, b); err != nil {
			return nil, err
		}
	}
	if err := r.write(commands.CommandReg, commands.PCD_CALCCRC); err != nil {
		return nil, err
	}
	for i := 0xFF; i > 0; i-- {
		n, err := r.read(commands.DivIrqReg)
		if err != nil {
			return nil, err
		}
		if n&0x04 != 0 {
			break
		}
	}
	lsb, err := r.read(commands.CRCResultRegL)
	if err != nil {
		return nil, err
	}
	msb, err := r.read(commands.CRCResultRegM)
	if err != nil {
		return nil, err
	}
	return []byte{lsb, msb}, nil
}
