package nfc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	PCSC  = "pcsc"
	RC522 = "rc522"
)

// GetUIDCommand is the PC/SC pseudo APDU (GET DATA) that asks the reader for the UID of the card in the field.
var GetUIDCommand = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}

var (
	NoCardErr             = errors.New("no card detected")
	NoReaderErr           = errors.New("no reader found")
	UnsupportedCommandErr = errors.New("command not supported by reader")
)

// Context enumerates the readers attached to the machine and opens connections to them.
type Context interface {
	ListReaders() ([]string, error)
	Connect(reader string) (Card, error)
	Release() error
}

// Card is a connection to whatever card is present on a reader. It is only valid until Disconnect is called.
type Card interface {
	Transmit(cmd []byte) ([]byte, error)
	Disconnect() error
}

// Open creates a reader context for the given driver.
func Open(driver string) (Context, error) {
	switch driver {
	case PCSC, "":
		return newPCSC()
	case RC522:
		return newRC522()
	case Mock:
		return NewMockContext([]byte{0x04, 0xA3, 0xF1, 0x2C}), nil
	default:
		return nil, fmt.Errorf("unknown reader driver %q", driver)
	}
}

// ReadUID asks the card for its identifier. The status words are stripped from the response and not inspected.
func ReadUID(c Card) ([]byte, error) {
	resp, err := c.Transmit(GetUIDCommand)
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, fmt.Errorf("short response from reader: %d bytes", len(resp))
	}
	return resp[:len(resp)-2], nil
}

// ReadCardID opens a fresh connection to the reader, reads the UID and disconnects again.
func ReadCardID(ctx Context, reader string) (string, error) {
	card, err := ctx.Connect(reader)
	if err != nil {
		return "", err
	}
	defer card.Disconnect()

	uid, err := ReadUID(card)
	if err != nil {
		return "", err
	}
	return ToHexString(uid), nil
}

// ToHexString renders the bytes as uppercase hex without any separators.
func ToHexString(data []byte) string {
	return strings.ToUpper(hex.EncodeToString(data))
}
