package nfc

import (
	"errors"
	"fmt"

	"github.com/ebfe/scard"
	log "github.com/sirupsen/logrus"
)

type pcscContext struct {
	ctx *scard.Context
}

type pcscCard struct {
	card *scard.Card
}

func newPCSC() (Context, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("could not establish PC/SC context: %w", err)
	}
	return &pcscContext{ctx: ctx}, nil
}

func (p *pcscContext) ListReaders() ([]string, error) {
	readers, err := p.ctx.ListReaders()
	if errors.Is(err, scard.ErrNoReadersAvailable) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	log.Debugf("PC/SC readers: %v", readers)
	return readers, nil
}

func (p *pcscContext) Connect(reader string) (Card, error) {
	card, err := p.ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		if errors.Is(err, scard.ErrNoSmartcard) || errors.Is(err, scard.ErrRemovedCard) {
			return nil, fmt.Errorf("%s: %w", reader, NoCardErr)
		}
		return nil, fmt.Errorf("could not connect to %s: %w", reader, err)
	}
	return &pcscCard{card: card}, nil
}

func (p *pcscContext) Release() error {
	return p.ctx.Release()
}

func (c *pcscCard) Transmit(cmd []byte) ([]byte, error) {
	resp, err := c.card.Transmit(cmd)
	if errors.Is(err, scard.ErrRemovedCard) {
		return nil, NoCardErr
	}
	return resp, err
}

func (c *pcscCard) Disconnect() error {
	return c.card.Disconnect(scard.LeaveCard)
}
