package main

import (
	"context"

	"github.com/callebjorkell/rfid-bridge/nfc"
	"github.com/callebjorkell/rfid-bridge/scanner"
	"github.com/callebjorkell/rfid-bridge/socketio"
	"github.com/callebjorkell/rfid-bridge/ui"
	log "github.com/sirupsen/logrus"
)

func startScanner(ctx context.Context) error {
	session, err := scanner.Connect(ctx, *serverURL, socketio.WithHandshakeTimeout(*connectTimeout))
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Debugf("Closing session: %v", err)
		}
	}()

	cards, err := nfc.Open(*driver)
	if err != nil {
		return &scanner.StartupError{Stage: "open reader driver", Err: err}
	}
	defer cards.Release()

	light := ui.GetStatusLight()
	defer light.Off()

	s := scanner.New(session, cards,
		scanner.WithInterval(*interval),
		scanner.WithSource(*source),
		scanner.WithReadTimeout(*readTimeout),
		scanner.WithIndicator(light),
	)
	return s.Run(ctx)
}
