package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/callebjorkell/rfid-bridge/nfc"
	log "github.com/sirupsen/logrus"
)

func printSingleCard(ctx context.Context) error {
	id, err := readSingleCard(ctx, *readWait)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

// readSingleCard polls the first reader until a card shows up or the wait is over.
func readSingleCard(ctx context.Context, wait time.Duration) (string, error) {
	cards, err := nfc.Open(*driver)
	if err != nil {
		return "", err
	}
	defer cards.Release()
	return waitForCard(ctx, cards, wait)
}

func waitForCard(ctx context.Context, cards nfc.Context, wait time.Duration) (string, error) {
	names, err := cards.ListReaders()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", nfc.NoReaderErr
	}

	log.Infof("Waiting for a card on %v...", names[0])
	deadline := time.After(wait)
	for {
		id, err := nfc.ReadCardID(cards, names[0])
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, nfc.NoCardErr) {
			log.Debugf("error when reading card ID: %v", err)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline:
			return "", fmt.Errorf("no card within %v: %w", wait, nfc.NoCardErr)
		case <-time.After(150 * time.Millisecond):
		}
	}
}
