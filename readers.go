package main

import (
	"fmt"

	"github.com/callebjorkell/rfid-bridge/nfc"
)

func listReaders() error {
	ctx, err := nfc.Open(*driver)
	if err != nil {
		return err
	}
	defer ctx.Release()

	names, err := ctx.ListReaders()
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Println("No reader found.")
		return nil
	}
	fmt.Println("  # │ Reader")
	fmt.Println("────┼─────────────────────────────────────────")
	for i, n := range names {
		fmt.Printf("%3v │ %v\n", i, n)
	}
	return nil
}
