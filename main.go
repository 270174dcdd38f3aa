package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/callebjorkell/rfid-bridge/nfc"
	"github.com/callebjorkell/rfid-bridge/scanner"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	app    = kingpin.New("rfid-bridge", "Reads card identifiers from a smart card reader and sends every new one to a Socket.IO server.")
	debug  = app.Flag("debug", "Enable debug logging.").Bool()
	driver = app.Flag("driver", "Reader driver to use.").Default(nfc.PCSC).Enum(nfc.PCSC, nfc.RC522, nfc.Mock)

	start          = app.Command("start", "Connect to the server and start scanning for cards.").Default()
	serverURL      = start.Flag("server", "Address of the Socket.IO server.").Default("http://localhost:3000").Envar("RFID_SERVER").String()
	interval       = start.Flag("interval", "Delay between two reads.").Default(scanner.DefaultInterval.String()).Duration()
	source         = start.Flag("source", "Source tag sent along with every identifier.").Default(scanner.DefaultSource).String()
	readTimeout    = start.Flag("read-timeout", "Give up on a single card read after this long. 0 waits forever.").Default("0s").Duration()
	connectTimeout = start.Flag("connect-timeout", "How long to wait for the server to accept the connection.").Default("10s").Duration()

	readers = app.Command("readers", "List the card readers attached to this machine.")

	read     = app.Command("read", "Wait for a card on the first reader and print its identifier.")
	readWait = read.Flag("wait", "How long to wait for a card.").Default("10s").Duration()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Debugln("Received signal, shutting down")
		cancel()
	}()

	var err error
	switch command {
	case start.FullCommand():
		err = startScanner(ctx)
	case readers.FullCommand():
		err = listReaders()
	case read.FullCommand():
		err = printSingleCard(ctx)
	default:
		kingpin.FatalUsage("Unrecognized command")
	}

	if err != nil {
		log.Errorf("Error: %v", err)
		os.Exit(1)
	}
}
