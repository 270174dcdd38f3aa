package ui

// StatusLight shows what the bridge is doing: blue while waiting for cards, green when a card was sent to the server
// and red when something went wrong.
type StatusLight interface {
	Blue()
	Green()
	Red()
	Off()
}
