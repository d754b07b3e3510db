package websocket

// ─── Message types ──────────────────────────────────────────────────

type MessageType string

const (
	// TypeSubmit carries a partial answer map from the client.
	TypeSubmit MessageType = "SUBMIT"

	// TypeTick is the per-second countdown broadcast.
	TypeTick MessageType = "TICK"

	// TypeFinish announces expiry; the server closes right after it.
	TypeFinish MessageType = "FINISH"
)

// Envelope is used to peek at the type before full parsing.
type Envelope struct {
	Type MessageType `json:"type"`
}

// SubmitMessage is sent by the client to autosave its current answers.
// Answer values are option letters; null means cleared.
type SubmitMessage struct {
	Type    MessageType        `json:"type"`
	Answers map[string]*string `json:"answers"`
}

// TickMessage reports authoritative remaining time, rounded up so the
// client never displays zero while the attempt is still live.
type TickMessage struct {
	Type             MessageType `json:"type"`
	RemainingSeconds int         `json:"remainingSeconds"`
}

// FinishMessage is the final frame before the server closes the channel.
type FinishMessage struct {
	Type MessageType `json:"type"`
}

func NewTick(remainingSeconds int) TickMessage {
	return TickMessage{Type: TypeTick, RemainingSeconds: remainingSeconds}
}

func NewFinish() FinishMessage {
	return FinishMessage{Type: TypeFinish}
}
