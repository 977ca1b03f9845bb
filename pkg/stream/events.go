package stream

import "encoding/json"

// Event is one inbound room event. The set of variants is closed: only the
// types in this package implement it.
type Event interface {
	event()
}

// ChatMessage is a plain danmaku.
type ChatMessage struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// GiftMessage is a gift sent to the streamer.
type GiftMessage struct {
	User     string `json:"user"`
	GiftName string `json:"gift_name"`
	Count    int    `json:"count"`
}

// SuperChatMessage is a paid, highlighted message.
type SuperChatMessage struct {
	User  string  `json:"user"`
	Price float64 `json:"price"`
	Text  string  `json:"text"`
}

// UnknownCommand is any frame the client could not classify.
type UnknownCommand struct {
	Cmd string
	Raw json.RawMessage
}

func (ChatMessage) event()      {}
func (GiftMessage) event()      {}
func (SuperChatMessage) event() {}
func (UnknownCommand) event()   {}
