// Package inbound turns messaging webhook payloads into a single message
// shape. The provider posts several payload layouts; each is tried in a
// fixed order and the first that yields both text and sender wins.
package inbound

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncomplete means the payload carries no usable text message.
	// Receipts and status events end up here; it is not a failure.
	ErrIncomplete = errors.New("incomplete message")
	ErrGroupChat  = fmt.Errorf("group chat message: %w", ErrIncomplete)
)

const GroupMarker = "@g.us"

type Message struct {
	Text          string
	SenderID      string
	CorrelationID string
	Instance      string
	// Variant names the payload layout the message was read from.
	Variant string
}

type object map[string]json.RawMessage

type variant struct {
	name  string
	parse func(root object) (Message, bool)
}

var variants = []variant{
	{name: "flat", parse: parseFlat},
	{name: "nested", parse: parseNested},
	{name: "event", parse: parseEvent},
}

// Normalize extracts the message from a raw webhook body.
func Normalize(raw []byte) (Message, error) {
	var root object
	if err := json.Unmarshal(raw, &root); err != nil || root == nil {
		return Message{}, ErrIncomplete
	}

	for _, v := range variants {
		msg, ok := v.parse(root)
		if !ok {
			continue
		}
		msg.Variant = v.name
		msg.Instance = str(root["instance"])
		if strings.Contains(msg.SenderID, GroupMarker) {
			return msg, ErrGroupChat
		}
		return msg, nil
	}
	return Message{}, ErrIncomplete
}

// {"message": "hi", "from": "123@s.whatsapp.net"}
func parseFlat(root object) (Message, bool) {
	msg := Message{
		Text:          str(root["message"]),
		SenderID:      first(str(root["from"]), str(root["remoteJid"])),
		CorrelationID: first(str(root["messageId"]), str(root["id"])),
	}
	return msg, msg.Text != "" && msg.SenderID != ""
}

// {"data": {"key": {...}, "message": {"conversation": "hi"}}}
func parseNested(root object) (Message, bool) {
	return fromEntry(obj(root["data"]))
}

// {"event": "messages.upsert", "data": {"messages": [{"key": {...}, "message": {...}}]}}
func parseEvent(root object) (Message, bool) {
	if str(root["event"]) != "messages.upsert" {
		return Message{}, false
	}

	var messages []json.RawMessage
	if err := json.Unmarshal(obj(root["data"])["messages"], &messages); err != nil || len(messages) == 0 {
		return Message{}, false
	}
	return fromEntry(obj(messages[0]))
}

func fromEntry(entry object) (Message, bool) {
	body := obj(entry["message"])
	key := obj(entry["key"])

	msg := Message{
		Text:          first(str(body["conversation"]), str(obj(body["extendedTextMessage"])["text"])),
		SenderID:      str(key["remoteJid"]),
		CorrelationID: str(key["id"]),
	}
	return msg, msg.Text != "" && msg.SenderID != ""
}

// obj decodes raw as a JSON object; anything else yields an empty object.
func obj(raw json.RawMessage) object {
	var o object
	if len(raw) == 0 || json.Unmarshal(raw, &o) != nil {
		return object{}
	}
	return o
}

// str decodes raw as a JSON string; anything else yields "".
func str(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
