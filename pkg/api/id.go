package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	conversationIDPrefix = "conv_"
	messageIDPrefix      = "msg_"
	itemIDPrefix         = "item_"
	callIDPrefix         = "call_"
)

var (
	conversationIDPattern = regexp.MustCompile(`^conv_[a-zA-Z0-9]{24}$`)
	messageIDPattern      = regexp.MustCompile(`^msg_[a-zA-Z0-9]{24}$`)
	itemIDPattern         = regexp.MustCompile(`^item_[a-zA-Z0-9]{24}$`)
)

// NewConversationID generates a conversation ID: "conv_" followed by 24
// cryptographically random alphanumeric characters.
func NewConversationID() string {
	return conversationIDPrefix + randomAlphanumeric(idLength)
}

// NewMessageID generates a message ID with the "msg_" prefix.
func NewMessageID() string {
	return messageIDPrefix + randomAlphanumeric(idLength)
}

// NewItemID generates an item ID with the "item_" prefix.
func NewItemID() string {
	return itemIDPrefix + randomAlphanumeric(idLength)
}

// NewCallID generates a tool-call ID with the "call_" prefix, used when the
// reasoning backend does not supply one.
func NewCallID() string {
	return callIDPrefix + randomAlphanumeric(idLength)
}

// ValidateConversationID reports whether id is a well-formed conversation ID.
func ValidateConversationID(id string) bool {
	return conversationIDPattern.MatchString(id)
}

// ValidateMessageID reports whether id is a well-formed message ID.
func ValidateMessageID(id string) bool {
	return messageIDPattern.MatchString(id)
}

// ValidateItemID reports whether id is a well-formed item ID.
func ValidateItemID(id string) bool {
	return itemIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
