package domain

import "time"

// InboundMessage is an SMS event received from the telephony provider.
type InboundMessage struct {
	MessageSid string    `json:"MessageSid"`
	From       string    `json:"From"`
	Body       string    `json:"Body"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// OutboundReply carries the data required to push a reply to the user.
type OutboundReply struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

// DeliveryStatus is a message-status callback from the telephony provider.
type DeliveryStatus struct {
	MessageSid    string `json:"MessageSid"`
	MessageStatus string `json:"MessageStatus"`
	To            string `json:"To,omitempty"`
	ErrorCode     string `json:"ErrorCode,omitempty"`
}
