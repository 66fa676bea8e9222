package domain

import "time"

// DeliveryReceipt records that a message reached a recipient's connection,
// or that the recipient acknowledged it after reconnecting.
type DeliveryReceipt struct {
	MessageID   string    `json:"messageId"`
	UserID      string    `json:"userId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

type ReadReceipt struct {
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

// ReceiptResult tells the caller whether a write created anything.
// Repeated writes leave Created false.
type ReceiptResult struct {
	MessageID string
	Created   bool
}
