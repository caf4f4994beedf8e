package model

import "time"

// Delivery tells the hub how to resolve the audience of an envelope.
// It mirrors TagKind, but is carried on the wire as the "_type" discriminator.
type Delivery int8

const (
	DeliveryUser      = Delivery(TagUser)
	DeliveryChannel   = Delivery(TagChannel)
	DeliveryBroadcast = Delivery(TagBroadcast)
)

func (d Delivery) String() string {
	switch d {
	case DeliveryUser:
		return "User"
	case DeliveryChannel:
		return "Channel"
	case DeliveryBroadcast:
		return "Broadcast"
	default:
		return "Unknown"
	}
}

// [MESSAGE] IMMUTABLE NOTIFICATION ENVELOPE
// Id and Datetime are assigned by the external log store when the message is recorded;
// the gateway never generates them itself.
type NotificationMessage struct {
	ID       int64     `json:"id"`
	Channel  string    `json:"channel"`
	Subject  string    `json:"subject"`
	Message  string    `json:"message"`
	Datetime time.Time `json:"datetime"`
}

// NotificationLog is one page of history returned by the log store.
type NotificationLog struct {
	Notifications []*NotificationMessage
	Count         int64
}

// RecordedMessage is the identity assigned to a message by the log store.
type RecordedMessage struct {
	ID       int64
	Datetime time.Time
}

// Group is a named channel and the e-mail of its administrator.
type Group struct {
	Name       string
	AdminEmail string
}
