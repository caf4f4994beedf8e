package model

import (
	"strconv"
	"strings"
)

// TagKind discriminates the routing target a Tag addresses.
type TagKind int8

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED TAGS
	TagUser TagKind = iota + 1
	TagChannel
	TagBroadcast
)

// Wire prefixes of the address format.
const (
	userPrefix       = "User"
	channelPrefix    = "Channel"
	broadcastLiteral = "Broadcast"
	addressSeparator = ":"
)

// Tag is a routing key: a single user, a named channel (group) or the global broadcast audience.
//
// Tag is a comparable value type, so it can be used directly as a map key.
// Channel names are compared byte-for-byte; no normalization is applied.
type Tag struct {
	kind    TagKind
	userID  int64
	channel string
}

// UserTag addresses every stream opened by the given user.
func UserTag(id int64) Tag { return Tag{kind: TagUser, userID: id} }

// ChannelTag addresses every stream whose owner belongs to the named group.
func ChannelTag(name string) Tag { return Tag{kind: TagChannel, channel: name} }

// BroadcastTag addresses every live stream regardless of its own tag set.
func BroadcastTag() Tag { return Tag{kind: TagBroadcast} }

func (t Tag) Kind() TagKind      { return t.kind }
func (t Tag) UserID() int64      { return t.userID }
func (t Tag) Channel() string    { return t.channel }
func (t Tag) IsBroadcast() bool  { return t.kind == TagBroadcast }
func (t Tag) IsZero() bool       { return t.kind == 0 }
func (t Tag) Delivery() Delivery { return Delivery(t.kind) }

// String serializes the tag into its address form ("User:<id>", "Channel:<name>", "Broadcast").
func (t Tag) String() string {
	switch t.kind {
	case TagUser:
		return userPrefix + addressSeparator + strconv.FormatInt(t.userID, 10)
	case TagChannel:
		return channelPrefix + addressSeparator + t.channel
	case TagBroadcast:
		return broadcastLiteral
	default:
		return ""
	}
}

// ParseTag translates a wire address into a Tag.
// Everything after the first separator is the payload, so channel names may contain ':'.
func ParseTag(address string) (Tag, error) {
	if address == broadcastLiteral {
		return BroadcastTag(), nil
	}

	prefix, rest, ok := strings.Cut(address, addressSeparator)
	if !ok {
		return Tag{}, NewInvalidAddress(address, "missing address separator")
	}

	switch prefix {
	case userPrefix:
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return Tag{}, WrapError(KindInvalidAddress, "invalid user id in address "+strconv.Quote(address), err)
		}
		// [CANONICAL_FORM] "+7" or "007" would not survive a round trip.
		if strconv.FormatInt(id, 10) != rest {
			return Tag{}, NewInvalidAddress(address, "non-canonical user id")
		}
		return UserTag(id), nil

	case channelPrefix:
		if rest == "" {
			return Tag{}, NewInvalidAddress(address, "empty channel name")
		}
		return ChannelTag(rest), nil

	default:
		return Tag{}, NewInvalidAddress(address, "unknown address prefix")
	}
}

// MustParseTag is ParseTag for addresses known at compile time.
func MustParseTag(address string) Tag {
	t, err := ParseTag(address)
	if err != nil {
		panic(err)
	}
	return t
}

// TagStrings serializes a tag list, e.g. for history lookups keyed by channel string.
func TagStrings(tags []Tag) []string {
	res := make([]string, 0, len(tags))
	for _, t := range tags {
		res = append(res, t.String())
	}
	return res
}
