package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag_RoundTrip(t *testing.T) {
	cases := []struct {
		address string
		want    Tag
	}{
		{"User:42", UserTag(42)},
		{"User:-7", UserTag(-7)},
		{"Channel:ops", ChannelTag("ops")},
		{"Channel:a:b", ChannelTag("a:b")},
		{"Broadcast", BroadcastTag()},
	}

	for _, tc := range cases {
		t.Run(tc.address, func(t *testing.T) {
			got, err := ParseTag(tc.address)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.address, got.String())
		})
	}
}

func TestParseTag_Invalid(t *testing.T) {
	for _, address := range []string{"", "Foo:1", "User:abc", "User:", "User:007", "User:+7", "Channel:", "broadcast", "Broadcast:x"} {
		t.Run(fmt.Sprintf("%q", address), func(t *testing.T) {
			_, err := ParseTag(address)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidAddress))
			assert.Equal(t, KindInvalidAddress, KindOf(err))
		})
	}
}

func TestTag_MapKey(t *testing.T) {
	m := map[Tag]int{}
	m[MustParseTag("Channel:ops")]++
	m[ChannelTag("ops")]++
	m[ChannelTag("Ops")]++

	assert.Equal(t, 2, m[ChannelTag("ops")])
	assert.Equal(t, 1, m[ChannelTag("Ops")])
}

func TestTag_ZeroValue(t *testing.T) {
	var tag Tag
	assert.True(t, tag.IsZero())
	assert.Empty(t, tag.String())
	assert.False(t, UserTag(0).IsZero())
}

func TestSenderGrant_Permits(t *testing.T) {
	g := SenderGrant{Channel: "ops", AdminEmail: "admin@example.com"}

	assert.True(t, g.Permits(ChannelTag("ops")))
	assert.False(t, g.Permits(ChannelTag("sales")))
	assert.True(t, g.Permits(UserTag(1)))
	assert.True(t, g.Permits(BroadcastTag()))
}
