// Package otp defines verification channels and one-time code generation.
package otp

import "errors"

// Channel is a contact method a user can prove control of.
type Channel string

const (
	ChannelEmail  Channel = "email"
	ChannelMobile Channel = "mobile"
)

var ErrInvalidChannel = errors.New("invalid verification type")

// Channels lists every supported channel in display order.
var Channels = []Channel{ChannelEmail, ChannelMobile}

func ParseChannel(value string) (Channel, error) {
	switch Channel(value) {
	case ChannelEmail:
		return ChannelEmail, nil
	case ChannelMobile:
		return ChannelMobile, nil
	default:
		return "", ErrInvalidChannel
	}
}

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelMobile
}

// ThrottleKey names the per-channel throttle state, e.g. "email_verification".
func (c Channel) ThrottleKey() string {
	return string(c) + "_verification"
}

func (c Channel) String() string {
	return string(c)
}
