// Package inbound classifies inbound WhatsApp messages and routes each one to
// exactly one handling branch.
package inbound

import (
	"fmt"
	"strings"
)

// Media is an attachment. Either URL (Twilio) or Data (WhatsApp Web, already
// downloaded) is set.
type Media struct {
	URL         string
	ContentType string
	Data        []byte
}

// Location is a shared map pin.
type Location struct {
	Latitude  float64
	Longitude float64
	Label     string
}

// Event is one inbound message as delivered by a carrier.
type Event struct {
	MessageID string // carrier message id, used to drop duplicate deliveries
	From      string // sender phone, E.164
	To        string // our number, used as the sender identity of the reply
	Body      string
	Media     *Media
	Location  *Location
}

// Branch is the handling path of an event.
type Branch string

const (
	BranchAudio    Branch = "audio"
	BranchVideo    Branch = "video"
	BranchImage    Branch = "image"
	BranchLocation Branch = "location"
	BranchText     Branch = "text"
)

// Classify picks the branch for ev. Media outranks location, which outranks
// text, and among media audio outranks video, which outranks images.
func Classify(ev Event) Branch {
	if ev.Media != nil {
		ct := strings.ToLower(strings.TrimSpace(ev.Media.ContentType))
		switch {
		case strings.HasPrefix(ct, "audio/"):
			return BranchAudio
		case strings.HasPrefix(ct, "video/"):
			return BranchVideo
		default:
			return BranchImage
		}
	}
	if ev.Location != nil {
		return BranchLocation
	}
	return BranchText
}

// describe renders ev as the user turn stored in the conversation log.
func describe(ev Event, branch Branch) string {
	body := strings.TrimSpace(ev.Body)
	var tag string
	switch branch {
	case BranchAudio:
		tag = "[nota de voz]"
	case BranchVideo:
		tag = "[video]"
	case BranchImage:
		tag = "[foto]"
	case BranchLocation:
		tag = fmt.Sprintf("[ubicación %.5f,%.5f", ev.Location.Latitude, ev.Location.Longitude)
		if ev.Location.Label != "" {
			tag += " " + ev.Location.Label
		}
		tag += "]"
	default:
		return body
	}
	if body == "" {
		return tag
	}
	return tag + " " + body
}
