package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	v1alpha1 "github.com/wrale/wrale-overlay/api/types/v1alpha1"
	werrors "github.com/wrale/wrale-overlay/internal/woverlay/errors"
)

// Decode parses one inbound payload into a Descriptor.
//
// A payload that is not a JSON object returns ErrMalformedPayload. Every other
// payload yields a Descriptor: a field of the wrong JSON type is treated as
// absent, and channels left without their companion fields are dropped from
// the descriptor. Both are reported in issues; the rest is kept.
func Decode(payload []byte) (Descriptor, []error, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Descriptor{}, nil, werrors.NewError("MALFORMED_PAYLOAD",
			"payload is not a JSON object", "notification.Decode", werrors.ErrMalformedPayload)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Descriptor{}, nil, werrors.NewError("MALFORMED_PAYLOAD",
			err.Error(), "notification.Decode", fmt.Errorf("%w: %v", werrors.ErrMalformedPayload, err))
	}

	var issues []error
	msg := v1alpha1.NotificationMessage{
		MessageDisplayed:         field[*string](fields, "message_displayed", &issues),
		MessageDisplayedPosition: field[[]float64](fields, "message_displayed_position", &issues),
		PlayedSound:              field[*string](fields, "played_sound", &issues),
		PlayedSoundVolume:        field[*float64](fields, "played_sound_volume", &issues),
		PlayedVideo:              field[*string](fields, "played_video", &issues),
		PlayedVideoVolume:        field[*float64](fields, "played_video_volume", &issues),
		PlayedVideoPosition:      field[[]float64](fields, "played_video_position", &issues),
		PlayedVideoSize:          field[[]float64](fields, "played_video_size", &issues),
		Type:                     typeOf(fields["type"]),
	}

	d, channelIssues := FromMessage(msg)
	return d, append(issues, channelIssues...), nil
}

// field decodes one member of the payload. A value of the wrong type leaves
// the zero value and is reported.
func field[T any](fields map[string]json.RawMessage, name string, issues *[]error) T {
	var v T
	raw, ok := fields[name]
	if !ok {
		return v
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		*issues = append(*issues, invalid(name, err))
		var zero T
		return zero
	}
	return v
}

// typeOf reads the "type" member loosely: 1 and "1" both select timed.
// Anything else, including fractions and non-numeric strings, is unknown.
func typeOf(raw json.RawMessage) v1alpha1.NotificationType {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil {
		return 0
	}
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		n = f
	default:
		return 0
	}
	switch n {
	case float64(v1alpha1.NotificationTypeTimed):
		return v1alpha1.NotificationTypeTimed
	case float64(v1alpha1.NotificationTypeMediaGated):
		return v1alpha1.NotificationTypeMediaGated
	}
	return 0
}

// FromMessage converts a wire message into a Descriptor
func FromMessage(msg v1alpha1.NotificationMessage) (Descriptor, []error) {
	var issues []error
	d := Descriptor{Kind: kindFromType(msg.Type)}

	if text := deref(msg.MessageDisplayed); text != "" {
		pos, ok := pair(msg.MessageDisplayedPosition)
		if ok {
			d.Caption = &Caption{Text: text, Position: Point{X: pos[0], Y: pos[1]}}
		} else {
			issues = append(issues, incomplete("message_displayed", "message_displayed_position"))
		}
	}

	if src := deref(msg.PlayedSound); src != "" {
		if msg.PlayedSoundVolume != nil {
			vol, clamped := clampVolume(*msg.PlayedSoundVolume)
			if clamped {
				issues = append(issues, outOfRange("played_sound_volume", *msg.PlayedSoundVolume))
			}
			d.Sound = &Sound{Source: src, Volume: vol}
		} else {
			issues = append(issues, incomplete("played_sound", "played_sound_volume"))
		}
	}

	if src := deref(msg.PlayedVideo); src != "" {
		pos, posOK := pair(msg.PlayedVideoPosition)
		size, sizeOK := pair(msg.PlayedVideoSize)
		switch {
		case msg.PlayedVideoVolume == nil:
			issues = append(issues, incomplete("played_video", "played_video_volume"))
		case !posOK:
			issues = append(issues, incomplete("played_video", "played_video_position"))
		case !sizeOK:
			issues = append(issues, incomplete("played_video", "played_video_size"))
		default:
			vol, clamped := clampVolume(*msg.PlayedVideoVolume)
			if clamped {
				issues = append(issues, outOfRange("played_video_volume", *msg.PlayedVideoVolume))
			}
			d.Video = &VideoClip{
				Source:   src,
				Volume:   vol,
				Position: Point{X: pos[0], Y: pos[1]},
				Size:     Size{Width: size[0], Height: size[1]},
			}
		}
	}

	return d, issues
}

func kindFromType(t v1alpha1.NotificationType) Kind {
	switch t {
	case v1alpha1.NotificationTypeTimed:
		return KindTimed
	case v1alpha1.NotificationTypeMediaGated:
		return KindMediaGated
	default:
		return KindUnknown
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func pair(v []float64) ([2]float64, bool) {
	if len(v) < 2 {
		return [2]float64{}, false
	}
	return [2]float64{v[0], v[1]}, true
}

// clampVolume limits a gain to [0, 1] and reports whether it had to
func clampVolume(v float64) (float64, bool) {
	switch {
	case math.IsNaN(v):
		return 0, true
	case v < 0:
		return 0, true
	case v > 1:
		return 1, true
	}
	return v, false
}

func incomplete(channel, missing string) error {
	return werrors.NewError("INCOMPLETE_CHANNEL",
		fmt.Sprintf("%s ignored: %s missing", channel, missing),
		"notification.Decode", werrors.ErrIncompleteChannel)
}

func invalid(field string, err error) error {
	return werrors.NewError("INVALID_FIELD",
		fmt.Sprintf("%s ignored: %v", field, err),
		"notification.Decode", werrors.ErrIncompleteChannel)
}

func outOfRange(field string, v float64) error {
	return werrors.NewError("VOLUME_CLAMPED",
		fmt.Sprintf("%s %g clamped to [0,1]", field, v),
		"notification.Decode", nil)
}
