// Package stream holds the shared data model for a publish run.
package stream

import "fmt"

// Target identifies one stream endpoint on an RTSP server. A run uses two
// targets: the publish endpoint and the subscribe endpoint, which differ
// only in port.
type Target struct {
	Host  string
	Port  int
	Topic string
}

// URL renders the RTSP URL for this target.
func (t Target) URL() string {
	return fmt.Sprintf("rtsp://%s:%d/%s", t.Host, t.Port, t.Topic)
}

// Source describes the media input and how it is published. It is fixed for
// the duration of a run.
type Source struct {
	// File is the path of the local media file to publish.
	File string
	// Reencode forces the fixed H.264/AAC transcode profile instead of
	// stream copy.
	Reencode bool
	// Loop replays the input indefinitely.
	Loop bool
	// Play additionally spawns a player subscribed to the stream.
	Play bool
}
