package ffmpeg

// PublishParams holds everything needed to build a publish command.
// Strongly typed fields instead of a free-form argument list so the builder
// stays a pure function of its inputs.
type PublishParams struct {
	// Input is the path of the local media file to read.
	Input string
	// OutputURL is the rtsp:// URL to publish to.
	OutputURL string
	// Reencode selects the fixed H.264/AAC transcode profile. When false
	// the input is stream-copied, which is fast but requires the input
	// codecs to be acceptable to the server.
	Reencode bool
	// Loop replays the input indefinitely.
	Loop bool
}
