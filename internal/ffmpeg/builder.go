// Package ffmpeg builds argument vectors for the external ffmpeg and ffplay
// tools and understands just enough of their log output to relay it through
// structured logging. All actual media handling happens in the tools.
package ffmpeg

import "strings"

// BuildPublishArgs builds the full argument vector for publishing a local
// file to an RTSP URL. The result is deterministic: identical params always
// yield an identical vector.
//
// Argument order is fixed: -re first so ffmpeg reads at native rate instead
// of flooding the server, the loop directive before the input it applies to,
// codec selection after the input, output format and URL last.
func BuildPublishArgs(ffmpegPath string, p PublishParams) []string {
	args := []string{ffmpegPath, "-re"}

	if p.Loop {
		args = append(args, "-stream_loop", "-1")
	}

	args = append(args, "-i", p.Input)

	if p.Reencode {
		// H.264/AAC is accepted by essentially every RTSP server. Low
		// latency preset since the stream is consumed live.
		args = append(args,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-tune", "zerolatency",
			"-c:a", "aac",
		)
	} else {
		args = append(args, "-c", "copy")
	}

	return append(args, "-f", "rtsp", p.OutputURL)
}

// BuildPlayArgs builds the argument vector for playing back an RTSP URL.
// TCP transport is forced: the viewer side favors reliability over latency.
func BuildPlayArgs(ffplayPath, url string) []string {
	return []string{ffplayPath, "-rtsp_transport", "tcp", url}
}

// CommandString renders an argument vector the way an operator would type
// it. Used only for logging.
func CommandString(args []string) string {
	return strings.Join(args, " ")
}
