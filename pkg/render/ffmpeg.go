// Package render builds the ffmpeg invocations that draw the counter overlay
// and push the feed to an RTMP endpoint.
package render

import (
	"fmt"
	"strconv"
	"strings"
)

// UnknownValue is rendered as a placeholder instead of a number.
const UnknownValue = -1

const placeholderText = "--"

// Assets are the optional media files used by the stream.
type Assets struct {
	AudioFile string
}

// FFmpeg describes how to encode and where to push the overlay stream.
type FFmpeg struct {
	Binary       string
	Endpoint     string // rtmp://host/app
	Key          string
	FontFile     string
	Label        string
	Background   string
	Width        int
	Height       int
	FPS          int
	VideoBitrate string
	AudioBitrate string
}

// Target joins the endpoint and the stream key.
func (f *FFmpeg) Target() string {
	return strings.TrimRight(f.Endpoint, "/") + "/" + f.Key
}

// RedactedTarget is Target with most of the key hidden, for logs and responses.
func (f *FFmpeg) RedactedTarget() string {
	return strings.TrimRight(f.Endpoint, "/") + "/" + Redact(f.Key)
}

// Redact keeps a short prefix of a secret.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "..."
	}
	n := len(secret) / 4
	if n > 8 {
		n = 8
	}
	return secret[:n] + "..."
}

// OverlayText is the counter text drawn for value.
func OverlayText(value int) string {
	if value < 0 {
		return placeholderText
	}
	return strconv.Itoa(value)
}

// StreamCommand returns the argv (binary first) of the long-running stream
// process rendering value.
func (f *FFmpeg) StreamCommand(value int, assets Assets) []string {
	args := []string{
		f.Binary,
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", f.Background, f.Width, f.Height, f.FPS),
	}
	if assets.AudioFile != "" {
		args = append(args, "-stream_loop", "-1", "-i", assets.AudioFile)
	} else {
		args = append(args, "-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100")
	}
	args = append(args,
		"-vf", f.drawFilter(value),
		"-c:v", "libx264",
		"-preset", "fast",
		"-tune", "zerolatency",
		"-b:v", f.VideoBitrate,
		"-maxrate", f.VideoBitrate,
		"-bufsize", f.VideoBitrate,
		"-pix_fmt", "yuv420p",
		"-g", strconv.Itoa(f.FPS*2),
		"-keyint_min", strconv.Itoa(f.FPS*2),
		"-c:a", "aac",
		"-b:a", f.AudioBitrate,
		"-ac", "2",
		"-ar", "44100",
		"-f", "flv",
		f.Target(),
	)
	return args
}

// ProbeCommand returns the argv of a short connectivity test: five seconds of
// test pattern and tone pushed to the same endpoint.
func (f *FFmpeg) ProbeCommand() []string {
	return []string{
		f.Binary, "-y",
		"-f", "lavfi", "-i", "testsrc=duration=5:size=320x240:rate=10",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=5",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-b:v", "300k",
		"-pix_fmt", "yuv420p",
		"-g", "10",
		"-c:a", "aac",
		"-b:a", "64k",
		"-ac", "2",
		"-ar", "44100",
		"-t", "5",
		"-f", "flv",
		f.Target(),
	}
}

func (f *FFmpeg) drawFilter(value int) string {
	font := ""
	if f.FontFile != "" {
		font = "fontfile=" + escapeFilterValue(f.FontFile) + ":"
	}
	label := fmt.Sprintf("drawtext=%stext='%s':fontcolor=white:fontsize=%d:x=(w-text_w)/2:y=%d",
		font, escapeText(f.Label), f.Height*80/1080, f.Height*300/1080)
	counter := fmt.Sprintf("drawtext=%stext='%s':fontcolor=#FF0000:fontsize=%d:x=(w-text_w)/2:y=%d",
		font, escapeText(OverlayText(value)), f.Height*180/1080, f.Height*500/1080)
	return label + "," + counter
}

// escapeText escapes a drawtext text value quoted with single quotes.
func escapeText(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `'\''`, `:`, `\:`, `%`, `\%`)
	return r.Replace(s)
}

func escapeFilterValue(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `,`, `\,`, `'`, `\'`)
	return r.Replace(s)
}
