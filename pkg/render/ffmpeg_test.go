package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFFmpeg() *FFmpeg {
	return &FFmpeg{
		Binary:       "ffmpeg",
		Endpoint:     "rtmp://a.rtmp.youtube.com/live2/",
		Key:          "abcd-efgh-ijkl-mnop",
		FontFile:     "/fonts/Bold.ttf",
		Label:        "YouTube Subscribers",
		Background:   "#1a1a1a",
		Width:        1920,
		Height:       1080,
		FPS:          30,
		VideoBitrate: "2500k",
		AudioBitrate: "128k",
	}
}

func argAfter(t *testing.T, argv []string, flag string) string {
	for i, a := range argv {
		if a == flag && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	t.Fatalf("flag %s not found in %v", flag, argv)
	return ""
}

func TestTarget(t *testing.T) {
	f := testFFmpeg()
	assert.Equal(t, "rtmp://a.rtmp.youtube.com/live2/abcd-efgh-ijkl-mnop", f.Target())
	assert.Equal(t, "rtmp://a.rtmp.youtube.com/live2/abcd...", f.RedactedTarget())
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", Redact(""))
	assert.Equal(t, "...", Redact("abcd"))
	assert.Equal(t, "a...", Redact("abcde"))
	assert.Equal(t, "abcdefgh...", Redact(strings.Repeat("abcdefgh", 8)))
}

func TestOverlayText(t *testing.T) {
	assert.Equal(t, "1234", OverlayText(1234))
	assert.Equal(t, "0", OverlayText(0))
	assert.Equal(t, "--", OverlayText(UnknownValue))
}

func TestStreamCommandSilent(t *testing.T) {
	f := testFFmpeg()
	argv := f.StreamCommand(1234, Assets{})

	assert.Equal(t, "ffmpeg", argv[0])
	assert.Equal(t, f.Target(), argv[len(argv)-1])
	assert.Contains(t, argv, "anullsrc=channel_layout=stereo:sample_rate=44100")
	assert.NotContains(t, argv, "-stream_loop")
	assert.Equal(t, "60", argAfter(t, argv, "-g"))
	assert.Equal(t, "flv", argv[len(argv)-2])

	vf := argAfter(t, argv, "-vf")
	assert.Contains(t, vf, "text='1234'")
	assert.Contains(t, vf, `fontfile=/fonts/Bold.ttf`)
}

func TestStreamCommandWithAudio(t *testing.T) {
	f := testFFmpeg()
	argv := f.StreamCommand(UnknownValue, Assets{AudioFile: "/media/music.mp3"})

	assert.Equal(t, "-1", argAfter(t, argv, "-stream_loop"))
	assert.Contains(t, argv, "/media/music.mp3")
	assert.NotContains(t, argv, "anullsrc=channel_layout=stereo:sample_rate=44100")
	assert.Contains(t, argAfter(t, argv, "-vf"), "text='--'")
}

func TestLabelIsEscaped(t *testing.T) {
	f := testFFmpeg()
	f.Label = "Subs: 100%"
	vf := argAfter(t, f.StreamCommand(1, Assets{}), "-vf")
	assert.Contains(t, vf, `text='Subs\: 100\%'`)
}

func TestProbeCommand(t *testing.T) {
	f := testFFmpeg()
	argv := f.ProbeCommand()
	assert.Equal(t, "ffmpeg", argv[0])
	assert.Equal(t, "5", argAfter(t, argv, "-t"))
	assert.Equal(t, f.Target(), argv[len(argv)-1])
}

func TestAudioDiscovery(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, DiscoverAssets(dir, DefaultAudioCandidates).AudioFile)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "music.mp3"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "background.mp3"), []byte("xy"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "audio.mp3"), 0o755))

	files := ListAudio(dir, DefaultAudioCandidates)
	require.Len(t, files, 2)
	assert.Equal(t, "background.mp3", files[0].Name)
	assert.EqualValues(t, 2, files[0].Size)
	assert.Equal(t, "music.mp3", files[1].Name)

	assert.Equal(t, filepath.Join(dir, "background.mp3"), DiscoverAssets(dir, DefaultAudioCandidates).AudioFile)
}
