package render

import (
	"os"
	"path/filepath"
)

// DefaultAudioCandidates are tried in order when looking for background audio.
var DefaultAudioCandidates = []string{"audio.mp3", "background.mp3", "music.mp3", "stream_audio.mp3"}

// AudioFile describes a candidate audio file found on disk.
type AudioFile struct {
	Name string
	Path string
	Size int64
}

// ListAudio returns every candidate present in dir, in candidate order.
func ListAudio(dir string, candidates []string) []AudioFile {
	var found []AudioFile
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		found = append(found, AudioFile{Name: name, Path: path, Size: info.Size()})
	}
	return found
}

// DiscoverAssets picks the first candidate audio file present in dir. An
// empty AudioFile means the stream uses generated silence.
func DiscoverAssets(dir string, candidates []string) Assets {
	files := ListAudio(dir, candidates)
	if len(files) == 0 {
		return Assets{}
	}
	return Assets{AudioFile: files[0].Path}
}
