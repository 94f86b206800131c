// Package mediatype classifies files into the media classes the indexing
// pipeline knows how to process. Classification is purely extension based;
// the staged artifact keeps its original extension for this reason.
package mediatype

import (
	"path/filepath"
	"strings"
)

// Class is the media class of a file.
type Class string

const (
	Image       Class = "image"
	Video       Class = "video"
	Audio       Class = "audio"
	Document    Class = "document"
	Unsupported Class = "unsupported"
)

var byExtension = map[string]Class{
	".jpg":  Image,
	".jpeg": Image,
	".png":  Image,
	".webp": Image,
	".heic": Image,
	".gif":  Image,
	".bmp":  Image,

	".mp4":  Video,
	".mov":  Video,
	".mkv":  Video,
	".webm": Video,
	".avi":  Video,

	".mp3":  Audio,
	".wav":  Audio,
	".m4a":  Audio,
	".flac": Audio,
	".ogg":  Audio,

	".txt":  Document,
	".md":   Document,
	".pdf":  Document,
	".docx": Document,
}

// Classify maps a file extension (with or without the leading dot,
// case-insensitive) to its media class. Anything unrecognized is
// Unsupported, which callers treat as "nothing to index".
func Classify(ext string) Class {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if class, ok := byExtension[ext]; ok {
		return class
	}
	return Unsupported
}

// ClassifyPath classifies a file by its path's extension.
func ClassifyPath(path string) Class {
	return Classify(filepath.Ext(path))
}
