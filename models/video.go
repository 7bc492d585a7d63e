package models

import (
	"strings"

	"github.com/nijaru/yt-transcribe/validation"
)

// VideoSource identifies a remote YouTube video. It can only be built through
// NewVideoSource, so a VideoSource value always holds a validated URL.
type VideoSource struct {
	url string
	id  string
}

func NewVideoSource(rawURL string) (VideoSource, error) {
	id, err := validation.ValidateYouTubeURL(rawURL)
	if err != nil {
		return VideoSource{}, err
	}
	return VideoSource{url: strings.TrimSpace(rawURL), id: id}, nil
}

func (v VideoSource) URL() string { return v.url }
func (v VideoSource) ID() string  { return v.id }

// WatchURL is the canonical form handed to the resolver.
func (v VideoSource) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + v.id
}

func (v VideoSource) String() string { return v.url }
