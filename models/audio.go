package models

// AudioPayload is the extracted audio track of one video, held in memory.
type AudioPayload struct {
	Data      []byte
	SizeBytes int64
	MIMEType  string
	Ext       string // container extension without the dot, e.g. "m4a"
	Title     string
}

// NewAudioPayload builds a payload whose declared size matches its buffer.
func NewAudioPayload(data []byte, mimeType, ext string) *AudioPayload {
	return &AudioPayload{
		Data:      data,
		SizeBytes: int64(len(data)),
		MIMEType:  mimeType,
		Ext:       ext,
	}
}

// Filename is the name the payload is uploaded under.
func (p *AudioPayload) Filename() string {
	if p.Ext == "" {
		return "audio"
	}
	return "audio." + p.Ext
}

// TranscriptionRequest pairs a checked payload with the credential used to
// upload it. It only lives for the duration of one outbound call.
type TranscriptionRequest struct {
	Payload *AudioPayload
	APIKey  string
}

type Transcript struct {
	Text string
}

func (t Transcript) String() string { return t.Text }
