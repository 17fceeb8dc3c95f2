package chat

import "encoding/json"

// Part is one ordered segment of a message body.
const (
	PartText = "text"
	PartFile = "file"
)

type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
	Name string `json:"name,omitempty"`
}

type Attachment struct {
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// The store treats parts/attachments as opaque blobs; these helpers are the
// only place that knows the serialization. Malformed stored blobs decode to
// an empty sequence rather than failing the read.

func EncodeParts(parts []Part) string {
	if len(parts) == 0 {
		return "[]"
	}
	b, err := json.Marshal(parts)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func DecodeParts(raw string) []Part {
	var parts []Part
	if err := json.Unmarshal([]byte(raw), &parts); err != nil {
		return []Part{}
	}
	if parts == nil {
		return []Part{}
	}
	return parts
}

func EncodeAttachments(atts []Attachment) string {
	if len(atts) == 0 {
		return "[]"
	}
	b, err := json.Marshal(atts)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func DecodeAttachments(raw string) []Attachment {
	var atts []Attachment
	if err := json.Unmarshal([]byte(raw), &atts); err != nil {
		return []Attachment{}
	}
	if atts == nil {
		return []Attachment{}
	}
	return atts
}

// firstText extracts the text fed back to the model from a stored parts blob.
func firstText(parts []Part) string {
	for _, p := range parts {
		if p.Type == PartText {
			return p.Text
		}
	}
	return ""
}
