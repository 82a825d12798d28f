package janusproxy

import (
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// jsepMediaKinds lists the m-line media of the message's jsep, e.g. ["audio", "video"].
// A missing or unparsable jsep, or one of unknown type, yields nil.
func jsepMediaKinds(m Message) []string {
	jsep := m.Jsep()
	if jsep == nil {
		return nil
	}

	sdpType, _ := jsep["type"].(string)
	if webrtc.NewSDPType(sdpType) == webrtc.SDPTypeUnknown {
		return nil
	}

	raw, _ := jsep["sdp"].(string)
	if raw == "" {
		return nil
	}

	parsed := &sdp.SessionDescription{}
	if err := parsed.Unmarshal([]byte(raw)); err != nil {
		return nil
	}

	kinds := make([]string, 0, len(parsed.MediaDescriptions))
	for _, media := range parsed.MediaDescriptions {
		kinds = append(kinds, media.MediaName.Media)
	}

	return kinds
}
