package voice

import "encoding/json"

// providerFrame is the telephony provider's media stream envelope.
// Only the events the bridge cares about are modeled; anything else is
// ignored.
type providerFrame struct {
	Event     string      `json:"event"`
	StreamSid string      `json:"streamSid,omitempty"`
	Start     *startFrame `json:"start,omitempty"`
	Media     *mediaFrame `json:"media,omitempty"`
}

type startFrame struct {
	StreamSid string `json:"streamSid"`
	CallSid   string `json:"callSid"`
	// CustomParameters carries values set on the stream by our own
	// call-answer response, including the caller's number.
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      struct {
		Encoding   string `json:"encoding"`
		SampleRate int    `json:"sampleRate"`
		Channels   int    `json:"channels"`
	} `json:"mediaFormat"`
}

type mediaFrame struct {
	// Payload is base64-encoded mulaw audio at 8kHz.
	Payload string `json:"payload"`
}

// outboundMedia builds a media frame carrying model audio back to the
// provider.
func outboundMedia(streamSid, payload string) providerFrame {
	return providerFrame{
		Event:     "media",
		StreamSid: streamSid,
		Media:     &mediaFrame{Payload: payload},
	}
}

// realtimeEvent is the speech model's server event envelope. The Type
// field discriminates; only a handful of event types matter here.
type realtimeEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const (
	eventInputTranscriptDone = "conversation.item.input_audio_transcription.completed"
	eventAgentTranscriptDone = "response.audio_transcript.done"
	eventAudioDelta          = "response.audio.delta"
	eventError               = "error"
)

// sessionUpdate configures the realtime session right after connect:
// telephony audio format on both legs, server-side turn detection, and
// input transcription so the caller side of the transcript exists.
func sessionUpdate(voiceProfile, instructions string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"modalities":          []string{"text", "audio"},
			"voice":               voiceProfile,
			"instructions":        instructions,
			"input_audio_format":  "g711_ulaw",
			"output_audio_format": "g711_ulaw",
			"turn_detection":      map[string]any{"type": "server_vad"},
			"input_audio_transcription": map[string]any{
				"model": "whisper-1",
			},
		},
	})
}

// audioAppend forwards one provider media payload to the model.
func audioAppend(payload string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": payload,
	})
}

// greetingRequest asks the model to speak first so the caller does not
// sit in silence.
func greetingRequest(greeting string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type": "response.create",
		"response": map[string]any{
			"modalities":   []string{"text", "audio"},
			"instructions": greeting,
		},
	})
}
