package gateway

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// connectStreamTwiML builds the call-answer document that pipes the
// call's audio into our media stream endpoint. The caller's number is
// attached as a custom parameter because start frames do not carry it.
func connectStreamTwiML(publicHost, caller string) string {
	streamURL := fmt.Sprintf("wss://%s/media", publicHost)
	var callerAttr string
	if caller != "" {
		callerAttr = fmt.Sprintf(
			"\n        <Parameter name=\"from\" value=%s />", quoteAttr(caller))
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url=%s>%s
        </Stream>
    </Connect>
</Response>`, quoteAttr(streamURL), callerAttr)
}

// rejectTwiML answers calls when voice is disabled.
func rejectTwiML() string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Say>Voice is not available. Please send a text message instead.</Say>
    <Hangup/>
</Response>`
}

// quoteAttr XML-escapes a value and wraps it in double quotes.
func quoteAttr(v string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(v))
	return `"` + b.String() + `"`
}
