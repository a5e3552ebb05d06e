package intent

import "strings"

// Kind tags the action a classified utterance asks for.
type Kind string

const (
	KindGeneral        Kind = "general"
	KindWebSearch      Kind = "web-search"
	KindVideoSearch    Kind = "video-search"
	KindVideoPlay      Kind = "video-play"
	KindSiteOpen       Kind = "site-open"
	KindGetTime        Kind = "get-time"
	KindGetDate        Kind = "get-date"
	KindGetDay         Kind = "get-day"
	KindGetMonth       Kind = "get-month"
	KindOpenCalculator Kind = "open-calculator"
	KindShowWeather    Kind = "show-weather"
)

var kinds = []Kind{
	KindGeneral,
	KindWebSearch,
	KindVideoSearch,
	KindVideoPlay,
	KindSiteOpen,
	KindGetTime,
	KindGetDate,
	KindGetDay,
	KindGetMonth,
	KindOpenCalculator,
	KindShowWeather,
}

// FallbackReply is spoken whenever classification cannot produce a valid intent.
const FallbackReply = "Sorry, I'm having trouble with that request. Please try again."

// Kinds returns the closed set of accepted kinds in prompt order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Valid reports whether k belongs to the enumeration.
func (k Kind) Valid() bool {
	_, ok := ParseKind(string(k))
	return ok
}

func (k Kind) String() string { return string(k) }

// ParseKind matches a raw tag exactly. Unknown tags are rejected, never coerced.
func ParseKind(raw string) (Kind, bool) {
	for _, k := range kinds {
		if string(k) == raw {
			return k, true
		}
	}
	return "", false
}

// Intent is the structured result of classifying one utterance.
type Intent struct {
	Kind            Kind   `json:"kind"`
	NormalizedInput string `json:"normalizedInput"`
	SpokenReply     string `json:"spokenReply"`
}

// Fallback builds the safe intent substituted for any failed classification.
func Fallback(utterance string) Intent {
	return Intent{
		Kind:            KindGeneral,
		NormalizedInput: utterance,
		SpokenReply:     FallbackReply,
	}
}

// IsFallback reports whether in carries the fixed fallback reply.
func (in Intent) IsFallback() bool {
	return in.Kind == KindGeneral && in.SpokenReply == FallbackReply
}

// Site returns the site label ("youtube", "instagram", ...) of a site-open intent.
func (in Intent) Site() string {
	if in.Kind != KindSiteOpen {
		return ""
	}
	host := strings.ToLower(strings.TrimSpace(in.NormalizedInput))
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.Index(host, "."); i > 0 {
		return host[:i]
	}
	return host
}
