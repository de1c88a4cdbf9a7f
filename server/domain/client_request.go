package domain

type ClientRequestType int

const (
	RequestUnknown ClientRequestType = iota
	RequestSubscribe
	RequestUnsubscribe
	RequestPing
)

func (t ClientRequestType) String() string {
	switch t {
	case RequestSubscribe:
		return "subscribe"
	case RequestUnsubscribe:
		return "unsubscribe"
	case RequestPing:
		return "ping"
	default:
		return "unknown"
	}
}

func ParseClientRequestType(event string) ClientRequestType {
	switch event {
	case "subscribe":
		return RequestSubscribe
	case "unsubscribe":
		return RequestUnsubscribe
	case "ping":
		return RequestPing
	default:
		return RequestUnknown
	}
}

// ClientRequest is one control frame sent by a subscriber connection.
type ClientRequest struct {
	Type    ClientRequestType
	Channel string
}

func (r ClientRequest) IsValid() bool {
	switch r.Type {
	case RequestSubscribe, RequestUnsubscribe:
		return r.Channel != ""
	case RequestPing:
		return true
	default:
		return false
	}
}

func (r ClientRequest) String() string {
	if r.Channel == "" {
		return r.Type.String()
	}
	return r.Type.String() + ": " + r.Channel
}
