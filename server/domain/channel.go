package domain

import (
	"strconv"
	"strings"
)

type ChannelKind int

const (
	ChannelUnknown ChannelKind = iota
	ChannelPublicPresentation
	ChannelPrivatePresentation
	ChannelPrivatePresenter
	ChannelPrivateUser
)

const (
	publicPresentationPrefix  = "presentation."
	privatePresentationPrefix = "private-presentation-"
	privatePresenterPrefix    = "private-presenter-"
	userPrefix                = "user."
	privateUserPrefix         = "private-user-"
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelPublicPresentation:
		return "public-presentation"
	case ChannelPrivatePresentation:
		return "private-presentation"
	case ChannelPrivatePresenter:
		return "private-presenter"
	case ChannelPrivateUser:
		return "private-user"
	default:
		return "unknown"
	}
}

// Channel is a parsed channel name. UID is set for public presentation
// channels, ID for every private variant.
type Channel struct {
	Kind ChannelKind
	UID  string
	ID   int64
}

func NewPresentationChannel(uid string) Channel {
	return Channel{Kind: ChannelPublicPresentation, UID: uid}
}

func ParseChannel(name string) Channel {
	if uid, ok := strings.CutPrefix(name, publicPresentationPrefix); ok {
		if !IsValidPresentationUID(uid) {
			return Channel{}
		}
		return Channel{Kind: ChannelPublicPresentation, UID: uid}
	}

	prefixes := []struct {
		prefix string
		kind   ChannelKind
	}{
		{userPrefix, ChannelPrivateUser},
		{privateUserPrefix, ChannelPrivateUser},
		{privatePresentationPrefix, ChannelPrivatePresentation},
		{privatePresenterPrefix, ChannelPrivatePresenter},
	}
	for _, p := range prefixes {
		rest, ok := strings.CutPrefix(name, p.prefix)
		if !ok {
			continue
		}
		id, ok := parseID(rest)
		if !ok {
			return Channel{}
		}
		return Channel{Kind: p.kind, ID: id}
	}
	return Channel{}
}

func (c Channel) IsValid() bool {
	return c.Kind != ChannelUnknown
}

// Name returns the canonical name. user.<id> and private-user-<id> both
// render as user.<id>.
func (c Channel) Name() string {
	switch c.Kind {
	case ChannelPublicPresentation:
		return publicPresentationPrefix + c.UID
	case ChannelPrivatePresentation:
		return privatePresentationPrefix + strconv.FormatInt(c.ID, 10)
	case ChannelPrivatePresenter:
		return privatePresenterPrefix + strconv.FormatInt(c.ID, 10)
	case ChannelPrivateUser:
		return userPrefix + strconv.FormatInt(c.ID, 10)
	default:
		return ""
	}
}

func (c Channel) String() string {
	if !c.IsValid() {
		return c.Kind.String()
	}
	return c.Kind.String() + "(" + c.Name() + ")"
}

func parseID(s string) (int64, bool) {
	if s == "" || len(s) > 18 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// IsValidPresentationUID reports whether uid can name a public presentation
// channel: 1 to 64 ASCII letters, digits, '-' or '_'.
func IsValidPresentationUID(uid string) bool {
	if uid == "" || len(uid) > 64 {
		return false
	}
	for _, r := range uid {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
