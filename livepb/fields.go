package livepb

import (
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

// Struct keys shared by client and server.
const (
	FieldPresentationUID = "presentation_uid"
	FieldPresentationID  = "presentation_id"
	FieldPassword        = "password"
	FieldToken           = "token"
	FieldSessionID       = "session_id"
	FieldSlideIndex      = "slide_index"
	FieldKnown           = "known"
	FieldChannel         = "channel"
	FieldEvent           = "event"
	FieldData            = "data"
	FieldParticipants    = "participants"
	FieldName            = "name"
	FieldCurrentSlide    = "current_slide"
	FieldLastActivity    = "last_activity"
	FieldOutcome         = "outcome"
	FieldPublishedAt     = "published_at"
)

// Metadata keys carrying credentials on every call.
const (
	MetadataAuthorization  = "authorization"
	MetadataPresenterToken = "presenter-token"
)

func GetString(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

// GetInt truncates the number value; a missing key yields 0.
func GetInt(s *structpb.Struct, key string) int64 {
	return int64(s.GetFields()[key].GetNumberValue())
}

// GetIndex reads a slide index: a whole number in [0, MaxInt32]. Missing,
// fractional, non-finite and out-of-range values report false.
func GetIndex(s *structpb.Struct, key string) (int, bool) {
	v, ok := s.GetFields()[key].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false
	}
	n := v.NumberValue
	if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
		return 0, false
	}
	if n < 0 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func GetBool(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}

func Has(s *structpb.Struct, key string) bool {
	v, ok := s.GetFields()[key]
	if !ok {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

func GetList(s *structpb.Struct, key string) []*structpb.Value {
	return s.GetFields()[key].GetListValue().GetValues()
}

// NewStruct builds a struct from plain Go values; see structpb.NewValue for
// the accepted types.
func NewStruct(fields map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(fields)
}
