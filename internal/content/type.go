package content

import (
	"fmt"
	"strings"
)

// ContentType tags a transfer with the kind of content being exchanged.
// The set is closed; the numeric codes are stable on the wire.
type ContentType uint8

const (
	TypeUnknown ContentType = iota
	TypeDocuments
	TypePictures
	TypeMusic
	TypeContacts
	TypeVideos
	TypeLinks
)

func (t ContentType) String() string {
	switch t {
	case TypeDocuments:
		return "documents"
	case TypePictures:
		return "pictures"
	case TypeMusic:
		return "music"
	case TypeContacts:
		return "contacts"
	case TypeVideos:
		return "videos"
	case TypeLinks:
		return "links"
	default:
		return "unknown"
	}
}

// KnownTypes lists every content type an application may register for.
func KnownTypes() []ContentType {
	return []ContentType{
		TypeDocuments,
		TypePictures,
		TypeMusic,
		TypeContacts,
		TypeVideos,
		TypeLinks,
	}
}

// ParseContentType maps a type name back to its tag.
func ParseContentType(s string) (ContentType, error) {
	for _, t := range KnownTypes() {
		if t.String() == strings.ToLower(s) {
			return t, nil
		}
	}
	return TypeUnknown, fmt.Errorf("unknown content type: %q", s)
}
