package envelope

import "fmt"

// Variant is the closed set of entry kinds a feed may contain.
type Variant uint8

const (
	variantInvalid Variant = iota
	Chat
	Status
	Microblog
)

// Wire tags. Chat encodes as "message"; external readers depend on it.
const (
	TagChat      = "message"
	TagStatus    = "status"
	TagMicroblog = "microblog"
)

// Variants lists every defined variant in declaration order.
func Variants() []Variant {
	return []Variant{Chat, Status, Microblog}
}

// Tag returns the wire tag for v.
func (v Variant) Tag() (string, error) {
	switch v {
	case Chat:
		return TagChat, nil
	case Status:
		return TagStatus, nil
	case Microblog:
		return TagMicroblog, nil
	default:
		return "", fmt.Errorf("%w: variant %d", ErrUnrepresentable, uint8(v))
	}
}

func (v Variant) String() string {
	switch v {
	case Chat:
		return "Chat"
	case Status:
		return "Status"
	case Microblog:
		return "Microblog"
	default:
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
}

// ParseVariant maps a wire tag back to its Variant. Tags are case sensitive.
func ParseVariant(tag string) (Variant, error) {
	switch tag {
	case TagChat:
		return Chat, nil
	case TagStatus:
		return Status, nil
	case TagMicroblog:
		return Microblog, nil
	default:
		return variantInvalid, fmt.Errorf("%w: %q", ErrUnknownVariant, tag)
	}
}

func (v Variant) MarshalText() ([]byte, error) {
	tag, err := v.Tag()
	if err != nil {
		return nil, err
	}
	return []byte(tag), nil
}

func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
