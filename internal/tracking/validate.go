package tracking

// Registration and event field limits. All maxima are inclusive.
const (
	MaxProductIDLen   = 64
	MaxNameLen        = 128
	MaxOriginLen      = 128
	MaxCategoryLen    = 64
	MaxDescriptionLen = 512
	MaxTags           = 20
	MaxTagLen         = 64
	MaxCertifications = 50
	MaxMediaHashes    = 50
	MaxCustomFields   = 20
	MaxCustomValueLen = 256

	MaxEventTypeLen     = 32
	MaxMetadataFields   = 20
	MaxMetadataValueLen = 256

	hashLen = 64 // hex-encoded 32-byte digest
)

func validateConfig(cfg ProductConfig) error {
	if !validProductID(cfg.ID) {
		return ErrInvalidProductID
	}
	if len(cfg.ID) > MaxProductIDLen {
		return ErrProductIDTooLong
	}
	if cfg.Name == "" {
		return ErrNameRequired
	}
	if len(cfg.Name) > MaxNameLen {
		return ErrNameTooLong
	}
	if cfg.OriginLocation == "" {
		return ErrOriginRequired
	}
	if len(cfg.OriginLocation) > MaxOriginLen {
		return ErrOriginTooLong
	}
	if cfg.Category == "" {
		return ErrCategoryRequired
	}
	if len(cfg.Category) > MaxCategoryLen {
		return ErrCategoryTooLong
	}
	if len(cfg.Description) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if len(cfg.Tags) > MaxTags {
		return ErrTooManyTags
	}
	for _, tag := range cfg.Tags {
		if len(tag) > MaxTagLen {
			return ErrTagTooLong
		}
	}
	if len(cfg.Certifications) > MaxCertifications {
		return ErrTooManyCertifications
	}
	for _, h := range cfg.Certifications {
		if !validHash(h) {
			return ErrInvalidHash
		}
	}
	if len(cfg.MediaHashes) > MaxMediaHashes {
		return ErrTooManyMediaHashes
	}
	for _, h := range cfg.MediaHashes {
		if !validHash(h) {
			return ErrInvalidHash
		}
	}
	if len(cfg.Custom) > MaxCustomFields {
		return ErrTooManyCustomFields
	}
	for _, v := range cfg.Custom {
		if len(v) > MaxCustomValueLen {
			return ErrCustomValueTooLong
		}
	}
	return nil
}

func validateEventInput(in EventInput) error {
	if !validEventType(in.EventType) {
		return ErrInvalidEventType
	}
	if !validHash(in.DataHash) {
		return ErrInvalidHash
	}
	if len(in.Metadata) > MaxMetadataFields {
		return ErrTooManyMetadataFields
	}
	for _, v := range in.Metadata {
		if len(v) > MaxMetadataValueLen {
			return ErrMetadataValueTooLong
		}
	}
	return nil
}

// validProductID accepts non-empty ids made of letters, digits and the
// separators '-', '_', '.' and ':'. Slashes are excluded on purpose so that
// composite storage keys stay unambiguous.
func validProductID(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == ':':
		default:
			return false
		}
	}
	return true
}

// validEventType accepts short symbol-like tags: letters, digits and
// underscores, at most MaxEventTypeLen characters.
func validEventType(t string) bool {
	if t == "" || len(t) > MaxEventTypeLen {
		return false
	}
	for i := 0; i < len(t); i++ {
		c := t[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}

func validHash(h string) bool {
	if len(h) != hashLen {
		return false
	}
	for i := 0; i < len(h); i++ {
		c := h[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
