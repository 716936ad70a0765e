package streampager

import (
	"encoding/base64"
	"fmt"
	"strconv"
)

var _encoder = base64.RawURLEncoding

// OffsetCursor is the position of a LIMIT/OFFSET pagination session: the
// offset of the next fetch. It is owned by one session and can be exported
// as an opaque token to resume a later one.
type OffsetCursor struct {
	offset int
}

func NewOffsetCursor(offset int) *OffsetCursor {
	return &OffsetCursor{
		offset: offset,
	}
}

// DecodeOffsetCursor attempts to parse a base64-encoded token into *OffsetCursor.
// An empty token is the start of the dataset.
func DecodeOffsetCursor(b64String string) (*OffsetCursor, error) {
	if len(b64String) == 0 {
		return nil, nil
	}

	offsetBytes, err := _encoder.DecodeString(b64String)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode base64 encoded offset cursor: %w", ErrInvalidArgument, err)
	}

	offset, err := strconv.Atoi(string(offsetBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode offset cursor value: %w", ErrInvalidArgument, err)
	}

	if offset < 0 {
		return nil, fmt.Errorf("%w: negative offset cursor value %d", ErrInvalidArgument, offset)
	}

	return &OffsetCursor{
		offset: offset,
	}, nil
}

// String - implements fmt.Stringer. Returns the resume token.
func (p *OffsetCursor) String() string {
	if p.IsEmpty() {
		return ""
	}

	return _encoder.EncodeToString([]byte(strconv.Itoa(p.offset)))
}

// IsEmpty reports whether the cursor points at the start of the dataset.
func (p *OffsetCursor) IsEmpty() bool {
	return p == nil || p.offset == 0
}

// GetOffset returns the numeric offset value.
func (p *OffsetCursor) GetOffset() int {
	if p != nil {
		return p.offset
	}

	return 0
}

// WithOffset sets the numeric offset value and returns the cursor.
func (p *OffsetCursor) WithOffset(offset int) *OffsetCursor {
	if p == nil {
		p = new(OffsetCursor)
	}

	p.offset = offset

	return p
}

// advance returns the cursor of the fetch following a fetch of size rows.
func (p *OffsetCursor) advance(size int) *OffsetCursor {
	return NewOffsetCursor(p.GetOffset() + size)
}

var _ fmt.Stringer = (*OffsetCursor)(nil)
