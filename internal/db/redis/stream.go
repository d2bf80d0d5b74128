package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/kailas-cloud/kbroute/internal/db"
)

// XAdd appends an entry to a stream with approximate MAXLEN trimming and returns its id.
func (s *Store) XAdd(ctx context.Context, stream string, maxLen int64, fields []string) (string, error) {
	if stream == "" {
		return "", errors.New("stream name is required")
	}
	if len(fields) == 0 || len(fields)%2 != 0 {
		return "", errors.New("fields must be non-empty name/value pairs")
	}

	args := make([]string, 0, len(fields)+4)
	if maxLen > 0 {
		args = append(args, "MAXLEN", "~", strconv.FormatInt(maxLen, 10))
	}
	args = append(args, "*")
	args = append(args, fields...)

	cmd := s.b().Arbitrary("XADD").Keys(stream).Args(args...).Build()
	id, err := s.do(ctx, cmd).ToString()
	if err != nil {
		return "", &db.Error{Op: db.OpXAdd, Err: err}
	}
	return id, nil
}
