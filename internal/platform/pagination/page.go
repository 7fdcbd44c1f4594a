// Package pagination normalizes page-size and page-token inputs for list APIs.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// PageSizeConfig configures page size normalization.
type PageSizeConfig struct {
	Default int
	Max     int
}

// ClampPageSize applies defaults and limits for page sizes.
func ClampPageSize(value int, cfg PageSizeConfig) int {
	pageSize := value
	if pageSize <= 0 {
		pageSize = cfg.Default
	}
	if cfg.Max > 0 && pageSize > cfg.Max {
		pageSize = cfg.Max
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	return pageSize
}

// EncodeIDToken renders a keyset cursor for an integer primary key.
func EncodeIDToken(id int64) string {
	if id <= 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeIDToken parses a cursor produced by EncodeIDToken. An empty token
// decodes to zero, meaning "from the start".
func DecodeIDToken(token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("invalid page token")
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid page token")
	}
	return id, nil
}
