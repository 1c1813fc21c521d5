package ws

import (
	"crypto/sha256"
	"fmt"

	"github.com/livevisitors/backend/internal/config"
	"github.com/livevisitors/backend/internal/stream"
)

// PrivacyFilter masks session details before /api/status serves them. The
// zero value is a no-op filter.
type PrivacyFilter struct {
	MaskSessionIDs   bool
	HiddenTransports []string
}

func NewPrivacyFilter(cfg config.PrivacyConfig) *PrivacyFilter {
	return &PrivacyFilter{
		MaskSessionIDs:   cfg.MaskSessionIDs,
		HiddenTransports: cfg.HiddenTransports,
	}
}

// IsAllowed reports whether sessions on the given transport are listed.
func (f *PrivacyFilter) IsAllowed(transport string) bool {
	for _, hidden := range f.HiddenTransports {
		if hidden == transport {
			return false
		}
	}
	return true
}

// Apply returns a copy of info with sensitive fields masked.
func (f *PrivacyFilter) Apply(info stream.Info) stream.Info {
	if f.MaskSessionIDs && info.ID != "" {
		info.ID = shortHash(info.ID)
	}
	return info
}

// FilterSlice returns a new slice containing only the allowed sessions,
// with masking applied to each. The original slice is not modified.
func (f *PrivacyFilter) FilterSlice(infos []stream.Info) []stream.Info {
	result := make([]stream.Info, 0, len(infos))
	for _, info := range infos {
		if !f.IsAllowed(info.Transport) {
			continue
		}
		result = append(result, f.Apply(info))
	}
	return result
}

// IsNoop reports whether the filter does nothing.
func (f *PrivacyFilter) IsNoop() bool {
	return !f.MaskSessionIDs && len(f.HiddenTransports) == 0
}

// shortHash returns a truncated SHA-256 hex digest for an opaque identifier.
func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:6])
}
