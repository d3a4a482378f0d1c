package api

import (
	"github.com/starford/ftmemo/internal/history"
	"github.com/starford/ftmemo/internal/memo"
)

// OpenEventRequest reports a freshly opened buffer. The editor glue must send
// it only after its own automatic filetype detection has settled, otherwise
// the host may overwrite the restored value.
type OpenEventRequest struct {
	Path     string `json:"path"`
	Filetype string `json:"filetype"`
}

// OpenEventResponse tells the editor whether to apply a remembered filetype.
type OpenEventResponse struct {
	Restored bool   `json:"restored"`
	Filetype string `json:"filetype,omitempty"`
}

// FiletypeEventRequest reports an observed filetype change. The editor should
// defer sending until the option value is fully committed.
type FiletypeEventRequest struct {
	Path     string `json:"path"`
	Filetype string `json:"filetype"`
}

// FiletypeEventResponse reports the detector's classification.
type FiletypeEventResponse struct {
	Manual bool `json:"manual"`
}

// MappingItem is one mapping entry (aliased from the domain layer).
type MappingItem = memo.Item

// MappingListResponse wraps the mapping snapshot.
type MappingListResponse struct {
	Mappings []MappingItem `json:"mappings"`
	Total    int           `json:"total"`
}

// ClearResponse instructs the editor to reset the buffer's filetype to empty.
type ClearResponse struct {
	Reset bool `json:"reset"`
}

// CleanupResponse reports how many stale entries were removed.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// HistoryResponse wraps change-log entries, newest first.
type HistoryResponse struct {
	Changes []history.Entry `json:"changes"`
}
