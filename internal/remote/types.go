// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package remote

import (
	"encoding/json"
	"fmt"
	"time"
)

// FileEntry is a file as returned by a folder listing.
type FileEntry struct {
	FileID       string `json:"file_id"`
	FileName     string `json:"file_name"`
	BusID        int    `json:"busid"`
	Size         int64  `json:"size"`
	UploadTime   int64  `json:"upload_time"`
	ModifyTime   int64  `json:"modify_time"`
	Uploader     int64  `json:"uploader"`
	UploaderName string `json:"uploader_name"`
}

// ModifiedAt returns the modification time, falling back to the upload time.
// The zero time means the store did not report either.
func (f FileEntry) ModifiedAt() time.Time {
	ts := f.ModifyTime
	if ts == 0 {
		ts = f.UploadTime
	}
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

// FolderEntry is a sub folder as returned by a folder listing.
type FolderEntry struct {
	FolderID       string `json:"folder_id"`
	FolderName     string `json:"folder_name"`
	TotalFileCount int    `json:"total_file_count"`
}

// Listing is the content of one folder.
type Listing struct {
	Files   []FileEntry   `json:"files"`
	Folders []FolderEntry `json:"folders"`
}

// Quota is the usage summary of a scope's file store.
type Quota struct {
	FileCount  int   `json:"file_count"`
	LimitCount int   `json:"limit_count"`
	UsedSpace  int64 `json:"used_space"`
	TotalSpace int64 `json:"total_space"`
}

// DeleteStatus is the innermost status object of a delete response.
type DeleteStatus struct {
	RetCode       *int   `json:"retCode"`
	RetMsg        string `json:"retMsg"`
	ClientWording string `json:"clientWording"`
}

// DeleteTrans wraps the status object one level up.
type DeleteTrans struct {
	Result *DeleteStatus `json:"result"`
}

// DeleteResult is the decoded response of a delete call. Depending on the
// implementation the status is nested under transGroupFileResult or transResult.
type DeleteResult struct {
	TransGroupFileResult *DeleteTrans `json:"transGroupFileResult"`
	TransResult          *DeleteTrans `json:"transResult"`
}

// NewDeleteResult builds a response carrying the given status code.
func NewDeleteResult(retCode int) *DeleteResult {
	return &DeleteResult{
		TransGroupFileResult: &DeleteTrans{Result: &DeleteStatus{RetCode: &retCode}},
	}
}

// DecodeDeleteResult decodes a raw delete response. An empty or non-object body is
// reported as ErrUnexpectedResponse.
func DecodeDeleteResult(raw []byte) (*DeleteResult, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: empty delete response", ErrUnexpectedResponse)
	}
	var res DeleteResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return &res, nil
}

func (r *DeleteResult) status() *DeleteStatus {
	if r == nil {
		return nil
	}
	for _, t := range []*DeleteTrans{r.TransGroupFileResult, r.TransResult} {
		if t != nil && t.Result != nil {
			return t.Result
		}
	}
	return nil
}

// RetCode returns the nested status code and whether it was present at all.
func (r *DeleteResult) RetCode() (int, bool) {
	st := r.status()
	if st == nil || st.RetCode == nil {
		return 0, false
	}
	return *st.RetCode, true
}

// Succeeded reports an explicitly affirmative status. Any other shape is a failure.
func (r *DeleteResult) Succeeded() bool {
	code, ok := r.RetCode()
	return ok && code == 0
}

// Reason describes why a delete did not succeed.
func (r *DeleteResult) Reason() string {
	st := r.status()
	switch {
	case st == nil:
		return "response missing delete status"
	case st.RetCode == nil:
		return "response missing retCode"
	case st.ClientWording != "":
		return fmt.Sprintf("retCode %d: %s", *st.RetCode, st.ClientWording)
	case st.RetMsg != "":
		return fmt.Sprintf("retCode %d: %s", *st.RetCode, st.RetMsg)
	default:
		return fmt.Sprintf("retCode %d", *st.RetCode)
	}
}
