// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package filescan

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/groupfs/internal/models"
	"github.com/autobrr/groupfs/internal/remote"
	"github.com/autobrr/groupfs/pkg/stringutils"
)

const rootFolderName = "/"

// FileRecord is one file found by the crawler. Records are never modified.
type FileRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	FolderID   string    `json:"folderId"`
	FolderName string    `json:"folderName"`
	FolderPath string    `json:"folderPath"`
	SizeBytes  int64     `json:"sizeBytes"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Uploader   string    `json:"uploader"`
}

// Summary returns the report view of the record.
func (r FileRecord) Summary() models.FileSummary {
	return models.FileSummary{
		ID:         r.ID,
		Name:       r.Name,
		Folder:     r.FolderName,
		ModifiedAt: r.ModifiedAt,
		SizeBytes:  r.SizeBytes,
	}
}

// Inventory is the flat result of one crawl, owned by a single run.
type Inventory struct {
	Scope   remote.Scope
	Records []FileRecord

	// SkippedFolders lists folders whose listing failed; their subtrees are missing.
	SkippedFolders []models.FolderFailure
	// DroppedEntries counts file and folder entries without an id.
	DroppedEntries int
}

// Len returns the number of records.
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.Records)
}

// Index maps record ids to records.
func (inv *Inventory) Index() map[string]FileRecord {
	idx := make(map[string]FileRecord, inv.Len())
	if inv == nil {
		return idx
	}
	for _, rec := range inv.Records {
		idx[rec.ID] = rec
	}
	return idx
}

type folderNode struct {
	id   string
	name string
	path string
}

// Crawl lists the scope breadth first from the root and returns every file
// reachable exactly once. Folders already visited are not listed again, so a
// cyclic folder graph still terminates. A failed folder is recorded and its
// subtree skipped; only fatal errors abort the crawl.
func Crawl(ctx context.Context, client remote.Client, scope remote.Scope, pageSize int) (*Inventory, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = DefaultOptions().PageSize
	}

	inv := &Inventory{Scope: scope}
	queue := []folderNode{{name: rootFolderName, path: rootFolderName}}
	visited := map[string]struct{}{"": {}}
	seenFiles := make(map[string]struct{})

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node := queue[0]
		queue = queue[1:]

		listing, err := listNode(ctx, client, scope, node, pageSize)
		if err != nil {
			if Classify(err) == ClassFatal || ctx.Err() != nil {
				return nil, fmt.Errorf("list folder %q: %w", node.path, err)
			}
			log.Warn().Err(err).Int64("scope", int64(scope)).Str("folder", node.path).
				Msg("filescan: skipping folder after listing failure")
			inv.SkippedFolders = append(inv.SkippedFolders, models.FolderFailure{
				FolderID: node.id,
				Path:     node.path,
				Reason:   err.Error(),
			})
			continue
		}

		for _, f := range listing.Files {
			if f.FileID == "" {
				inv.DroppedEntries++
				log.Warn().Int64("scope", int64(scope)).Str("folder", node.path).Str("name", f.FileName).
					Msg("filescan: dropping file entry without id")
				continue
			}
			if _, ok := seenFiles[f.FileID]; ok {
				continue
			}
			seenFiles[f.FileID] = struct{}{}
			inv.Records = append(inv.Records, newRecord(f, node))
		}

		for _, sub := range listing.Folders {
			if sub.FolderID == "" {
				inv.DroppedEntries++
				log.Warn().Int64("scope", int64(scope)).Str("folder", node.path).Str("name", sub.FolderName).
					Msg("filescan: dropping folder entry without id")
				continue
			}
			if _, ok := visited[sub.FolderID]; ok {
				log.Debug().Int64("scope", int64(scope)).Str("folder", sub.FolderID).
					Msg("filescan: folder already visited")
				continue
			}
			visited[sub.FolderID] = struct{}{}
			name := stringutils.InternTrimmed(sub.FolderName)
			if name == "" {
				name = sub.FolderID
			}
			queue = append(queue, folderNode{
				id:   sub.FolderID,
				name: name,
				path: path.Join(node.path, name),
			})
		}
	}

	log.Debug().Int64("scope", int64(scope)).Int("files", len(inv.Records)).
		Int("skippedFolders", len(inv.SkippedFolders)).Msg("filescan: crawl complete")
	return inv, nil
}

func listNode(ctx context.Context, client remote.Client, scope remote.Scope, node folderNode, pageSize int) (*remote.Listing, error) {
	if node.id == "" {
		return client.ListRoot(ctx, scope, pageSize)
	}
	return client.ListFolder(ctx, scope, node.id, pageSize)
}

func newRecord(f remote.FileEntry, node folderNode) FileRecord {
	uploader := stringutils.InternTrimmed(f.UploaderName)
	if uploader == "" && f.Uploader != 0 {
		uploader = strconv.FormatInt(f.Uploader, 10)
	}
	return FileRecord{
		ID:         f.FileID,
		Name:       f.FileName,
		FolderID:   node.id,
		FolderName: node.name,
		FolderPath: node.path,
		SizeBytes:  f.Size,
		ModifiedAt: f.ModifiedAt(),
		Uploader:   uploader,
	}
}
