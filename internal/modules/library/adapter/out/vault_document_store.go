package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"readingroom/internal/modules/library/domain"
	libraryout "readingroom/internal/modules/library/port/out"
	apperrors "readingroom/internal/platform/errors"
	"readingroom/internal/platform/markdown"
)

// VaultDocumentStore keeps one markdown note per document under
// <data>/documents.
type VaultDocumentStore struct {
	dataDir string
}

func NewVaultDocumentStore(dataDir string) libraryout.DocumentStore {
	return &VaultDocumentStore{dataDir: dataDir}
}

func (s *VaultDocumentStore) Save(_ context.Context, note domain.DocumentNote) (string, error) {
	doc := note.Document
	notePath := doc.NotePath
	if notePath == "" {
		notePath = filepath.Join(s.dataDir, "documents", doc.Slug+".md")
	}
	if err := os.MkdirAll(filepath.Dir(notePath), 0o755); err != nil {
		return "", fmt.Errorf("create documents directory: %w", err)
	}

	body := note.Body
	if existing, err := os.ReadFile(notePath); err == nil {
		existingMeta, existingBody, splitErr := markdown.SplitFrontmatter(string(existing))
		if splitErr == nil && asString(existingMeta["id"]) != doc.ID {
			return "", fmt.Errorf("%w: note %s belongs to another document", apperrors.ErrInvalidInput, notePath)
		}
		if splitErr == nil && strings.TrimSpace(body) == "" {
			body = existingBody
		}
	}
	if strings.TrimSpace(body) == "" {
		body = "## Notes\n\n## Quotes\n\n## Discussion\n"
	}
	body = markdown.ReplaceManagedBlock(body, domain.ManagedProgressStart, domain.ManagedProgressEnd, doc.ProgressBlock())

	rendered, err := markdown.RenderFrontmatter(toFrontmatter(doc), body)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(notePath, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write document note: %w", err)
	}
	return notePath, nil
}

func (s *VaultDocumentStore) FindByID(ctx context.Context, id string) (domain.DocumentNote, error) {
	notes, err := s.List(ctx)
	if err != nil {
		return domain.DocumentNote{}, err
	}
	for _, note := range notes {
		if note.Document.ID == id {
			return note, nil
		}
	}
	return domain.DocumentNote{}, fmt.Errorf("document %s: %w", id, apperrors.ErrNotFound)
}

func (s *VaultDocumentStore) List(_ context.Context) ([]domain.DocumentNote, error) {
	matches, err := filepath.Glob(filepath.Join(s.dataDir, "documents", "*.md"))
	if err != nil {
		return nil, fmt.Errorf("glob document notes: %w", err)
	}
	sort.Strings(matches)

	out := make([]domain.DocumentNote, 0, len(matches))
	for _, path := range matches {
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read %s: %w", path, readErr)
		}
		meta, body, splitErr := markdown.SplitFrontmatter(string(content))
		if splitErr != nil {
			return nil, fmt.Errorf("parse %s: %w", path, splitErr)
		}
		doc, convErr := fromFrontmatter(meta, path)
		if convErr != nil {
			return nil, fmt.Errorf("decode document %s: %w", path, convErr)
		}
		out = append(out, domain.DocumentNote{Document: doc, Body: body})
	}
	return out, nil
}

func toFrontmatter(doc domain.Document) map[string]any {
	meta := map[string]any{
		"schema_version":   domain.SchemaVersion,
		"id":               doc.ID,
		"kind":             string(doc.Kind),
		"title":            doc.Title,
		"authors":          doc.Authors,
		"url":              doc.URL,
		"file_path":        doc.FilePath,
		"tags":             doc.Tags,
		"user_book_id":     doc.UserBookID,
		"status":           doc.Status,
		"progress_percent": doc.ProgressPct,
		"added_at":         doc.AddedAt.Format(time.RFC3339),
		"updated_at":       doc.UpdatedAt.Format(time.RFC3339),
	}
	if !doc.FinishedAt.IsZero() {
		meta["finished_at"] = doc.FinishedAt.Format(time.RFC3339)
	}
	return meta
}

func fromFrontmatter(meta map[string]any, notePath string) (domain.Document, error) {
	doc := domain.Document{
		ID:          asString(meta["id"]),
		Kind:        domain.DocumentKind(asString(meta["kind"])),
		Title:       asString(meta["title"]),
		Authors:     asStringSlice(meta["authors"]),
		URL:         asString(meta["url"]),
		FilePath:    asString(meta["file_path"]),
		NotePath:    notePath,
		Tags:        asStringSlice(meta["tags"]),
		UserBookID:  int(asFloat(meta["user_book_id"])),
		Status:      asString(meta["status"]),
		ProgressPct: asFloat(meta["progress_percent"]),
	}
	doc.Slug = strings.TrimSuffix(filepath.Base(notePath), filepath.Ext(notePath))
	doc.AddedAt, _ = time.Parse(time.RFC3339, asString(meta["added_at"]))
	doc.UpdatedAt, _ = time.Parse(time.RFC3339, asString(meta["updated_at"]))
	doc.FinishedAt, _ = time.Parse(time.RFC3339, asString(meta["finished_at"]))
	if err := doc.Validate(); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	default:
		return fmt.Sprint(v)
	}
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float64:
		return x
	case string:
		var out float64
		_, _ = fmt.Sscanf(x, "%f", &out)
		return out
	default:
		return 0
	}
}

func asStringSlice(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	default:
		return nil
	}
}
