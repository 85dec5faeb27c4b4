package migrate

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"recmerge/internal/config"
	"recmerge/internal/extract"
	"recmerge/internal/merge"
	"recmerge/internal/source"
)

// Extracted is one legacy record rendered in canonical style.
type Extracted struct {
	Title string
	Text  string
}

// Selection is the result of ExtractByTitle.
type Selection struct {
	Found    []Extracted
	NotFound []string
}

// loadLegacy reads and extracts the legacy source alone.
func (t *Tool) loadLegacy(ctx context.Context, path string) (*side, error) {
	s := &side{name: SideLegacy, path: path}
	if err := t.loadSide(ctx, s, t.cfg.Legacy); err != nil {
		return nil, err
	}
	if s.err != nil {
		return s, &SideError{Side: s.name, Err: s.err}
	}
	return s, nil
}

// canonicalStyle detects the entry style of the canonical document. When
// it cannot be read, the default style is used.
func (t *Tool) canonicalStyle(ctx context.Context, path string) merge.Style {
	text, err := t.loader.Load(ctx, path)
	if err != nil {
		t.log.Debug("canonical unavailable, using default style", zap.String("canonical", path), zap.Error(err))
		return merge.DetectStyle("")
	}
	span, err := extract.FindArray(text, t.cfg.Canonical.Marker)
	if err != nil {
		t.log.Debug("canonical array not found, using default style", zap.String("canonical", path), zap.Error(err))
		return merge.DetectStyle("")
	}
	return merge.DetectStyle(span.Inner(text))
}

// ExtractByTitle returns the legacy records whose title field matches one
// of titles (trimmed, case-insensitive), serialized the way the canonical
// document writes its entries, ready to paste. Titles with no match are
// listed in NotFound. Every matching record is returned, duplicates
// included.
func (t *Tool) ExtractByTitle(ctx context.Context, legacyPath, canonicalPath string, titles []string) (Selection, error) {
	legacy, err := t.loadLegacy(ctx, legacyPath)
	if err != nil {
		return Selection{}, err
	}
	style := t.canonicalStyle(ctx, canonicalPath)

	var sel Selection
	for _, want := range titles {
		want = strings.TrimSpace(want)
		found := false
		for _, r := range legacy.recs {
			title := strings.TrimSpace(r.Value(t.cfg.TitleField))
			if !strings.EqualFold(title, want) {
				continue
			}
			found = true
			sel.Found = append(sel.Found, Extracted{Title: title, Text: merge.Serialize(r, style, t.cfg.FieldOrder)})
		}
		if !found {
			sel.NotFound = append(sel.NotFound, want)
		}
	}
	return sel, nil
}

// ExtractAll writes the legacy records to out for manual review and
// returns how many records it holds.
//
// For js sources the array literal is copied verbatim, marker through
// closing bracket. HTML sources have no literal to copy, so their records
// are serialized into one under the canonical marker.
func (t *Tool) ExtractAll(ctx context.Context, legacyPath, out string) (int, error) {
	legacy, err := t.loadLegacy(ctx, legacyPath)
	if err != nil {
		return 0, err
	}

	var b strings.Builder
	if t.cfg.Legacy.Format == config.FormatHTML {
		style := merge.DetectStyle("")
		b.WriteString(t.cfg.Canonical.Marker)
		b.WriteString("\n")
		for _, r := range legacy.recs {
			b.WriteString("  ")
			b.WriteString(merge.Serialize(r, style, t.cfg.FieldOrder))
			b.WriteString(",\n")
		}
		b.WriteString("];\n")
	} else {
		b.WriteString(legacy.span.Literal(legacy.text))
		b.WriteString(";\n")
	}

	if err := source.WriteFileAtomic(out, []byte(b.String()), 0o644); err != nil {
		return 0, &WriteError{Path: out, Err: err}
	}
	t.log.Info("legacy records extracted", zap.String("out", out), zap.Int("records", len(legacy.recs)))
	return len(legacy.recs), nil
}

// LoadDocument reads a document with the tool's loader, without
// extracting anything.
func (t *Tool) LoadDocument(ctx context.Context, path string) (string, error) {
	return t.loader.Load(ctx, path)
}
