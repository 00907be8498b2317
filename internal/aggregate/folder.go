package aggregate

import (
	"context"
	"sort"
	"strings"

	"github.com/folder-mcp/folder-mcp/internal/store"
)

const maxPreviewTopics = 10

// TermCount is a topic with its raw document frequency. Previews use
// counts rather than merged scores so "8 of 12 documents mention
// budget" reads directly.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// PreviewQuality summarizes semantic quality across a folder's
// successfully indexed documents.
type PreviewQuality struct {
	// PhraseDiversity is the mean phrase richness of the folder's
	// documents.
	PhraseDiversity float64 `json:"phrase_diversity"`
	// TopicSpecificity is the mean topic specificity of the folder's
	// documents.
	TopicSpecificity float64 `json:"topic_specificity"`
}

// Preview summarizes the direct children of one folder. It is computed
// fresh on every call; document summaries in sqlite are the only
// persisted aggregate.
type Preview struct {
	Path           string         `json:"path"`
	DocumentCount  int            `json:"document_count"`
	IndexedCount   int            `json:"indexed_count"`
	FailedCount    int            `json:"failed_count"`
	TopTopics      []TermCount    `json:"top_topics"`
	AvgReadability float64        `json:"avg_readability"`
	Quality        PreviewQuality `json:"quality"`
	Subfolders     []string       `json:"subfolders"`
}

// Folder builds the preview for the folder at prefix ("" for the
// root). Only direct children count; failed and failed_quality
// documents are excluded from topic frequencies but counted as failed.
func Folder(ctx context.Context, sql *store.SQLiteStore, prefix string) (*Preview, error) {
	docs, err := sql.ListDocuments(ctx, prefix, true)
	if err != nil {
		return nil, err
	}
	subs, err := sql.Subfolders(ctx, prefix)
	if err != nil {
		return nil, err
	}

	clean := strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/")
	if clean == "." {
		clean = ""
	}
	p := &Preview{Path: clean, Subfolders: subs}
	counts := make(map[string]int)
	display := make(map[string]string)
	first := make(map[string]int)
	seq := 0

	var sumReadability, sumRichness, sumSpecificity float64
	summarized := 0

	for _, doc := range docs {
		p.DocumentCount++
		if doc.Status != store.StatusOK {
			p.FailedCount++
			continue
		}
		p.IndexedCount++
		if doc.Summary == nil {
			continue
		}
		summarized++
		sumReadability += doc.Summary.AvgReadability
		sumRichness += doc.Summary.PhraseRichness
		sumSpecificity += TopicSpecificity(doc.Summary.TopicDiversity, len(doc.Summary.TopTopics))
		for _, t := range doc.Summary.TopTopics {
			key := strings.ToLower(t.Term)
			counts[key]++
			if _, ok := display[key]; !ok {
				display[key] = t.Term
				first[key] = seq
			}
			seq++
		}
	}

	if summarized > 0 {
		n := float64(summarized)
		p.AvgReadability = sumReadability / n
		p.Quality = PreviewQuality{
			PhraseDiversity:  sumRichness / n,
			TopicSpecificity: sumSpecificity / n,
		}
	}

	p.TopTopics = rankCounts(counts, display, first, maxPreviewTopics)
	return p, nil
}

// rankCounts orders topics by frequency; ties break by earlier
// appearance across the document walk.
func rankCounts(counts map[string]int, display map[string]string, first map[string]int, limit int) []TermCount {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return first[keys[i]] < first[keys[j]]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]TermCount, 0, len(keys))
	for _, key := range keys {
		out = append(out, TermCount{Term: display[key], Count: counts[key]})
	}
	return out
}
