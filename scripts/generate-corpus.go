//go:build ignore

// Command generate-corpus creates a synthetic document folder for
// indexing throughput tests.
// Usage: go run scripts/generate-corpus.go -files 1000 -output testdata/corpus
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of documents to generate")
	outputDir = flag.String("output", "testdata/corpus", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var topics = []string{
	"budget review", "vendor contracts", "hiring plan", "release notes",
	"incident postmortem", "quarterly forecast", "travel policy",
	"security audit", "customer feedback", "capacity planning",
}

var sentences = []string{
	"The %s for this quarter was reviewed by the finance team on Tuesday.",
	"Open questions about the %s remain unresolved pending legal review.",
	"A summary of the %s is attached for the leadership meeting.",
	"The %s shows a notable change compared to the previous period.",
	"Action items from the %s discussion are tracked in the shared sheet.",
	"Several stakeholders raised concerns about the %s timeline.",
	"The appendix breaks the %s down by region and by team.",
	"No further changes to the %s are expected before the deadline.",
}

var subfolders = []string{"", "finance", "operations", "archive", "archive/2025"}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	for _, sub := range subfolders {
		if err := os.MkdirAll(filepath.Join(*outputDir, sub), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
			os.Exit(1)
		}
	}

	for i := 0; i < *numFiles; i++ {
		topic := topics[rng.Intn(len(topics))]
		sub := subfolders[rng.Intn(len(subfolders))]
		name := fmt.Sprintf("%s-%04d.md", strings.ReplaceAll(topic, " ", "-"), i)
		path := filepath.Join(*outputDir, sub, name)

		if err := os.WriteFile(path, []byte(document(rng, topic)), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Printf("generated %d documents under %s\n", *numFiles, *outputDir)
}

// document produces a markdown file with enough distinct prose per
// section to pass chunk quality filtering.
func document(rng *rand.Rand, topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", strings.ToUpper(topic[:1])+topic[1:])

	sections := 2 + rng.Intn(4)
	for s := 0; s < sections; s++ {
		fmt.Fprintf(&b, "## Section %d\n\n", s+1)
		lines := 4 + rng.Intn(6)
		for l := 0; l < lines; l++ {
			fmt.Fprintf(&b, sentences[rng.Intn(len(sentences))], topic)
			b.WriteString(" ")
		}
		b.WriteString("\n\n")
	}
	return b.String()
}
