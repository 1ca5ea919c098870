// Package kb holds the static exact-match question/answer store.
package kb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Entry is one question/answer pair as stored on disk.
type Entry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// KnowledgeBase answers questions by exact, case-sensitive match against a
// fixed set loaded once at startup. It is immutable after Load, so lookups
// are safe for concurrent use.
type KnowledgeBase struct {
	answers map[string]string
}

// Load reads the question/answer JSON file at path and builds the store.
func Load(path string) (*KnowledgeBase, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("knowledge base path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}

	return Parse(raw)
}

// Parse builds the store from raw JSON. Duplicate questions keep the last
// answer seen, matching plain map insertion.
func Parse(raw []byte) (*KnowledgeBase, error) {
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}

	answers := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.Question == "" {
			continue
		}
		answers[entry.Question] = entry.Answer
	}

	return &KnowledgeBase{answers: answers}, nil
}

// Lookup returns the canned answer for the literal question text. No
// normalization is applied; a miss means the generator must be consulted.
func (k *KnowledgeBase) Lookup(question string) (string, bool) {
	if k == nil {
		return "", false
	}

	answer, ok := k.answers[question]
	return answer, ok
}

// Uncovered returns the subset of questions that have no canned answer, in
// input order. Used at startup to flag predefined menu questions the store
// does not cover.
func (k *KnowledgeBase) Uncovered(questions []string) []string {
	var missing []string
	for _, question := range questions {
		if _, ok := k.Lookup(question); !ok {
			missing = append(missing, question)
		}
	}

	return missing
}

// Len reports the number of loaded entries.
func (k *KnowledgeBase) Len() int {
	if k == nil {
		return 0
	}

	return len(k.answers)
}
