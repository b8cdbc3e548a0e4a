package embeddings

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

const maxWordChars = 100

// Tokenizer is a BERT-style WordPiece tokenizer driven by a vocab.txt file
// (one token per line, id = line number).
type Tokenizer struct {
	vocab     map[string]int64
	maxLength int
	pad       int64
	unk       int64
	cls       int64
	sep       int64
}

// LoadTokenizer reads a WordPiece vocabulary from path.
func LoadTokenizer(path string, maxLength int) (*Tokenizer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocab: %w", err)
	}
	defer file.Close()

	vocab := make(map[string]int64)
	scanner := bufio.NewScanner(file)
	var id int64
	for scanner.Scan() {
		token := strings.TrimRight(scanner.Text(), "\r")
		if _, dup := vocab[token]; !dup {
			vocab[token] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocab: %w", err)
	}

	return NewTokenizer(vocab, maxLength)
}

// NewTokenizer builds a tokenizer from an in-memory vocabulary. The special
// tokens [PAD], [UNK], [CLS] and [SEP] must be present.
func NewTokenizer(vocab map[string]int64, maxLength int) (*Tokenizer, error) {
	if maxLength < 3 {
		return nil, fmt.Errorf("max length must be at least 3, got %d", maxLength)
	}

	t := &Tokenizer{vocab: vocab, maxLength: maxLength}
	for _, special := range []struct {
		token string
		dst   *int64
	}{
		{"[PAD]", &t.pad},
		{"[UNK]", &t.unk},
		{"[CLS]", &t.cls},
		{"[SEP]", &t.sep},
	} {
		id, ok := vocab[special.token]
		if !ok {
			return nil, fmt.Errorf("vocab is missing %s", special.token)
		}
		*special.dst = id
	}
	return t, nil
}

// Tokenize converts text to padded token IDs
func (t *Tokenizer) Tokenize(text string) (*TokenizedInput, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	ids := []int64{t.cls}
	truncated := false
	for _, word := range basicTokens(text) {
		pieces := t.wordPiece(word)
		if len(ids)+len(pieces) > t.maxLength-1 {
			truncated = true
			break
		}
		ids = append(ids, pieces...)
	}
	ids = append(ids, t.sep)
	length := len(ids)

	input := &TokenizedInput{
		InputIDs:      make([]int64, t.maxLength),
		AttentionMask: make([]int64, t.maxLength),
		TokenTypeIDs:  make([]int64, t.maxLength),
		Length:        length,
		Truncated:     truncated,
	}
	for i := 0; i < t.maxLength; i++ {
		if i < length {
			input.InputIDs[i] = ids[i]
			input.AttentionMask[i] = 1
		} else {
			input.InputIDs[i] = t.pad
		}
	}
	return input, nil
}

// wordPiece splits one word into greedy longest-match subword ids.
func (t *Tokenizer) wordPiece(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []int64{t.unk}
	}

	var pieces []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		found := int64(-1)
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := t.vocab[sub]; ok {
				found = id
				break
			}
			end--
		}
		if found < 0 {
			return []int64{t.unk}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}

// basicTokens lowercases text and splits it on whitespace, keeping each
// punctuation rune as its own token.
func basicTokens(text string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}
