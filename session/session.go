// Package session implements the host-facing generation API: load a GGUF
// model, tokenize, run the sampler chain, and stream or return generated
// text, collapsing internal errors into a small status surface suitable for
// a C-callable shim.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/mrcloudchase/inference-runtime/compute"
	"github.com/mrcloudchase/inference-runtime/gguf"
	"github.com/mrcloudchase/inference-runtime/model"
	"github.com/mrcloudchase/inference-runtime/sampler"
	"github.com/mrcloudchase/inference-runtime/tokenizer"
)

// Status is the small result code the FFI boundary collapses every error
// into, alongside the session's last-error string.
type Status int

const (
	Ok Status = iota
	InvalidArgument
	ModelLoad
	Generate
	OutOfMemory
	Internal
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "Ok"
	case InvalidArgument:
		return "InvalidArgument"
	case ModelLoad:
		return "ModelLoad"
	case Generate:
		return "Generate"
	case OutOfMemory:
		return "OutOfMemory"
	case Internal:
		return "Internal"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Params configures one generation call.
type Params struct {
	MaxTokens         uint32
	Temperature       float32
	TopK              uint32
	TopP              float32
	RepetitionPenalty float32
	RepetitionWindow  int
	Seed              *uint64
}

// Stats reports counters from the most recent generation call.
type Stats struct {
	PromptTokens    int
	GeneratedTokens int
}

// Session owns one loaded model, its tokenizer, and the last-error slot the
// FFI surface reads from. Concurrent generation calls on the same Session
// are forbidden; the caller must serialize them.
type Session struct {
	mu sync.Mutex

	model   *model.Model
	tok     *tokenizer.Tokenizer
	backend compute.Backend
	file    *gguf.File

	lastErr string
	stats   Stats
}

// New creates an empty session with no model loaded.
func New() *Session {
	return &Session{backend: compute.NewCPU()}
}

// The LLaMA hyperparameter keys are read and validated by model.NewConfig;
// the tokenizer keys below are read directly here.
const (
	keyTokens = "tokenizer.ggml.tokens"
	keyScores = "tokenizer.ggml.scores"
	keyMerges = "tokenizer.ggml.merges"
	keyBOSID  = "tokenizer.ggml.bos_token_id"
	keyEOSID  = "tokenizer.ggml.eos_token_id"
)

// Load parses the GGUF file at path, derives the LLaMA config, builds the
// tokenizer, and wires a fresh KV cache. Once the new model is built, any
// prior model held by the session is released; if loading fails, the prior
// model stays loaded.
func (s *Session) Load(path string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := gguf.ParseFileCached(path)
	if err != nil {
		return s.fail(ModelLoad, err)
	}

	m, tok, err := buildModelAndTokenizer(f, s.backend)
	if err != nil {
		_ = f.Close()
		return s.fail(ModelLoad, err)
	}

	if s.file != nil {
		_ = s.file.Close()
	}
	s.file = f
	s.model = m
	s.tok = tok
	return s.ok()
}

func buildModelAndTokenizer(f *gguf.File, backend compute.Backend) (*model.Model, *tokenizer.Tokenizer, error) {
	tokensArr, err := f.Header.MetadataKV.GetArray(keyTokens)
	if err != nil {
		return nil, nil, err
	}
	tokens := make([]string, len(tokensArr.Items))
	for i, it := range tokensArr.Items {
		tokens[i] = it.(string)
	}

	scoresArr, err := f.Header.MetadataKV.GetArray(keyScores)
	if err != nil {
		return nil, nil, err
	}
	scores := make([]float32, len(scoresArr.Items))
	for i, it := range scoresArr.Items {
		v, ok := it.(float32)
		if !ok {
			return nil, nil, &gguf.TypeMismatchError{Key: keyScores, Want: gguf.TypeFloat32, Got: scoresArr.ElemType}
		}
		scores[i] = v
	}

	bosID, err := gguf.GetNumeric[uint32](f.Header.MetadataKV, keyBOSID)
	if err != nil {
		return nil, nil, err
	}
	eosID, err := gguf.GetNumeric[uint32](f.Header.MetadataKV, keyEOSID)
	if err != nil {
		return nil, nil, err
	}

	vocab, err := tokenizer.NewVocabulary(tokens, scores, bosID, eosID)
	if err != nil {
		return nil, nil, err
	}

	var mergeEntries []string
	if arr, err := f.Header.MetadataKV.GetArray(keyMerges); err == nil {
		mergeEntries = make([]string, len(arr.Items))
		for i, it := range arr.Items {
			mergeEntries[i] = it.(string)
		}
	}
	merges, err := tokenizer.NewMerges(mergeEntries)
	if err != nil {
		return nil, nil, err
	}

	tok := tokenizer.New(vocab, merges)

	m, err := model.Load(f, vocab.Size(), backend)
	if err != nil {
		return nil, nil, err
	}

	return m, tok, nil
}

// Reset returns the model's KV cache to its freshly-loaded state.
func (s *Session) Reset() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil {
		return s.fail(InvalidArgument, fmt.Errorf("session: no model loaded"))
	}
	s.model.Reset()
	return s.ok()
}

// Close releases the model, tokenizer, and GGUF mmap. A Session with no
// model loaded is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.model = nil
	s.tok = nil
	return err
}

// LastError returns the most recent failure message and clears it.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lastErr
	s.lastErr = ""
	return e
}

// Stats returns the counters from the most recent generation call.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) fail(st Status, err error) Status {
	s.lastErr = err.Error()
	return st
}

func (s *Session) ok() Status {
	s.lastErr = ""
	return Ok
}

// Generate runs the prompt to completion (bounded by params.MaxTokens or an
// emitted EOS token) and returns the decoded continuation text.
func (s *Session) Generate(ctx context.Context, prompt string, params Params) (string, Status) {
	var out []byte
	status := s.generate(ctx, prompt, params, func(piece string) bool {
		out = append(out, piece...)
		return true
	})
	return string(out), status
}

// GenerateStreaming runs the prompt, invoking onToken with each newly
// decoded piece as it is produced. Returning false from onToken stops
// generation cleanly at the next loop boundary; the call still returns Ok.
func (s *Session) GenerateStreaming(ctx context.Context, prompt string, params Params, onToken func(piece string) bool) Status {
	return s.generate(ctx, prompt, params, onToken)
}

func (s *Session) generate(ctx context.Context, prompt string, params Params, onToken func(string) bool) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil || s.tok == nil {
		return s.fail(InvalidArgument, fmt.Errorf("session: no model loaded"))
	}

	promptIDs := s.tok.Encode(prompt)
	s.stats = Stats{PromptTokens: len(promptIDs)}

	chain := sampler.NewChainFromParams(sampler.Params{
		RepetitionPenaltyP: params.RepetitionPenalty,
		RepetitionWindow:   params.RepetitionWindow,
		Temperature:        params.Temperature,
		TopK:               int(params.TopK),
		TopP:               params.TopP,
		Seed:               params.Seed,
	})

	pos := 0
	logits, err := s.model.Forward(promptIDs, pos)
	if err != nil {
		return s.fail(Generate, err)
	}
	pos += len(promptIDs)

	eosID := s.tok.Vocab.EOSID

	for i := uint32(0); i < params.MaxTokens; i++ {
		select {
		case <-ctx.Done():
			return s.ok()
		default:
		}

		next := chain.Select(logits)
		chain.Push(next)
		s.stats.GeneratedTokens++

		if next == eosID {
			break
		}

		piece := s.tok.Decode([]uint32{next})
		if !onToken(piece) {
			return s.ok()
		}

		logits, err = s.model.Forward([]uint32{next}, pos)
		if err != nil {
			return s.fail(Generate, err)
		}
		pos++
	}

	return s.ok()
}
