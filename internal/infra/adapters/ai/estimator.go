package ai

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"product-content-ai/internal/domain/ports/adapter"
)

var (
	_ adapter.TokenEstimator = HeuristicEstimator{}
	_ adapter.TokenEstimator = (*TiktokenEstimator)(nil)
)

// HeuristicEstimator assumes roughly three characters per token, which
// overestimates for Latin text.
type HeuristicEstimator struct{}

func (HeuristicEstimator) Estimate(_ string, text string) int {
	return utf8.RuneCountInString(text)/3 + 1
}

// TiktokenEstimator counts with the model's BPE encoding and adds a margin.
// Encodings that cannot be loaded fall back to the heuristic.
type TiktokenEstimator struct {
	log      *zerolog.Logger
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
	failed   map[string]bool
}

func NewTiktokenEstimator(log *zerolog.Logger) *TiktokenEstimator {
	return &TiktokenEstimator{
		log:      log,
		encoders: make(map[string]*tiktoken.Tiktoken),
		failed:   make(map[string]bool),
	}
}

func (e *TiktokenEstimator) Estimate(modelName, text string) int {
	enc := e.encoder(modelName)
	if enc == nil {
		return HeuristicEstimator{}.Estimate(modelName, text)
	}
	n := len(enc.Encode(text, nil, nil))
	return n + n/10 + 8
}

func (e *TiktokenEstimator) encoder(modelName string) *tiktoken.Tiktoken {
	e.mu.Lock()
	defer e.mu.Unlock()
	if enc, ok := e.encoders[modelName]; ok {
		return enc
	}
	if e.failed[modelName] {
		return nil
	}
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		e.failed[modelName] = true
		e.log.Warn().Err(err).Str("model", modelName).Msg("tiktoken encoding unavailable; using heuristic")
		return nil
	}
	e.encoders[modelName] = enc
	return enc
}
