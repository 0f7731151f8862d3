package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ppiankov/evalia/internal/model"
	"github.com/ppiankov/evalia/internal/prompt"
)

const missingReasoning = `{"verdict":"Plausible","claim_summary":"x","scores":{"logic":5,"natural_law":5,"historical_accuracy":5,"source_credibility":5,"overall_reasonableness":5}}`

func TestScoreClaim_Success(t *testing.T) {
	provider := &stubProvider{responses: []string{"```json\n" + validResponse + "\n```"}}
	scorer := NewScorer(provider, DefaultScorerOptions(), nil)

	result := scorer.ScoreClaim(context.Background(), "The earth is flat 🌍", model.PersonaStoic)

	require.False(t, result.Failed())
	assert.Equal(t, model.VerdictImplausible, result.Verdict)
	require.Equal(t, 1, provider.calls())

	req := provider.requests[0]
	assert.Equal(t, prompt.Stoic, req.System)
	assert.Equal(t, "Claim:\nThe earth is flat", req.User)
	assert.InDelta(t, 0.1, req.Temperature, 1e-9)
}

func TestScoreClaim_BrutalPersona(t *testing.T) {
	provider := &stubProvider{responses: []string{validResponse}}
	scorer := NewScorer(provider, DefaultScorerOptions(), nil)

	scorer.ScoreClaim(context.Background(), "Birds are drones", model.PersonaBrutal)

	require.Equal(t, 1, provider.calls())
	assert.Equal(t, prompt.Brutal, provider.requests[0].System)
}

func TestScoreClaim_MissingReasoningExhaustsRetries(t *testing.T) {
	provider := &stubProvider{responses: []string{missingReasoning}}
	scorer := NewScorer(provider, DefaultScorerOptions(), nil)

	result := scorer.ScoreClaim(context.Background(), "The moon is cheese", model.PersonaStoic)

	assert.Equal(t, 3, provider.calls())
	assert.True(t, result.Failed())
	assert.Equal(t, model.VerdictUnknown, result.Verdict)
	assert.Equal(t, model.ZeroScores(), result.Scores)
	assert.Equal(t, SummaryFormatFailure, result.ClaimSummary)
	assert.True(t, strings.HasPrefix(result.Error, "Failed to parse JSON after 3 attempts: "), result.Error)
	assert.Contains(t, result.Error, "reasoning")
	assert.Equal(t, 4, result.ClaimLength)
	assert.Empty(t, result.Reasoning)
	assert.Empty(t, result.RelevantSources)
}

func TestScoreClaim_RepairSuffixAccumulates(t *testing.T) {
	provider := &stubProvider{responses: []string{"not json"}}
	scorer := NewScorer(provider, DefaultScorerOptions(), nil)

	scorer.ScoreClaim(context.Background(), "x", model.PersonaStoic)

	require.Equal(t, 3, provider.calls())
	assert.Equal(t, prompt.Stoic, provider.requests[0].System)
	assert.Equal(t, prompt.Stoic+prompt.RepairSuffix, provider.requests[1].System)
	assert.Equal(t, prompt.Stoic+prompt.RepairSuffix+prompt.RepairSuffix, provider.requests[2].System)
}

func TestScoreClaim_RecoversOnRetry(t *testing.T) {
	provider := &stubProvider{responses: []string{"Sure! Here is the JSON:", validResponse}}
	scorer := NewScorer(provider, DefaultScorerOptions(), nil)

	result := scorer.ScoreClaim(context.Background(), "The earth is flat", model.PersonaStoic)

	assert.Equal(t, 2, provider.calls())
	assert.False(t, result.Failed())
	assert.Equal(t, 2, result.Scores["historical_accuracy"])
}

func TestScoreClaim_ZeroRetries(t *testing.T) {
	provider := &stubProvider{responses: []string{"garbage"}}
	opts := DefaultScorerOptions()
	opts.Retries = 0
	scorer := NewScorer(provider, opts, nil)

	result := scorer.ScoreClaim(context.Background(), "x", model.PersonaStoic)

	assert.Equal(t, 1, provider.calls())
	assert.True(t, strings.HasPrefix(result.Error, "Failed to parse JSON after 1 attempts: "))
}

func TestScoreClaim_TransportErrorNotRetried(t *testing.T) {
	provider := &stubProvider{err: errors.New("connection refused")}
	scorer := NewScorer(provider, DefaultScorerOptions(), nil)

	result := scorer.ScoreClaim(context.Background(), "Water boils at 100C at sea level", model.PersonaStoic)

	assert.Equal(t, 1, provider.calls())
	assert.Equal(t, "Unable to score claim: connection refused", result.Error)
	assert.Equal(t, SummaryTransportFailure, result.ClaimSummary)
	assert.Equal(t, model.VerdictUnknown, result.Verdict)
	assert.Equal(t, model.ZeroScores(), result.Scores)
	assert.Equal(t, 7, result.ClaimLength)
}

func TestScoreClaim_LogsTruncatedPreview(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	long := strings.Repeat("x", 800)
	provider := &stubProvider{responses: []string{long}}
	opts := DefaultScorerOptions()
	opts.Retries = 0
	scorer := NewScorer(provider, opts, zap.New(core))

	scorer.ScoreClaim(context.Background(), "x", model.PersonaStoic)

	raw := logs.FilterMessage("Raw model response").All()
	require.Len(t, raw, 1)
	preview := raw[0].ContextMap()["response"].(string)
	assert.Len(t, preview, 503)
	assert.True(t, strings.HasSuffix(preview, "..."))

	assert.Equal(t, 1, logs.FilterMessage("JSON parse failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("All retries failed for JSON parsing").Len())
}

func TestScoreClaim_InvalidScoreWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	raw := strings.Replace(validResponse, `"logic": 1,`, `"logic": "abc",`, 1)
	provider := &stubProvider{responses: []string{raw}}
	scorer := NewScorer(provider, DefaultScorerOptions(), zap.New(core))

	result := scorer.ScoreClaim(context.Background(), "x", model.PersonaStoic)

	assert.False(t, result.Failed())
	assert.Equal(t, 0, result.Scores["logic"])
	assert.Equal(t, 1, provider.calls())
	assert.Equal(t, 1, logs.FilterMessage("Invalid score value, setting to 0").Len())
}
