package insights

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaykayhq/insight-pipeline/internal/model"
	"github.com/jaykayhq/insight-pipeline/internal/payload"
	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestParseInsights(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    []string
		wantErr bool
	}{
		{name: "plain", text: `["a","b"]`, want: []string{"a", "b"}},
		{name: "fenced", text: "```json\n[\"a\", \"b\", \"c\"]\n```", want: []string{"a", "b", "c"}},
		{name: "bare fence", text: "```\n[\"x\"]\n```  ", want: []string{"x"}},
		{name: "empty array", text: `[]`, want: []string{}},
		{name: "prose", text: "Here are three insights", wantErr: true},
		{name: "numbers", text: `[1,2]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInsights(tt.text)
			if tt.wantErr {
				assert.ErrorIs(t, err, pipeline.ErrMalformedResult)
				assert.Contains(t, err.Error(), "malformed result: ")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecute_DirectPrompt(t *testing.T) {
	store := repository.NewMemoryStore()
	gen := &fakeGenerator{reply: "```json\n[\"Sell jollof kits\",\"Accept Paystack\",\"Post in Pidgin\"]\n```"}
	a := New(gen, store, store, zerolog.Nop())

	out, err := a.Execute(context.Background(), repository.Task{
		ID:      "task-1",
		Payload: json.RawMessage(`{"prompt":"write insights","source":"web_crawl"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "write insights", gen.prompt)
	assert.Empty(t, out.FollowUps)
	assert.Equal(t, payload.InsightsResult{Insights: []string{"Sell jollof kits", "Accept Paystack", "Post in Pidgin"}}, out.Result)

	stored := store.Insights()
	require.Len(t, stored, 3)
	assert.Equal(t, "task-1", stored[0].TaskID)
	assert.Equal(t, "Sell jollof kits", stored[0].InsightText)
}

func TestExecute_TrendPrompt(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	ids, err := store.InsertTrends(ctx, []repository.Trend{{Topic: "#Lagos"}, {Topic: "Naira"}})
	require.NoError(t, err)

	gen := &fakeGenerator{reply: `["one"]`}
	a := New(gen, store, store, zerolog.Nop())

	raw, _ := json.Marshal(payload.GenerateInsights{TrendIDs: ids})
	_, err = a.Execute(ctx, repository.Task{ID: "t", Payload: raw})
	require.NoError(t, err)
	assert.Contains(t, gen.prompt, `social media in Nigeria: "#Lagos, Naira"`)
	assert.Equal(t, TrendPrompt([]string{"#Lagos", "Naira"}), gen.prompt)
}

func TestExecute_Errors(t *testing.T) {
	upstream := pipeline.Upstream(500, "boom", "Gemini API Error: %s", "boom")
	tests := []struct {
		name    string
		payload string
		gen     *fakeGenerator
		wantErr error
	}{
		{name: "no prompt or ids", payload: `{"source":"x"}`, gen: &fakeGenerator{}, wantErr: pipeline.ErrMalformedPayload},
		{name: "unknown trend ids", payload: `{"trend_ids":[99]}`, gen: &fakeGenerator{}, wantErr: pipeline.ErrNoData},
		{name: "gemini fails", payload: `{"prompt":"p"}`, gen: &fakeGenerator{err: upstream}, wantErr: pipeline.ErrUpstream},
		{name: "not json", payload: `{"prompt":"p"}`, gen: &fakeGenerator{reply: "sure!"}, wantErr: pipeline.ErrMalformedResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repository.NewMemoryStore()
			a := New(tt.gen, store, store, zerolog.Nop())
			_, err := a.Execute(context.Background(), repository.Task{ID: "t", Payload: json.RawMessage(tt.payload)})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, store.Insights())
		})
	}
}

func TestExecute_NoDataMessage(t *testing.T) {
	store := repository.NewMemoryStore()
	a := New(&fakeGenerator{}, store, store, zerolog.Nop())
	_, err := a.Execute(context.Background(), repository.Task{Payload: json.RawMessage(`{"trend_ids":[1]}`)})
	require.Error(t, err)
	assert.Equal(t, "no data found: No matching trends found.", err.Error())
}

type failingInsights struct{}

func (failingInsights) InsertInsights(context.Context, string, []string) error {
	return errors.New("disk full")
}

func TestExecute_InsertFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	a := New(&fakeGenerator{reply: `["a"]`}, store, failingInsights{}, zerolog.Nop())
	_, err := a.Execute(context.Background(), repository.Task{Payload: json.RawMessage(`{"prompt":"p"}`)})
	assert.ErrorContains(t, err, "insert insights: disk full")
}

func TestReady(t *testing.T) {
	store := repository.NewMemoryStore()
	a := New(nil, store, store, zerolog.Nop())
	assert.ErrorIs(t, a.Ready(), pipeline.ErrConfigMissing)
	assert.Contains(t, a.Ready().Error(), "GEMINI_API_KEY")

	a = New(&fakeGenerator{}, store, store, zerolog.Nop())
	assert.NoError(t, a.Ready())
	assert.Equal(t, model.TaskTypeGenerateInsights, a.TaskType())
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{})
	assert.ErrorIs(t, err, pipeline.ErrConfigMissing)
}
