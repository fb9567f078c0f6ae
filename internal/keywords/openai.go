package keywords

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"strconv"
	"sync"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leca/photophriend/internal/imageproc"
)

const (
	functionName     = "processKeywords"
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 1000
)

const systemPrompt = `You analyze images and provide relevant keywords that describe the main subjects, actions and notable elements. ` +
	`Return between 5 and 10 keywords per category. Wide keywords are broad, general descriptors. ` +
	`Narrow keywords are more specific. Specific keywords are very detailed or unique elements. ` +
	`The keywords are used when sharing the image on marketplaces and social media. ` +
	`The images are arranged in a grid and numbered clockwise from the top left.`

// Config configures the OpenAI tagger.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Concurrency int
}

var _ Tagger = (*OpenAI)(nil)

// OpenAI tags photos with a vision-capable chat model. Each batch of up to four
// photos is sent as one numbered composite image and the model answers through
// a forced function call.
type OpenAI struct {
	log         *zap.Logger
	client      *openai.Client
	model       string
	concurrency int
}

// NewOpenAI creates a tagger for cfg.
func NewOpenAI(log *zap.Logger, cfg Config) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &OpenAI{
		log:         log,
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		concurrency: concurrency,
	}
}

// Tag generates keywords for every image. Batches run concurrently; the first
// failing batch cancels the rest and fails the call.
func (o *OpenAI) Tag(ctx context.Context, images []Image) (map[string]Set, error) {
	var mu sync.Mutex
	out := make(map[string]Set, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, batch := range Batch(images) {
		g.Go(func() error {
			sets, err := o.tagBatch(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for id, s := range sets {
				out[id] = s
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *OpenAI) tagBatch(ctx context.Context, batch []Image) (map[string]Set, error) {
	decoded := make([]image.Image, len(batch))
	for i, img := range batch {
		d, _, err := imageproc.Decode(img.Data)
		if err != nil {
			return nil, fmt.Errorf("decoding photo %s: %w", img.PhotoID, err)
		}
		decoded[i] = d
	}
	composite, err := imageproc.Composite(decoded)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(composite)

	req := openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: defaultMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: userPrompt(len(batch))},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURI}},
				},
			},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:       functionName,
				Parameters: responseSchema(len(batch)),
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: functionName},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, Error.Wrap(fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, Error.New("response has no function call")
	}

	var byNumber map[string]Set
	args := resp.Choices[0].Message.ToolCalls[0].Function.Arguments
	if err := json.Unmarshal([]byte(args), &byNumber); err != nil {
		return nil, Error.Wrap(fmt.Errorf("decoding function arguments: %w", err))
	}

	out := make(map[string]Set, len(batch))
	for i, img := range batch {
		s, ok := byNumber[strconv.Itoa(i+1)]
		if !ok {
			o.log.Warn("no keywords returned for photo", zap.String("photo_id", img.PhotoID), zap.Int("number", i+1))
			continue
		}
		out[img.PhotoID] = s
	}
	o.log.Debug("tagged batch", zap.Int("photos", len(batch)), zap.Int("tagged", len(out)))
	return out, nil
}

func userPrompt(n int) string {
	last := map[int]string{1: "top-left (1)", 2: "top-right (2)", 3: "bottom-right (3)", 4: "bottom-left (4)"}[n]
	return fmt.Sprintf("Analyze this composite of %d photos. The photos are numbered clockwise from top-left (1) to %s. "+
		"For each numbered photo provide keywords in three categories: wide, narrow and specific. "+
		"Keep the numbering in your answer.", n, last)
}

// responseSchema describes one {wide, narrow, specific} object per photo number.
func responseSchema(n int) map[string]any {
	list := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	props := make(map[string]any, n)
	required := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		key := strconv.Itoa(i)
		props[key] = map[string]any{
			"type": "object",
			"properties": map[string]any{
				"wide":     list,
				"narrow":   list,
				"specific": list,
			},
			"required": []string{"wide", "narrow", "specific"},
		}
		required = append(required, key)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
