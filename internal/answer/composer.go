// Package answer composes grounded answers to manual questions. It
// decomposes the question into sub-questions, retrieves pages for each,
// asks the chat model to answer from the retrieved pages only, and
// resolves the table and figure references backing the answer.
package answer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/manualqa-go/internal/budget"
	"github.com/54b3r/manualqa-go/internal/manual"
	"github.com/54b3r/manualqa-go/internal/retrieval"
)

// Config controls answer composition.
type Config struct {
	// Limit is the per-sub-question retrieval limit. Default 6.
	Limit int

	// ScoreThreshold excludes retrieval hits scoring below it. Default 4,
	// tuned for MaxSim scores on the full multi-vector field.
	ScoreThreshold float32

	// MaxSubQuestions caps question decomposition. Default 4.
	MaxSubQuestions int

	// MaxContextTokens bounds the retrieved context sent to the model.
	// Weakest hits are dropped from the tail when the budget overflows.
	// Default budget.DefaultMaxContextTokens.
	MaxContextTokens int

	// ArtifactsDir, when set, is the extraction output directory used to
	// attach page images to the answer prompt and to verify that cited
	// artifacts exist on disk.
	ArtifactsDir string

	// AttachPageImages sends the rendered page image alongside the text
	// context so a vision-capable model can read tables and figures
	// directly. Requires ArtifactsDir.
	AttachPageImages bool
}

// Answer is the composed response to a question.
type Answer struct {
	// Text is the model's answer, grounded in the retrieved pages.
	Text string `json:"answer"`

	// References lists the tables and figures backing the answer.
	References manual.References `json:"references"`

	// SubQuestions records how the question was decomposed.
	SubQuestions []string `json:"sub_questions,omitempty"`
}

// Composer orchestrates decomposition, retrieval, generation, and
// reference resolution.
type Composer struct {
	model  model.BaseChatModel
	engine *retrieval.Engine
	cfg    Config
	log    *slog.Logger
}

// NewComposer creates a Composer. A nil logger falls back to slog.Default.
func NewComposer(chatModel model.BaseChatModel, engine *retrieval.Engine, cfg Config, log *slog.Logger) *Composer {
	if cfg.Limit <= 0 {
		cfg.Limit = 6
	}
	if cfg.ScoreThreshold == 0 {
		cfg.ScoreThreshold = 4
	}
	if cfg.MaxSubQuestions <= 0 {
		cfg.MaxSubQuestions = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Composer{model: chatModel, engine: engine, cfg: cfg, log: log}
}

// Answer runs the full pipeline for one question.
func (c *Composer) Answer(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, retrieval.ErrInvalidQuery
	}

	subQuestions := c.decompose(ctx, question)

	var scored []manual.ScoredPage
	seen := make(map[string]bool)
	for _, sq := range subQuestions {
		results, err := c.engine.Search(ctx, retrieval.Query{
			Text:           sq,
			Limit:          c.cfg.Limit,
			ScoreThreshold: c.cfg.ScoreThreshold,
		})
		if err != nil {
			return nil, fmt.Errorf("answer: retrieval for %q failed: %w", sq, err)
		}
		for _, r := range results {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			page, err := manual.PageFromPayload(r.Payload)
			if err != nil {
				c.log.Warn("skipping malformed payload", "point_id", r.ID, "error", err)
				continue
			}
			scored = append(scored, manual.ScoredPage{Page: page, SubQuestion: sq, Score: r.Score})
		}
	}

	if len(scored) == 0 {
		return &Answer{
			Text:         "The indexed manual pages do not contain information relevant to this question.",
			SubQuestions: subQuestions,
		}, nil
	}

	// Strongest hits first so budget trimming drops the weakest pages, and
	// references only cite pages the model actually saw.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	scored = c.trimToBudget(question, scored)

	text, err := c.generate(ctx, question, scored)
	if err != nil {
		return nil, err
	}

	resolver := &manual.Resolver{Exists: c.artifactExists, Log: c.log}
	refs := resolver.Resolve(scored)

	return &Answer{Text: text, References: refs, SubQuestions: subQuestions}, nil
}

// decompose asks the model to split the question. Any failure degrades to
// treating the question as a single sub-question rather than surfacing an
// error: decomposition is an optimization, not a requirement.
func (c *Composer) decompose(ctx context.Context, question string) []string {
	msg, err := c.model.Generate(ctx, []*schema.Message{
		schema.UserMessage(fmt.Sprintf(decomposePrompt, question)),
	})
	if err != nil {
		c.log.Warn("question decomposition failed, using original question", "error", err)
		return []string{question}
	}

	var subs []string
	raw := strings.TrimSpace(msg.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &subs); err != nil {
		c.log.Warn("unparseable decomposition response, using original question", "error", err)
		return []string{question}
	}

	cleaned := subs[:0]
	for _, s := range subs {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return []string{question}
	}
	if len(cleaned) > c.cfg.MaxSubQuestions {
		cleaned = cleaned[:c.cfg.MaxSubQuestions]
	}
	return cleaned
}

// generate builds the answer prompt from the retrieved pages and calls
// the model. When image attachment is enabled and the page image exists
// on disk it is sent as a multimodal part alongside the text.
func (c *Composer) generate(ctx context.Context, question string, pages []manual.ScoredPage) (string, error) {
	sections := make([]string, 0, len(pages))
	for _, sp := range pages {
		sections = append(sections, renderSection(sp))
	}

	prompt := fmt.Sprintf(answerPrompt, strings.Join(sections, "\n---\n"), question)

	var messages []*schema.Message
	if c.cfg.AttachPageImages && c.cfg.ArtifactsDir != "" {
		parts := []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: prompt},
		}
		for _, sp := range pages {
			if part, ok := c.pageImagePart(sp.Page.Number); ok {
				parts = append(parts, part)
			}
		}
		messages = []*schema.Message{{Role: schema.User, MultiContent: parts}}
	} else {
		messages = []*schema.Message{schema.UserMessage(prompt)}
	}

	msg, err := c.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("answer: generation failed: %w", err)
	}
	return strings.TrimSpace(msg.Content), nil
}

// trimToBudget drops tail pages until the rendered context fits the token
// budget. Pages must already be ordered strongest-first.
func (c *Composer) trimToBudget(question string, pages []manual.ScoredPage) []manual.ScoredPage {
	sections := make([]string, 0, len(pages))
	for _, sp := range pages {
		sections = append(sections, renderSection(sp))
	}
	fixed := fmt.Sprintf(answerPrompt, "", question)
	kept := budget.TrimSections(fixed, sections, c.cfg.MaxContextTokens)
	if kept < len(pages) {
		c.log.Info("trimmed retrieved context to fit token budget",
			"pages_retrieved", len(pages), "pages_kept", kept)
	}
	return pages[:kept]
}

// renderSection renders one retrieved page for the answer prompt.
func renderSection(sp manual.ScoredPage) string {
	return fmt.Sprintf("[Retrieved for: %s | score %.2f]\n%s",
		sp.SubQuestion, sp.Score, manual.EmbeddingText(sp.Page))
}

// pageImagePart loads a page's rendered image as an inline data URL part.
func (c *Composer) pageImagePart(pageNumber int) (schema.ChatMessagePart, bool) {
	path := filepath.Join(c.cfg.ArtifactsDir,
		fmt.Sprintf("page_%d", pageNumber),
		fmt.Sprintf("page_%d_full.png", pageNumber))
	raw, err := os.ReadFile(path)
	if err != nil {
		return schema.ChatMessagePart{}, false
	}
	return schema.ChatMessagePart{
		Type: schema.ChatMessagePartTypeImageURL,
		ImageURL: &schema.ChatMessageImageURL{
			URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw),
		},
	}, true
}

// artifactExists reports whether a cited artifact file is present under
// the artifacts directory. With no artifacts directory configured every
// citation is trusted as-is.
func (c *Composer) artifactExists(servedPath string) bool {
	if c.cfg.ArtifactsDir == "" {
		return true
	}
	_, err := os.Stat(filepath.Join(c.cfg.ArtifactsDir, filepath.FromSlash(servedPath)))
	return err == nil
}
