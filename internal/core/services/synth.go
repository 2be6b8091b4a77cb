package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/logger"
)

// minPackBudget keeps packing useful when the context window is tiny.
const minPackBudget = 256

// synthesizer turns retrieved chunks into model prompts for a response mode.
// Intermediate steps use Chat; only the final step streams.
type synthesizer struct {
	llm         driven.LLMService
	prompts     driven.PromptStore
	mode        domain.ResponseMode
	window      int
	temperature float64
}

// open runs every step but the last and returns the stream of the last one.
func (s *synthesizer) open(ctx context.Context, question string, sources []domain.ScoredChunk) (driven.TokenStream, error) {
	blocks := make([]string, len(sources))
	for i := range sources {
		blocks[i] = contextBlock(&sources[i].Chunk)
	}
	logger.Debug("Synthesising with %s over %d chunks", s.mode, len(blocks))

	switch s.mode {
	case domain.ResponseModeRefine:
		return s.refine(ctx, question, blocks)
	case domain.ResponseModeTreeSummarize:
		return s.treeSummarize(ctx, question, blocks)
	default:
		return s.refine(ctx, question, s.pack(blocks, s.budget(driven.PromptRefine, question)))
	}
}

// refine answers from the first context then refines the answer with each further one.
func (s *synthesizer) refine(ctx context.Context, question string, contexts []string) (driven.TokenStream, error) {
	if len(contexts) == 0 {
		contexts = []string{""}
	}

	textQA := s.template(driven.PromptTextQA)
	refine := s.template(driven.PromptRefine)

	prompt := fmt.Sprintf(textQA, contexts[0], question)
	for i := 1; i < len(contexts); i++ {
		current, err := s.llm.Chat(ctx, s.messages(prompt), s.options())
		if err != nil {
			return nil, fmt.Errorf("refine step %d: %w", i, err)
		}
		prompt = fmt.Sprintf(refine, question, current, contexts[i])
	}
	return s.llm.Stream(ctx, s.messages(prompt), s.options())
}

// treeSummarize summarises packs of context until a single pack remains.
func (s *synthesizer) treeSummarize(ctx context.Context, question string, blocks []string) (driven.TokenStream, error) {
	summary := s.template(driven.PromptSummary)
	budget := s.budget(driven.PromptSummary, question)

	packs := s.pack(blocks, budget)
	for level := 1; len(packs) > 1; level++ {
		summaries := make([]string, 0, len(packs))
		for _, p := range packs {
			out, err := s.llm.Chat(ctx, s.messages(fmt.Sprintf(summary, p, question)), s.options())
			if err != nil {
				return nil, fmt.Errorf("summarise level %d: %w", level, err)
			}
			summaries = append(summaries, out)
		}
		next := s.pack(summaries, budget)
		if len(next) >= len(packs) {
			// Summaries did not shrink; keep what fits in one prompt.
			next = []string{truncateRunes(strings.Join(summaries, "\n\n"), budget)}
		}
		packs = next
	}

	final := ""
	if len(packs) == 1 {
		final = packs[0]
	}
	return s.llm.Stream(ctx, s.messages(fmt.Sprintf(summary, final, question)), s.options())
}

// pack greedily joins blocks into prompts of at most budget runes.
// A block longer than the budget is split across several packs.
func (s *synthesizer) pack(blocks []string, budget int) []string {
	var packs []string
	var current strings.Builder
	size := 0

	flush := func() {
		if current.Len() > 0 {
			packs = append(packs, current.String())
			current.Reset()
			size = 0
		}
	}

	for _, block := range blocks {
		r := []rune(block)
		for len(r) > budget {
			flush()
			packs = append(packs, string(r[:budget]))
			r = r[budget:]
		}
		n := len(r)
		if n == 0 {
			continue
		}
		sep := 0
		if size > 0 {
			sep = 2
		}
		if size+sep+n > budget {
			flush()
			sep = 0
		}
		if sep > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(string(r))
		size += sep + n
	}
	flush()
	return packs
}

// budget is the rune space left for context in one prompt.
func (s *synthesizer) budget(name, question string) int {
	overhead := len([]rune(s.template(name))) + len([]rune(question)) + len([]rune(s.template(driven.PromptSystem)))
	if name == driven.PromptRefine {
		// Room for the running answer.
		overhead += s.window / 4
	}
	return max(s.window-overhead, minPackBudget)
}

func (s *synthesizer) template(name string) string {
	if s.prompts != nil {
		if t, err := s.prompts.Load(name); err == nil && t != "" {
			return t
		}
	}
	return driven.DefaultPrompts()[name]
}

func (s *synthesizer) messages(prompt string) []driven.ChatMessage {
	msgs := make([]driven.ChatMessage, 0, 2)
	if system := s.template(driven.PromptSystem); system != "" {
		msgs = append(msgs, driven.ChatMessage{Role: string(domain.RoleSystem), Content: system})
	}
	return append(msgs, driven.ChatMessage{Role: string(domain.RoleUser), Content: prompt})
}

func (s *synthesizer) options() driven.ChatOptions {
	return driven.ChatOptions{Temperature: s.temperature}
}

// contextBlock renders a chunk with its source metadata for a prompt.
func contextBlock(c *domain.Chunk) string {
	var b strings.Builder
	if name := c.MetaString(domain.MetaFileName); name != "" {
		b.WriteString("file_name: ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	if page := c.MetaString(domain.MetaPageLabel); page != "" {
		b.WriteString("page_label: ")
		b.WriteString(page)
		b.WriteString("\n")
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(c.Content)
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
