package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	accessx "github.com/campora/assistant/assistant/access"
	contractx "github.com/campora/assistant/assistant/contract"
	retrievex "github.com/campora/assistant/assistant/retrieve"
)

// Outcome labels how an exchange ended. Every non-answered outcome leaves
// the session usable for the next message.
type Outcome string

const (
	OutcomeAnswered         Outcome = "answered"
	OutcomeUnclassified     Outcome = "unclassified"
	OutcomeDenied           Outcome = "denied"
	OutcomeRetrievalFailed  Outcome = "retrieval_failed"
	OutcomeGenerationFailed Outcome = "generation_failed"
)

// ExchangeInput is one user turn against a resolved identity. History is
// conversational context only; it never re-derives role or bypasses the gate.
type ExchangeInput struct {
	Identity  *contractx.ResolvedIdentity
	Utterance string
	History   []contractx.Message
}

type ExchangeResult struct {
	Outcome        Outcome
	Intent         *contractx.Intent
	Reply          string
	AllowedIntents []contractx.Intent
}

// Exchanger runs a single classify-gate-fetch-generate exchange.
type Exchanger interface {
	Handle(ctx context.Context, in ExchangeInput) (ExchangeResult, error)
}

// Engine wires the classifier, the access gate, the retrieval router, and
// the generation boundary into the per-message pipeline. Stages run in a
// fixed order and later stages never run once an earlier stage rejects.
type Engine struct {
	router *retrievex.Router
	gen    contractx.Generator

	graphRunner compose.Runnable[ExchangeInput, ExchangeResult]
}

var _ Exchanger = (*Engine)(nil)

func New(router *retrievex.Router, gen contractx.Generator) (*Engine, error) {
	if router == nil {
		return nil, errors.New("retrieval router is required")
	}
	if gen == nil {
		return nil, errors.New("generator is required")
	}

	e := &Engine{router: router, gen: gen}

	graphRunner, err := e.compileExchangeGraph(context.Background())
	if err != nil {
		return nil, err
	}
	e.graphRunner = graphRunner

	return e, nil
}

// Handle processes one utterance for the given identity.
func (e *Engine) Handle(ctx context.Context, in ExchangeInput) (ExchangeResult, error) {
	if in.Identity == nil {
		return ExchangeResult{}, fmt.Errorf("%w: identity is required", contractx.ErrValidation)
	}
	return e.graphRunner.Invoke(ctx, in)
}

func helpMessage(role contractx.Role) string {
	return "I can help you with: " + intentList(role) + "."
}

func deniedMessage(role contractx.Role) string {
	return "That is not available for your role. You can ask me about: " + intentList(role) + "."
}

const (
	retrievalFailedMessage  = "Sorry, I could not look that up right now. Please try again."
	generationFailedMessage = "Sorry, I could not put together a response. Please try again."
)

func intentList(role contractx.Role) string {
	allowed := accessx.AllowedIntents(role)
	names := make([]string, 0, len(allowed))
	for _, it := range allowed {
		names = append(names, strings.ReplaceAll(string(it), "_", " "))
	}
	return strings.Join(names, ", ")
}
