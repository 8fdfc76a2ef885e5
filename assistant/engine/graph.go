package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	accessx "github.com/campora/assistant/assistant/access"
	contractx "github.com/campora/assistant/assistant/contract"
	intentx "github.com/campora/assistant/assistant/intent"
)

// graphState flows through the exchange pipeline. Once outcome is set the
// remaining data-touching nodes become no-ops; only finalize still runs.
type graphState struct {
	in      ExchangeInput
	intent  *contractx.Intent
	data    any
	outcome Outcome
	reply   string
}

func (e *Engine) compileExchangeGraph(ctx context.Context) (compose.Runnable[ExchangeInput, ExchangeResult], error) {
	graph := compose.NewGraph[ExchangeInput, ExchangeResult]()

	if err := graph.AddLambdaNode("classify_message",
		compose.InvokableLambda(func(ctx context.Context, in ExchangeInput) (*graphState, error) {
			return classifyMessage(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node classify_message: %w", err)
	}

	if err := graph.AddLambdaNode("authorize_intent",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return authorizeIntent(st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node authorize_intent: %w", err)
	}

	if err := graph.AddLambdaNode("fetch_context",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return e.fetchContext(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node fetch_context: %w", err)
	}

	if err := graph.AddLambdaNode("generate_reply",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (*graphState, error) {
			return e.generateReply(ctx, st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node generate_reply: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_exchange",
		compose.InvokableLambda(func(ctx context.Context, st *graphState) (ExchangeResult, error) {
			return finalizeExchange(st)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_exchange: %w", err)
	}

	edges := [][2]string{
		{compose.START, "classify_message"},
		{"classify_message", "authorize_intent"},
		{"authorize_intent", "fetch_context"},
		{"fetch_context", "generate_reply"},
		{"generate_reply", "finalize_exchange"},
		{"finalize_exchange", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("assistant.handle_message"))
	if err != nil {
		return nil, fmt.Errorf("compile exchange graph: %w", err)
	}
	return runner, nil
}

func classifyMessage(in ExchangeInput) (*graphState, error) {
	st := &graphState{in: in}

	st.intent = intentx.Classify(in.Utterance)
	if st.intent == nil {
		st.outcome = OutcomeUnclassified
		st.reply = helpMessage(in.Identity.Role)
	}
	return st, nil
}

// authorizeIntent is the only gate call site; fetchContext refuses to run
// without the allow it records.
func authorizeIntent(st *graphState) (*graphState, error) {
	if st.outcome != "" {
		return st, nil
	}

	role := st.in.Identity.Role
	if !accessx.IsAllowed(role, *st.intent) {
		log.Debug().
			Str("role", string(role)).
			Str("intent", string(*st.intent)).
			Msg("intent denied")
		st.outcome = OutcomeDenied
		st.reply = deniedMessage(role)
	}
	return st, nil
}

func (e *Engine) fetchContext(ctx context.Context, st *graphState) (*graphState, error) {
	if st.outcome != "" {
		return st, nil
	}

	data, err := e.router.Fetch(ctx, st.in.Identity.Role, *st.intent, st.in.Identity)
	if err != nil {
		if errors.Is(err, contractx.ErrAccessDenied) {
			st.outcome = OutcomeDenied
			st.reply = deniedMessage(st.in.Identity.Role)
			return st, nil
		}
		st.outcome = OutcomeRetrievalFailed
		st.reply = retrievalFailedMessage
		return st, nil
	}
	st.data = data
	return st, nil
}

func (e *Engine) generateReply(ctx context.Context, st *graphState) (*graphState, error) {
	if st.outcome != "" {
		return st, nil
	}

	// The window from the caller ends before this turn; the current
	// utterance goes on the end so the model always sees the question.
	history := make([]contractx.Message, 0, len(st.in.History)+1)
	history = append(history, st.in.History...)
	history = append(history, contractx.Message{Sender: contractx.SenderUser, Text: st.in.Utterance})

	resp, err := e.gen.Generate(ctx, contractx.GenerationRequest{
		Role:        st.in.Identity.Role,
		UserName:    st.in.Identity.DisplayName,
		Intent:      *st.intent,
		ContextData: st.data,
		ChatHistory: history,
	})
	if err != nil {
		log.Warn().Err(err).
			Str("intent", string(*st.intent)).
			Msg("generation failed")
		st.outcome = OutcomeGenerationFailed
		st.reply = generationFailedMessage
		return st, nil
	}

	st.outcome = OutcomeAnswered
	st.reply = resp.Response
	return st, nil
}

func finalizeExchange(st *graphState) (ExchangeResult, error) {
	if st == nil {
		return ExchangeResult{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	return ExchangeResult{
		Outcome:        st.outcome,
		Intent:         st.intent,
		Reply:          st.reply,
		AllowedIntents: accessx.AllowedIntents(st.in.Identity.Role),
	}, nil
}
